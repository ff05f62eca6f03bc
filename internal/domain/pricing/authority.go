package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrRateNotFound is returned by MarginRate when the pricing authority
// has no rate for the product in the window. Products without a rate
// are skipped during accrual, not failed.
var ErrRateNotFound = errors.New("margin rate not found")

// Window represents an externally defined pricing window during which
// product margin rates are fixed
type Window struct {
	ID        string    `json:"id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Contains returns true if the given date falls within the window
func (w Window) Contains(date time.Time) bool {
	return !date.Before(w.StartDate) && !date.After(w.EndDate)
}

// Authority supplies dealer margin rates and window boundaries maintained
// by the external pricing service
type Authority interface {
	// MarginRate returns the per-litre dealer margin rate for a product
	// within a pricing window
	MarginRate(ctx context.Context, product string, windowID string) (decimal.Decimal, error)

	// WindowDates returns the date boundaries of a pricing window
	WindowDates(ctx context.Context, windowID string) (Window, error)
}
