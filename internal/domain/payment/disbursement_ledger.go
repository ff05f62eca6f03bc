package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DisbursementLedger tracks tenant-wide disbursed totals for the
// daily and monthly risk-control limits. Totals are window-keyed by
// the day and month of the recording time.
type DisbursementLedger interface {
	// DailyTotal returns the amount disbursed for the tenant today
	DailyTotal(ctx context.Context, tenantID uuid.UUID, at time.Time) (decimal.Decimal, error)

	// MonthlyTotal returns the amount disbursed for the tenant this month
	MonthlyTotal(ctx context.Context, tenantID uuid.UUID, at time.Time) (decimal.Decimal, error)

	// Record adds a successful disbursement to both counters
	Record(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, at time.Time) error
}
