package lending

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LoanRepository defines the interface for loan persistence
type LoanRepository interface {
	// FindByIDForTenant finds a loan by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Loan, error)

	// FindByReference finds a loan by its human reference for a tenant
	FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*Loan, error)

	// FindActiveByStation finds all ACTIVE loans for a station, ordered
	// oldest start date first
	FindActiveByStation(ctx context.Context, tenantID, stationID uuid.UUID) ([]*Loan, error)

	// FindByStation finds all loans for a station regardless of status
	FindByStation(ctx context.Context, tenantID, stationID uuid.UUID) ([]*Loan, error)

	// FindActiveDueOnOrBefore finds ACTIVE loans whose next payment date
	// is on or before the given date, across all tenants. Used by the
	// penalty accrual job.
	FindActiveDueOnOrBefore(ctx context.Context, date time.Time) ([]*Loan, error)

	// CountActiveByStation counts ACTIVE loans for a station
	CountActiveByStation(ctx context.Context, tenantID, stationID uuid.UUID) (int64, error)

	// Save creates or updates a loan
	Save(ctx context.Context, loan *Loan) error

	// SaveWithPayment atomically persists a loan mutation together with
	// its payment record
	SaveWithPayment(ctx context.Context, loan *Loan, payment *LoanPayment) error

	// SaveRestructure atomically persists the restructured original and
	// its active successor
	SaveRestructure(ctx context.Context, original, successor *Loan) error

	// FindPaymentsByLoan returns all payment records for a loan ordered
	// by payment date ascending
	FindPaymentsByLoan(ctx context.Context, tenantID, loanID uuid.UUID) ([]*LoanPayment, error)
}
