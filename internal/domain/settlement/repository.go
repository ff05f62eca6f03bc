package settlement

import (
	"context"

	"github.com/fuelerp/backend/internal/domain/lending"
	"github.com/google/uuid"
)

// SettlementRepository defines the interface for settlement persistence
type SettlementRepository interface {
	// FindByIDForTenant finds a settlement by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Settlement, error)

	// FindByStationWindow finds the settlement for a (station, window)
	// pair, the natural key within a tenant
	FindByStationWindow(ctx context.Context, tenantID, stationID uuid.UUID, windowID string) (*Settlement, error)

	// FindByStatus finds settlements in a given status for a tenant
	FindByStatus(ctx context.Context, tenantID uuid.UUID, status SettlementStatus) ([]*Settlement, error)

	// FindByStation finds all settlements for a station ordered by
	// period start descending
	FindByStation(ctx context.Context, tenantID, stationID uuid.UUID) ([]*Settlement, error)

	// Save creates or updates a settlement
	Save(ctx context.Context, s *Settlement) error

	// SaveWithAccrualPosting atomically persists the settlement and
	// advances the netted accrual records to POSTED_TO_LEDGER
	SaveWithAccrualPosting(ctx context.Context, s *Settlement, accrualIDs []uuid.UUID) error

	// SaveWithLoanSweep atomically persists the paid settlement together
	// with the swept loans and their payment records
	SaveWithLoanSweep(ctx context.Context, s *Settlement, loans []*lending.Loan, payments []*lending.LoanPayment) error
}
