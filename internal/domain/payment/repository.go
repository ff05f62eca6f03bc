package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PaymentRuleRepository defines the interface for payment rule persistence
type PaymentRuleRepository interface {
	// FindActiveForTenant returns active rules ordered by ascending priority
	FindActiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]*PaymentRule, error)

	// FindByIDForTenant finds a rule by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PaymentRule, error)

	// Save creates or updates a rule
	Save(ctx context.Context, rule *PaymentRule) error
}

// PaymentBatchRepository defines the interface for payment batch persistence
type PaymentBatchRepository interface {
	// FindByIDForTenant finds a batch by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PaymentBatch, error)

	// FindByStatus finds batches in a given status for a tenant
	FindByStatus(ctx context.Context, tenantID uuid.UUID, status BatchStatus) ([]*PaymentBatch, error)

	// FindByDateRange finds batches whose batch date falls in the range,
	// ordered by batch date ascending
	FindByDateRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*PaymentBatch, error)

	// SettlementInOpenBatch reports whether a settlement already belongs
	// to a pending or processing batch
	SettlementInOpenBatch(ctx context.Context, tenantID, settlementID uuid.UUID) (bool, error)

	// Save creates or updates a batch
	Save(ctx context.Context, batch *PaymentBatch) error
}

// PaymentInstructionRepository defines the interface for instruction persistence
type PaymentInstructionRepository interface {
	// SaveAll persists a set of instructions atomically
	SaveAll(ctx context.Context, instructions []*PaymentInstruction) error

	// FindQueued returns queued instructions for a tenant ordered by
	// priority then scheduled date
	FindQueued(ctx context.Context, tenantID uuid.UUID) ([]*PaymentInstruction, error)

	// FindBySettlement returns instructions raised for a settlement
	FindBySettlement(ctx context.Context, tenantID, settlementID uuid.UUID) ([]*PaymentInstruction, error)
}
