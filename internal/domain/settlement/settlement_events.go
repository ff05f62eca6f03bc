package settlement

import (
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementCalculatedEvent is raised when a settlement is computed or
// recomputed for a window
type SettlementCalculatedEvent struct {
	shared.BaseDomainEvent
	SettlementID uuid.UUID       `json:"settlement_id"`
	Reference    string          `json:"reference"`
	StationID    uuid.UUID       `json:"station_id"`
	WindowID     string          `json:"window_id"`
	GrossMargin  decimal.Decimal `json:"gross_margin"`
	NetPayable   decimal.Decimal `json:"net_payable"`
}

// EventType returns the event type name
func (e *SettlementCalculatedEvent) EventType() string {
	return "SettlementCalculated"
}

// NewSettlementCalculatedEvent creates a new SettlementCalculatedEvent
func NewSettlementCalculatedEvent(s *Settlement) *SettlementCalculatedEvent {
	return &SettlementCalculatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SettlementCalculated", "Settlement", s.ID, s.TenantID),
		SettlementID:    s.ID,
		Reference:       s.Reference,
		StationID:       s.StationID,
		WindowID:        s.WindowID,
		GrossMargin:     s.GrossMargin,
		NetPayable:      s.NetPayable,
	}
}

// SettlementApprovedEvent is raised when a settlement is approved for payment
type SettlementApprovedEvent struct {
	shared.BaseDomainEvent
	SettlementID uuid.UUID       `json:"settlement_id"`
	Reference    string          `json:"reference"`
	StationID    uuid.UUID       `json:"station_id"`
	NetPayable   decimal.Decimal `json:"net_payable"`
	ApprovedBy   *uuid.UUID      `json:"approved_by"`
}

// EventType returns the event type name
func (e *SettlementApprovedEvent) EventType() string {
	return "SettlementApproved"
}

// NewSettlementApprovedEvent creates a new SettlementApprovedEvent
func NewSettlementApprovedEvent(s *Settlement) *SettlementApprovedEvent {
	return &SettlementApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SettlementApproved", "Settlement", s.ID, s.TenantID),
		SettlementID:    s.ID,
		Reference:       s.Reference,
		StationID:       s.StationID,
		NetPayable:      s.NetPayable,
		ApprovedBy:      s.ApprovedBy,
	}
}

// SettlementPaidEvent is raised when a settlement disbursement completes
type SettlementPaidEvent struct {
	shared.BaseDomainEvent
	SettlementID     uuid.UUID       `json:"settlement_id"`
	Reference        string          `json:"reference"`
	StationID        uuid.UUID       `json:"station_id"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	PaymentReference string          `json:"payment_reference"`
	PaymentMethod    string          `json:"payment_method"`
}

// EventType returns the event type name
func (e *SettlementPaidEvent) EventType() string {
	return "SettlementPaid"
}

// NewSettlementPaidEvent creates a new SettlementPaidEvent
func NewSettlementPaidEvent(s *Settlement) *SettlementPaidEvent {
	return &SettlementPaidEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("SettlementPaid", "Settlement", s.ID, s.TenantID),
		SettlementID:     s.ID,
		Reference:        s.Reference,
		StationID:        s.StationID,
		AmountPaid:       s.NetPayable,
		PaymentReference: s.PaymentReference,
		PaymentMethod:    s.PaymentMethod,
	}
}

// SettlementDisputedEvent is raised when a settlement is disputed
type SettlementDisputedEvent struct {
	shared.BaseDomainEvent
	SettlementID uuid.UUID `json:"settlement_id"`
	Reference    string    `json:"reference"`
	StationID    uuid.UUID `json:"station_id"`
	Reason       string    `json:"reason"`
}

// EventType returns the event type name
func (e *SettlementDisputedEvent) EventType() string {
	return "SettlementDisputed"
}

// NewSettlementDisputedEvent creates a new SettlementDisputedEvent
func NewSettlementDisputedEvent(s *Settlement) *SettlementDisputedEvent {
	return &SettlementDisputedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SettlementDisputed", "Settlement", s.ID, s.TenantID),
		SettlementID:    s.ID,
		Reference:       s.Reference,
		StationID:       s.StationID,
		Reason:          s.DisputeReason,
	}
}

// SettlementBatchCompletedEvent is raised when an automated window run
// over many stations finishes
type SettlementBatchCompletedEvent struct {
	shared.BaseDomainEvent
	WindowID  string `json:"window_id"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// EventType returns the event type name
func (e *SettlementBatchCompletedEvent) EventType() string {
	return "SettlementBatchCompleted"
}

// NewSettlementBatchCompletedEvent creates a new SettlementBatchCompletedEvent
func NewSettlementBatchCompletedEvent(tenantID uuid.UUID, windowID string, processed, failed int) *SettlementBatchCompletedEvent {
	return &SettlementBatchCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SettlementBatchCompleted", "Settlement", uuid.New(), tenantID),
		WindowID:        windowID,
		Processed:       processed,
		Failed:          failed,
	}
}
