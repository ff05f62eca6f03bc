package payment

import (
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentBatchCreatedEvent is raised when a disbursement batch is created
type PaymentBatchCreatedEvent struct {
	shared.BaseDomainEvent
	BatchID         uuid.UUID       `json:"batch_id"`
	Reference       string          `json:"reference"`
	Method          Method          `json:"method"`
	SettlementCount int             `json:"settlement_count"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// EventType returns the event type name
func (e *PaymentBatchCreatedEvent) EventType() string {
	return "PaymentBatchCreated"
}

// NewPaymentBatchCreatedEvent creates a new PaymentBatchCreatedEvent
func NewPaymentBatchCreatedEvent(b *PaymentBatch) *PaymentBatchCreatedEvent {
	return &PaymentBatchCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentBatchCreated", "PaymentBatch", b.ID, b.TenantID),
		BatchID:         b.ID,
		Reference:       b.Reference,
		Method:          b.Method,
		SettlementCount: b.TotalSettlements,
		TotalAmount:     b.TotalAmount,
	}
}

// PaymentBatchCompletedEvent is raised when batch execution finishes
// with its success and failure counts
type PaymentBatchCompletedEvent struct {
	shared.BaseDomainEvent
	BatchID            uuid.UUID   `json:"batch_id"`
	Reference          string      `json:"reference"`
	Status             BatchStatus `json:"status"`
	SuccessfulPayments int         `json:"successful_payments"`
	FailedPayments     int         `json:"failed_payments"`
}

// EventType returns the event type name
func (e *PaymentBatchCompletedEvent) EventType() string {
	return "PaymentBatchCompleted"
}

// NewPaymentBatchCompletedEvent creates a new PaymentBatchCompletedEvent
func NewPaymentBatchCompletedEvent(b *PaymentBatch) *PaymentBatchCompletedEvent {
	return &PaymentBatchCompletedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent("PaymentBatchCompleted", "PaymentBatch", b.ID, b.TenantID),
		BatchID:            b.ID,
		Reference:          b.Reference,
		Status:             b.Status,
		SuccessfulPayments: b.SuccessfulPayments,
		FailedPayments:     b.FailedPayments,
	}
}

// PaymentInstructionsCreatedEvent is raised when manual payment
// instructions are queued
type PaymentInstructionsCreatedEvent struct {
	shared.BaseDomainEvent
	InstructionCount int                 `json:"instruction_count"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	Priority         InstructionPriority `json:"priority"`
}

// EventType returns the event type name
func (e *PaymentInstructionsCreatedEvent) EventType() string {
	return "PaymentInstructionsCreated"
}

// NewPaymentInstructionsCreatedEvent creates a new PaymentInstructionsCreatedEvent
func NewPaymentInstructionsCreatedEvent(tenantID uuid.UUID, count int, totalAmount decimal.Decimal, priority InstructionPriority) *PaymentInstructionsCreatedEvent {
	return &PaymentInstructionsCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("PaymentInstructionsCreated", "PaymentInstruction", uuid.New(), tenantID),
		InstructionCount: count,
		TotalAmount:      totalAmount,
		Priority:         priority,
	}
}
