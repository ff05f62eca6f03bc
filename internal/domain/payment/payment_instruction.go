package payment

import (
	"time"

	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstructionPriority orders queued instructions for manual processing
type InstructionPriority string

const (
	PriorityHigh   InstructionPriority = "HIGH"
	PriorityNormal InstructionPriority = "NORMAL"
	PriorityLow    InstructionPriority = "LOW"
)

// IsValid checks if the priority is a valid InstructionPriority
func (p InstructionPriority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// InstructionStatus represents the status of a payment instruction
type InstructionStatus string

const (
	InstructionStatusQueued     InstructionStatus = "QUEUED"
	InstructionStatusProcessing InstructionStatus = "PROCESSING"
	InstructionStatusCompleted  InstructionStatus = "COMPLETED"
	InstructionStatusFailed     InstructionStatus = "FAILED"
)

// PaymentInstruction is a queued manual disbursement for one approved
// settlement, carrying the recipient details an operator needs
type PaymentInstruction struct {
	shared.BaseEntity
	TenantID      uuid.UUID           `json:"tenant_id"`
	SettlementID  uuid.UUID           `json:"settlement_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Method        Method              `json:"method"`
	RecipientName string              `json:"recipient_name"`
	AccountNumber string              `json:"account_number"`
	BankCode      string              `json:"bank_code"`
	Reference     string              `json:"reference"`
	Priority      InstructionPriority `json:"priority"`
	ScheduledDate time.Time           `json:"scheduled_date"`
	Status        InstructionStatus   `json:"status"`
}

// NewPaymentInstruction creates a queued instruction for a settlement
func NewPaymentInstruction(
	tenantID uuid.UUID,
	settlementID uuid.UUID,
	amount decimal.Decimal,
	method Method,
	recipientName string,
	accountNumber string,
	bankCode string,
	reference string,
	priority InstructionPriority,
) (*PaymentInstruction, error) {
	if settlementID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SETTLEMENT", "Settlement ID cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Instruction amount must be positive")
	}
	if !priority.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Instruction priority is not valid")
	}

	return &PaymentInstruction{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		SettlementID:  settlementID,
		Amount:        amount,
		Method:        method,
		RecipientName: recipientName,
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		Reference:     reference,
		Priority:      priority,
		ScheduledDate: time.Now(),
		Status:        InstructionStatusQueued,
	}, nil
}
