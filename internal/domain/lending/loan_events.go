package lending

import (
	"time"

	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanCreatedEvent is raised when a new loan is created
type LoanCreatedEvent struct {
	shared.BaseDomainEvent
	LoanID            uuid.UUID       `json:"loan_id"`
	Reference         string          `json:"reference"`
	StationID         uuid.UUID       `json:"station_id"`
	DealerID          uuid.UUID       `json:"dealer_id"`
	Principal         decimal.Decimal `json:"principal"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	TenorMonths       int             `json:"tenor_months"`
}

// EventType returns the event type name
func (e *LoanCreatedEvent) EventType() string {
	return "LoanCreated"
}

// NewLoanCreatedEvent creates a new LoanCreatedEvent
func NewLoanCreatedEvent(l *Loan) *LoanCreatedEvent {
	return &LoanCreatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent("LoanCreated", "Loan", l.ID, l.TenantID),
		LoanID:            l.ID,
		Reference:         l.Reference,
		StationID:         l.StationID,
		DealerID:          l.DealerID,
		Principal:         l.Principal,
		InstallmentAmount: l.InstallmentAmount,
		TenorMonths:       l.TenorMonths,
	}
}

// LoanApprovedEvent is raised when a loan is approved and activated
type LoanApprovedEvent struct {
	shared.BaseDomainEvent
	LoanID          uuid.UUID  `json:"loan_id"`
	Reference       string     `json:"reference"`
	StationID       uuid.UUID  `json:"station_id"`
	ApprovedBy      *uuid.UUID `json:"approved_by"`
	NextPaymentDate *time.Time `json:"next_payment_date"`
}

// EventType returns the event type name
func (e *LoanApprovedEvent) EventType() string {
	return "LoanApproved"
}

// NewLoanApprovedEvent creates a new LoanApprovedEvent
func NewLoanApprovedEvent(l *Loan) *LoanApprovedEvent {
	return &LoanApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LoanApproved", "Loan", l.ID, l.TenantID),
		LoanID:          l.ID,
		Reference:       l.Reference,
		StationID:       l.StationID,
		ApprovedBy:      l.ApprovedBy,
		NextPaymentDate: l.NextPaymentDate,
	}
}

// LoanPaymentProcessedEvent is raised when a repayment is applied
type LoanPaymentProcessedEvent struct {
	shared.BaseDomainEvent
	LoanID           uuid.UUID       `json:"loan_id"`
	Reference        string          `json:"reference"`
	Amount           decimal.Decimal `json:"amount"`
	PenaltyPortion   decimal.Decimal `json:"penalty_portion"`
	InterestPortion  decimal.Decimal `json:"interest_portion"`
	PrincipalPortion decimal.Decimal `json:"principal_portion"`
	NewBalance       decimal.Decimal `json:"new_balance"`
	IsCompleted      bool            `json:"is_completed"`
}

// EventType returns the event type name
func (e *LoanPaymentProcessedEvent) EventType() string {
	return "LoanPaymentProcessed"
}

// NewLoanPaymentProcessedEvent creates a new LoanPaymentProcessedEvent
func NewLoanPaymentProcessedEvent(l *Loan, amount decimal.Decimal, allocation PaymentAllocation) *LoanPaymentProcessedEvent {
	return &LoanPaymentProcessedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent("LoanPaymentProcessed", "Loan", l.ID, l.TenantID),
		LoanID:           l.ID,
		Reference:        l.Reference,
		Amount:           amount,
		PenaltyPortion:   allocation.Penalty,
		InterestPortion:  allocation.Interest,
		PrincipalPortion: allocation.Principal,
		NewBalance:       l.OutstandingBalance,
		IsCompleted:      l.Status == LoanStatusCompleted,
	}
}

// LoanRestructuredEvent is raised when a loan is restructured into a
// successor loan
type LoanRestructuredEvent struct {
	shared.BaseDomainEvent
	OriginalLoanID uuid.UUID       `json:"original_loan_id"`
	NewLoanID      uuid.UUID       `json:"new_loan_id"`
	NewReference   string          `json:"new_reference"`
	StationID      uuid.UUID       `json:"station_id"`
	NewPrincipal   decimal.Decimal `json:"new_principal"`
	Reason         string          `json:"reason"`
}

// EventType returns the event type name
func (e *LoanRestructuredEvent) EventType() string {
	return "LoanRestructured"
}

// NewLoanRestructuredEvent creates a new LoanRestructuredEvent
func NewLoanRestructuredEvent(original, successor *Loan, reason string) *LoanRestructuredEvent {
	return &LoanRestructuredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LoanRestructured", "Loan", successor.ID, successor.TenantID),
		OriginalLoanID:  original.ID,
		NewLoanID:       successor.ID,
		NewReference:    successor.Reference,
		StationID:       successor.StationID,
		NewPrincipal:    successor.Principal,
		Reason:          reason,
	}
}

// LoanPenaltyAccruedEvent is raised when a late penalty is added
type LoanPenaltyAccruedEvent struct {
	shared.BaseDomainEvent
	LoanID       uuid.UUID       `json:"loan_id"`
	Reference    string          `json:"reference"`
	Penalty      decimal.Decimal `json:"penalty"`
	TotalPenalty decimal.Decimal `json:"total_penalty"`
	DaysPastDue  int             `json:"days_past_due"`
}

// EventType returns the event type name
func (e *LoanPenaltyAccruedEvent) EventType() string {
	return "LoanPenaltyAccrued"
}

// NewLoanPenaltyAccruedEvent creates a new LoanPenaltyAccruedEvent
func NewLoanPenaltyAccruedEvent(l *Loan, penalty decimal.Decimal, daysPastDue int) *LoanPenaltyAccruedEvent {
	return &LoanPenaltyAccruedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LoanPenaltyAccrued", "Loan", l.ID, l.TenantID),
		LoanID:          l.ID,
		Reference:       l.Reference,
		Penalty:         penalty,
		TotalPenalty:    l.PenaltyAmount,
		DaysPastDue:     daysPastDue,
	}
}

// LoanCompletedEvent is raised when a loan's balance reaches zero
type LoanCompletedEvent struct {
	shared.BaseDomainEvent
	LoanID    uuid.UUID       `json:"loan_id"`
	Reference string          `json:"reference"`
	StationID uuid.UUID       `json:"station_id"`
	TotalPaid decimal.Decimal `json:"total_paid"`
}

// EventType returns the event type name
func (e *LoanCompletedEvent) EventType() string {
	return "LoanCompleted"
}

// NewLoanCompletedEvent creates a new LoanCompletedEvent
func NewLoanCompletedEvent(l *Loan) *LoanCompletedEvent {
	return &LoanCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("LoanCompleted", "Loan", l.ID, l.TenantID),
		LoanID:          l.ID,
		Reference:       l.Reference,
		StationID:       l.StationID,
		TotalPaid:       l.TotalPaid,
	}
}
