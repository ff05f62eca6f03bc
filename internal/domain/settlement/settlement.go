package settlement

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementStatus represents the status of a dealer settlement
type SettlementStatus string

const (
	SettlementStatusCalculated SettlementStatus = "CALCULATED"
	SettlementStatusApproved   SettlementStatus = "APPROVED"
	SettlementStatusPaid       SettlementStatus = "PAID"
	SettlementStatusDisputed   SettlementStatus = "DISPUTED"
)

// IsValid checks if the status is a valid SettlementStatus
func (s SettlementStatus) IsValid() bool {
	switch s {
	case SettlementStatusCalculated, SettlementStatusApproved, SettlementStatusPaid, SettlementStatusDisputed:
		return true
	}
	return false
}

// String returns the string representation of SettlementStatus
func (s SettlementStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the settlement is in a terminal state
func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementStatusPaid || s == SettlementStatusDisputed
}

// ProductSales is the per-product calculation snapshot captured when
// the settlement is computed
type ProductSales struct {
	Product      string          `json:"product"`
	LitresSold   decimal.Decimal `json:"litres_sold"`
	ExPumpPrice  decimal.Decimal `json:"ex_pump_price"`
	MarginRate   decimal.Decimal `json:"margin_rate"`
	MarginAmount decimal.Decimal `json:"margin_amount"`
}

// ProductSalesBreakdown is stored as JSONB on the settlement
type ProductSalesBreakdown []ProductSales

// Value implements driver.Valuer interface for GORM to store as JSONB
func (b ProductSalesBreakdown) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	return json.Marshal(b)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (b *ProductSalesBreakdown) Scan(value interface{}) error {
	return scanJSONB(value, b, func() { *b = ProductSalesBreakdown{} })
}

// LoanDeductionLine is one active loan's installment split inside the
// settlement's deduction breakdown
type LoanDeductionLine struct {
	LoanID            uuid.UUID       `json:"loan_id"`
	LoanReference     string          `json:"loan_reference"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	PrincipalAmount   decimal.Decimal `json:"principal_amount"`
	InterestAmount    decimal.Decimal `json:"interest_amount"`
	PenaltyAmount     decimal.Decimal `json:"penalty_amount"`
	InstallmentNumber int             `json:"installment_number"`
}

// LoanDeductionLines is stored as JSONB on the settlement
type LoanDeductionLines []LoanDeductionLine

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l LoanDeductionLines) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *LoanDeductionLines) Scan(value interface{}) error {
	return scanJSONB(value, l, func() { *l = LoanDeductionLines{} })
}

// OtherDeductions holds the non-loan deduction components, each
// independently sourced and defaulting to zero
type OtherDeductions struct {
	Chargebacks decimal.Decimal `json:"chargebacks"`
	Shortages   decimal.Decimal `json:"shortages"`
	Penalties   decimal.Decimal `json:"penalties"`
	Adjustments decimal.Decimal `json:"adjustments"`
}

// Total returns the sum of all other-deduction components
func (d OtherDeductions) Total() decimal.Decimal {
	return d.Chargebacks.Add(d.Shortages).Add(d.Penalties).Add(d.Adjustments)
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (d OtherDeductions) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (d *OtherDeductions) Scan(value interface{}) error {
	return scanJSONB(value, d, func() { *d = OtherDeductions{} })
}

func scanJSONB(value interface{}, target interface{}, reset func()) error {
	if value == nil {
		reset()
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan JSONB value: unsupported type")
	}

	if len(bytes) == 0 {
		reset()
		return nil
	}

	return json.Unmarshal(bytes, target)
}

// Calculation is the output of netting one station/window: totals plus
// the snapshots persisted on the settlement
type Calculation struct {
	StationID       uuid.UUID
	WindowID        string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	Sales           ProductSalesBreakdown
	TotalLitresSold decimal.Decimal
	GrossMargin     decimal.Decimal
	LoanLines       LoanDeductionLines
	LoanDeduction   decimal.Decimal
	Other           OtherDeductions
	NetPayable      decimal.Decimal
	AccrualIDs      []uuid.UUID
}

// Settlement represents the net amount owed to a dealer for one
// (station, pricing window). Its status forms a strict forward chain
// CALCULATED -> APPROVED -> PAID, with DISPUTED as a terminal branch.
type Settlement struct {
	shared.TenantAggregateRoot
	Reference        string                `json:"reference"`
	StationID        uuid.UUID             `json:"station_id"`
	WindowID         string                `json:"window_id"`
	SettlementDate   time.Time             `json:"settlement_date"`
	PeriodStart      time.Time             `json:"period_start"`
	PeriodEnd        time.Time             `json:"period_end"`
	TotalLitresSold  decimal.Decimal       `json:"total_litres_sold"`
	GrossMargin      decimal.Decimal       `json:"gross_margin"`
	LoanDeduction    decimal.Decimal       `json:"loan_deduction"`
	OtherDeduction   decimal.Decimal       `json:"other_deduction"`
	NetPayable       decimal.Decimal       `json:"net_payable"`
	Status           SettlementStatus      `json:"status"`
	Sales            ProductSalesBreakdown `json:"sales"`
	LoanLines        LoanDeductionLines    `json:"loan_lines"`
	OtherBreakdown   OtherDeductions       `json:"other_breakdown"`
	ApprovedBy       *uuid.UUID            `json:"approved_by"`
	ApprovedAt       *time.Time            `json:"approved_at"`
	PaidAt           *time.Time            `json:"paid_at"`
	PaidBy           *uuid.UUID            `json:"paid_by"`
	PaymentReference string                `json:"payment_reference"`
	PaymentMethod    string                `json:"payment_method"`
	DisputedAt       *time.Time            `json:"disputed_at"`
	DisputeReason    string                `json:"dispute_reason"`
}

// NewSettlement creates a CALCULATED settlement from a netting result.
// Net payable is always derived, never supplied.
func NewSettlement(tenantID uuid.UUID, reference string, calc Calculation) (*Settlement, error) {
	if reference == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Settlement reference cannot be empty")
	}
	if calc.StationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STATION", "Station ID cannot be empty")
	}
	if calc.WindowID == "" {
		return nil, shared.NewDomainError("INVALID_WINDOW", "Pricing window ID cannot be empty")
	}

	s := &Settlement{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Reference:           reference,
		StationID:           calc.StationID,
		WindowID:            calc.WindowID,
		SettlementDate:      time.Now(),
		Status:              SettlementStatusCalculated,
	}
	s.applyCalculation(calc)

	s.AddDomainEvent(NewSettlementCalculatedEvent(s))

	return s, nil
}

// applyCalculation overwrites the settlement totals and snapshots,
// re-deriving net payable from the components
func (s *Settlement) applyCalculation(calc Calculation) {
	s.PeriodStart = calc.PeriodStart
	s.PeriodEnd = calc.PeriodEnd
	s.TotalLitresSold = calc.TotalLitresSold
	s.GrossMargin = calc.GrossMargin
	s.LoanDeduction = calc.LoanDeduction
	s.OtherBreakdown = calc.Other
	s.OtherDeduction = calc.Other.Total()
	s.NetPayable = s.GrossMargin.Sub(s.LoanDeduction.Add(s.OtherDeduction))
	s.Sales = calc.Sales
	s.LoanLines = calc.LoanLines
}

// Recalculate replaces the totals of a settlement that is still
// CALCULATED. Re-calculation after approval is a conflict.
func (s *Settlement) Recalculate(calc Calculation) error {
	if s.Status != SettlementStatusCalculated {
		return shared.NewDomainError("CONFLICT",
			fmt.Sprintf("Settlement %s has already been processed for this window", s.Reference))
	}

	s.SettlementDate = time.Now()
	s.applyCalculation(calc)

	s.AddDomainEvent(NewSettlementCalculatedEvent(s))
	s.UpdatedAt = time.Now()
	s.IncrementVersion()

	return nil
}

// Approve moves a calculated settlement to APPROVED
func (s *Settlement) Approve(approvedBy uuid.UUID) error {
	if s.Status != SettlementStatusCalculated {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot approve settlement in %s status", s.Status))
	}

	now := time.Now()
	s.Status = SettlementStatusApproved
	s.ApprovedBy = &approvedBy
	s.ApprovedAt = &now

	s.AddDomainEvent(NewSettlementApprovedEvent(s))
	s.UpdatedAt = now
	s.IncrementVersion()

	return nil
}

// MarkPaid moves an approved settlement to PAID. The loan deduction
// sweep is performed by the caller within the same atomic unit.
func (s *Settlement) MarkPaid(paymentReference, paymentMethod string, paidBy *uuid.UUID) error {
	if s.Status != SettlementStatusApproved {
		return shared.NewDomainError("INVALID_STATE", "Settlement must be approved before payment")
	}
	if paymentReference == "" {
		return shared.NewDomainError("INVALID_REFERENCE", "Payment reference cannot be empty")
	}

	now := time.Now()
	s.Status = SettlementStatusPaid
	s.PaidAt = &now
	s.PaidBy = paidBy
	s.PaymentReference = paymentReference
	s.PaymentMethod = paymentMethod

	s.AddDomainEvent(NewSettlementPaidEvent(s))
	s.UpdatedAt = now
	s.IncrementVersion()

	return nil
}

// Dispute moves the settlement to the terminal DISPUTED state. Allowed
// before payment only.
func (s *Settlement) Dispute(reason string) error {
	if s.Status != SettlementStatusCalculated && s.Status != SettlementStatusApproved {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot dispute settlement in %s status", s.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Dispute reason is required")
	}

	now := time.Now()
	s.Status = SettlementStatusDisputed
	s.DisputedAt = &now
	s.DisputeReason = reason

	s.AddDomainEvent(NewSettlementDisputedEvent(s))
	s.UpdatedAt = now
	s.IncrementVersion()

	return nil
}

// DaysSinceApproval returns whole days elapsed since approval, or -1
// when the settlement has not been approved
func (s *Settlement) DaysSinceApproval(asOf time.Time) int {
	if s.ApprovedAt == nil {
		return -1
	}
	if asOf.Before(*s.ApprovedAt) {
		return 0
	}
	return int(asOf.Sub(*s.ApprovedAt).Hours() / 24)
}
