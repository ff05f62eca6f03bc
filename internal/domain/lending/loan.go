package lending

import (
	"fmt"
	"math"
	"time"

	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus represents the status of a dealer loan
type LoanStatus string

const (
	LoanStatusPendingApproval LoanStatus = "PENDING_APPROVAL"
	LoanStatusActive          LoanStatus = "ACTIVE"
	LoanStatusCompleted       LoanStatus = "COMPLETED"
	LoanStatusRestructured    LoanStatus = "RESTRUCTURED"
)

// IsValid checks if the status is a valid LoanStatus
func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanStatusPendingApproval, LoanStatusActive, LoanStatusCompleted, LoanStatusRestructured:
		return true
	}
	return false
}

// String returns the string representation of LoanStatus
func (s LoanStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the loan is in a terminal state
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusCompleted || s == LoanStatusRestructured
}

// RiskLevel classifies a loan's likelihood of non-repayment
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Loan parameter bounds
const (
	MinPrincipal             = 1000
	MaxPrincipal             = 100000
	MaxAnnualRatePercent     = 50
	MinTenorMonths           = 3
	MaxTenorMonths           = 60
	MaxActiveLoansPerStation = 3
)

// PaymentAllocation is the split of one repayment amount.
// Allocation order is fixed: penalty, then current-period interest,
// then principal.
type PaymentAllocation struct {
	Penalty   decimal.Decimal
	Interest  decimal.Decimal
	Principal decimal.Decimal
}

// Total returns the allocated sum
func (a PaymentAllocation) Total() decimal.Decimal {
	return a.Penalty.Add(a.Interest).Add(a.Principal)
}

// Loan represents a dealer credit facility repaid by deduction from
// settlements. It embeds the amortization schedule generated at
// creation or restructure.
type Loan struct {
	shared.TenantAggregateRoot
	Reference          string               `json:"reference"`
	StationID          uuid.UUID            `json:"station_id"`
	DealerID           uuid.UUID            `json:"dealer_id"`
	Principal          decimal.Decimal      `json:"principal"`
	InterestRate       decimal.Decimal      `json:"interest_rate"` // annual, percent
	TenorMonths        int                  `json:"tenor_months"`
	Frequency          RepaymentFrequency   `json:"frequency"`
	StartDate          time.Time            `json:"start_date"`
	MaturityDate       time.Time            `json:"maturity_date"`
	Status             LoanStatus           `json:"status"`
	OutstandingBalance decimal.Decimal      `json:"outstanding_balance"`
	TotalPaid          decimal.Decimal      `json:"total_paid"`
	TotalInterestPaid  decimal.Decimal      `json:"total_interest_paid"`
	InstallmentAmount  decimal.Decimal      `json:"installment_amount"`
	PenaltyAmount      decimal.Decimal      `json:"penalty_amount"`
	PenaltyRate        decimal.Decimal      `json:"penalty_rate"`
	GracePeriodDays    int                  `json:"grace_period_days"`
	DaysPastDue        int                  `json:"days_past_due"`
	NextPaymentDate    *time.Time           `json:"next_payment_date"`
	LastPaymentDate    *time.Time           `json:"last_payment_date"`
	Schedule           AmortizationSchedule `json:"schedule"`
	CollateralDetails  string               `json:"collateral_details"`
	GuarantorDetails   string               `json:"guarantor_details"`
	Notes              string               `json:"notes"`
	OriginalLoanID     *uuid.UUID           `json:"original_loan_id"`
	ApprovedBy         *uuid.UUID           `json:"approved_by"`
	ApprovedAt         *time.Time           `json:"approved_at"`
	CompletedAt        *time.Time           `json:"completed_at"`
}

// NewLoan creates a loan in PENDING_APPROVAL with its amortization
// schedule generated. The active-loan cardinality check is done by the
// caller against persisted state.
func NewLoan(
	tenantID uuid.UUID,
	stationID uuid.UUID,
	dealerID uuid.UUID,
	reference string,
	principal decimal.Decimal,
	annualRatePercent decimal.Decimal,
	tenorMonths int,
	frequency RepaymentFrequency,
	startDate time.Time,
	penaltyRate decimal.Decimal,
	gracePeriodDays int,
	collateralDetails string,
	guarantorDetails string,
	notes string,
) (*Loan, error) {
	if stationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STATION", "Station ID cannot be empty")
	}
	if dealerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_DEALER", "Dealer ID cannot be empty")
	}
	if reference == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Loan reference cannot be empty")
	}
	if principal.LessThan(decimal.NewFromInt(MinPrincipal)) || principal.GreaterThan(decimal.NewFromInt(MaxPrincipal)) {
		return nil, shared.NewDomainError("VALIDATION_FAILURE",
			fmt.Sprintf("Principal must be between %d and %d", MinPrincipal, MaxPrincipal))
	}
	if annualRatePercent.LessThanOrEqual(decimal.Zero) || annualRatePercent.GreaterThan(decimal.NewFromInt(MaxAnnualRatePercent)) {
		return nil, shared.NewDomainError("VALIDATION_FAILURE",
			fmt.Sprintf("Interest rate must be greater than 0 and at most %d percent", MaxAnnualRatePercent))
	}
	if tenorMonths < MinTenorMonths || tenorMonths > MaxTenorMonths {
		return nil, shared.NewDomainError("VALIDATION_FAILURE",
			fmt.Sprintf("Tenor must be between %d and %d months", MinTenorMonths, MaxTenorMonths))
	}
	if !frequency.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Repayment frequency is not valid")
	}
	if penaltyRate.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Penalty rate cannot be negative")
	}

	schedule, err := GenerateSchedule(principal, annualRatePercent, tenorMonths, frequency, startDate)
	if err != nil {
		return nil, err
	}

	loan := &Loan{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Reference:           reference,
		StationID:           stationID,
		DealerID:            dealerID,
		Principal:           principal,
		InterestRate:        annualRatePercent,
		TenorMonths:         tenorMonths,
		Frequency:           frequency,
		StartDate:           startDate,
		MaturityDate:        startDate.AddDate(0, tenorMonths, 0),
		Status:              LoanStatusPendingApproval,
		OutstandingBalance:  principal,
		TotalPaid:           decimal.Zero,
		TotalInterestPaid:   decimal.Zero,
		InstallmentAmount:   schedule[0].TotalAmount,
		PenaltyAmount:       decimal.Zero,
		PenaltyRate:         penaltyRate,
		GracePeriodDays:     gracePeriodDays,
		Schedule:            schedule,
		CollateralDetails:   collateralDetails,
		GuarantorDetails:    guarantorDetails,
		Notes:               notes,
	}

	loan.AddDomainEvent(NewLoanCreatedEvent(loan))

	return loan, nil
}

// Approve activates a pending loan and sets the first payment date one
// period after the start date
func (l *Loan) Approve(approvedBy uuid.UUID) error {
	if l.Status != LoanStatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot approve loan in %s status", l.Status))
	}

	now := time.Now()
	next := l.Frequency.NextDueDate(l.StartDate)

	l.Status = LoanStatusActive
	l.ApprovedBy = &approvedBy
	l.ApprovedAt = &now
	l.NextPaymentDate = &next

	l.AddDomainEvent(NewLoanApprovedEvent(l))
	l.UpdatedAt = now
	l.IncrementVersion()

	return nil
}

// AllocatePayment splits a payment amount without mutating the loan:
// outstanding penalty first, then current-period interest computed from
// the outstanding balance at the monthly rate, then principal.
func (l *Loan) AllocatePayment(amount decimal.Decimal) PaymentAllocation {
	remaining := amount

	penalty := decimal.Min(remaining, l.PenaltyAmount)
	remaining = remaining.Sub(penalty)

	monthlyRate := l.InterestRate.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(12))
	currentInterest := l.OutstandingBalance.Mul(monthlyRate)
	interest := decimal.Min(remaining, currentInterest)
	remaining = remaining.Sub(interest)

	principal := decimal.Min(remaining, l.OutstandingBalance)

	return PaymentAllocation{Penalty: penalty, Interest: interest, Principal: principal}
}

// ProcessPayment applies a repayment to an active loan and returns the
// allocation used. Completes the loan when the balance reaches zero.
func (l *Loan) ProcessPayment(amount decimal.Decimal, paymentDate time.Time) (PaymentAllocation, error) {
	if l.Status != LoanStatusActive {
		return PaymentAllocation{}, shared.NewDomainError("INVALID_STATE", "Loan must be active to process payments")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return PaymentAllocation{}, shared.NewDomainError("VALIDATION_FAILURE", "Payment amount must be positive")
	}

	allocation := l.AllocatePayment(amount)

	l.OutstandingBalance = l.OutstandingBalance.Sub(allocation.Principal)
	l.TotalPaid = l.TotalPaid.Add(amount)
	l.TotalInterestPaid = l.TotalInterestPaid.Add(allocation.Interest)
	l.PenaltyAmount = decimal.Max(decimal.Zero, l.PenaltyAmount.Sub(allocation.Penalty))
	l.LastPaymentDate = &paymentDate

	if l.OutstandingBalance.LessThanOrEqual(decimal.Zero) {
		l.complete()
	} else {
		next := l.Frequency.NextDueDate(paymentDate)
		l.NextPaymentDate = &next
	}

	l.DaysPastDue = l.DaysPastDueAsOf(time.Now())

	l.AddDomainEvent(NewLoanPaymentProcessedEvent(l, amount, allocation))
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	return allocation, nil
}

// ApplyLumpSum reduces the outstanding balance directly, without the
// installment allocation split. Used for settlement deduction sweeps.
// Returns the amount actually applied, at most the outstanding balance.
func (l *Loan) ApplyLumpSum(amount decimal.Decimal, paymentDate time.Time) (decimal.Decimal, error) {
	if l.Status != LoanStatusActive {
		return decimal.Zero, shared.NewDomainError("INVALID_STATE", "Loan must be active to receive transfers")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, shared.NewDomainError("VALIDATION_FAILURE", "Transfer amount must be positive")
	}

	applied := decimal.Min(amount, l.OutstandingBalance)

	l.OutstandingBalance = l.OutstandingBalance.Sub(applied)
	l.TotalPaid = l.TotalPaid.Add(applied)
	l.LastPaymentDate = &paymentDate

	if l.OutstandingBalance.LessThanOrEqual(decimal.Zero) {
		l.complete()
	} else {
		next := l.Frequency.NextDueDate(paymentDate)
		l.NextPaymentDate = &next
	}

	l.DaysPastDue = l.DaysPastDueAsOf(time.Now())

	l.AddDomainEvent(NewLoanPaymentProcessedEvent(l, applied, PaymentAllocation{Principal: applied}))
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	return applied, nil
}

func (l *Loan) complete() {
	now := time.Now()
	l.OutstandingBalance = decimal.Zero
	l.Status = LoanStatusCompleted
	l.CompletedAt = &now
	l.NextPaymentDate = nil
	l.AddDomainEvent(NewLoanCompletedEvent(l))
}

// MarkRestructured moves an active loan to the terminal RESTRUCTURED
// state. The successor loan links back via OriginalLoanID.
func (l *Loan) MarkRestructured() error {
	if l.Status != LoanStatusActive {
		return shared.NewDomainError("INVALID_STATE", "Only active loans can be restructured")
	}
	l.Status = LoanStatusRestructured
	l.NextPaymentDate = nil
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// NewRestructuredLoan creates the active successor of a restructured
// loan, defaulting the principal to the original's outstanding balance
// and carrying terms forward where no new value is supplied.
func NewRestructuredLoan(
	original *Loan,
	reference string,
	newPrincipal *decimal.Decimal,
	newRatePercent *decimal.Decimal,
	newTenorMonths *int,
	newFrequency *RepaymentFrequency,
	gracePeriodDays int,
	reason string,
) (*Loan, error) {
	if original.Status != LoanStatusRestructured {
		return nil, shared.NewDomainError("INVALID_STATE", "Original loan must be marked restructured first")
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "Restructure reason is required")
	}

	principal := original.OutstandingBalance
	if newPrincipal != nil {
		principal = *newPrincipal
	}
	rate := original.InterestRate
	if newRatePercent != nil {
		rate = *newRatePercent
	}
	tenor := original.TenorMonths
	if newTenorMonths != nil {
		tenor = *newTenorMonths
	}
	frequency := original.Frequency
	if newFrequency != nil {
		frequency = *newFrequency
	}

	startDate := time.Now()
	schedule, err := GenerateSchedule(principal, rate, tenor, frequency, startDate)
	if err != nil {
		return nil, err
	}

	next := frequency.NextDueDate(startDate)
	originalID := original.ID

	loan := &Loan{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(original.TenantID),
		Reference:           reference,
		StationID:           original.StationID,
		DealerID:            original.DealerID,
		Principal:           principal,
		InterestRate:        rate,
		TenorMonths:         tenor,
		Frequency:           frequency,
		StartDate:           startDate,
		MaturityDate:        startDate.AddDate(0, tenor, 0),
		Status:              LoanStatusActive,
		OutstandingBalance:  principal,
		TotalPaid:           decimal.Zero,
		TotalInterestPaid:   decimal.Zero,
		InstallmentAmount:   schedule[0].TotalAmount,
		PenaltyAmount:       decimal.Zero,
		PenaltyRate:         original.PenaltyRate,
		GracePeriodDays:     gracePeriodDays,
		NextPaymentDate:     &next,
		Schedule:            schedule,
		CollateralDetails:   original.CollateralDetails,
		GuarantorDetails:    original.GuarantorDetails,
		Notes:               fmt.Sprintf("%s | RESTRUCTURED: %s", original.Notes, reason),
		OriginalLoanID:      &originalID,
	}

	loan.AddDomainEvent(NewLoanRestructuredEvent(original, loan, reason))

	return loan, nil
}

// DaysPastDueAsOf returns how many whole days the next payment is
// overdue. Zero for non-active loans or when no payment is due.
func (l *Loan) DaysPastDueAsOf(asOf time.Time) int {
	if l.Status != LoanStatusActive || l.NextPaymentDate == nil {
		return 0
	}
	if !asOf.After(*l.NextPaymentDate) {
		return 0
	}
	return int(asOf.Sub(*l.NextPaymentDate).Hours() / 24)
}

// AccruePenalty adds a late penalty for an active loan past its grace
// period: installment x penalty rate x floor(daysPastDue/30).
// Returns the accrued amount, zero when no penalty applies.
func (l *Loan) AccruePenalty(asOf time.Time) (decimal.Decimal, error) {
	if l.Status != LoanStatusActive {
		return decimal.Zero, shared.NewDomainError("INVALID_STATE", "Penalties accrue only on active loans")
	}

	daysPastDue := l.DaysPastDueAsOf(asOf)
	if daysPastDue <= l.GracePeriodDays {
		return decimal.Zero, nil
	}

	months := decimal.NewFromInt(int64(daysPastDue / 30))
	penalty := l.InstallmentAmount.Mul(l.PenaltyRate).Mul(months)
	if penalty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}

	l.PenaltyAmount = l.PenaltyAmount.Add(penalty)
	l.DaysPastDue = daysPastDue

	l.AddDomainEvent(NewLoanPenaltyAccruedEvent(l, penalty, daysPastDue))
	l.UpdatedAt = time.Now()
	l.IncrementVersion()

	return penalty, nil
}

// MonthlyObligation returns the loan's installment normalized to a
// monthly equivalent amount
func (l *Loan) MonthlyObligation() decimal.Decimal {
	return l.InstallmentAmount.Mul(l.Frequency.MonthlyEquivalentFactor())
}

// CurrentInstallment returns the schedule entry for the next due
// installment. Falls back to the last entry when all dates have passed.
func (l *Loan) CurrentInstallment(asOf time.Time) *ScheduleEntry {
	if len(l.Schedule) == 0 {
		return nil
	}
	for i := range l.Schedule {
		if l.Schedule[i].DueDate.After(asOf) {
			return &l.Schedule[i]
		}
	}
	return &l.Schedule[len(l.Schedule)-1]
}

// CountOnTimePayments splits payments into on-time and late by matching
// each payment to a schedule entry with a due date within 7 days
func (l *Loan) CountOnTimePayments(payments []*LoanPayment) (onTime, late int) {
	const tolerance = 7 * 24 * time.Hour
	for _, p := range payments {
		matched := false
		for i := range l.Schedule {
			gap := l.Schedule[i].DueDate.Sub(p.PaymentDate)
			if gap < 0 {
				gap = -gap
			}
			if gap <= tolerance {
				if !p.PaymentDate.After(l.Schedule[i].DueDate) {
					onTime++
				} else {
					late++
				}
				matched = true
				break
			}
		}
		if !matched {
			late++
		}
	}
	return onTime, late
}

// DefaultRisk scores the loan against days past due, payment
// efficiency, balance ratio, and penalty load
func (l *Loan) DefaultRisk(paymentEfficiency float64) RiskLevel {
	score := 0

	switch {
	case l.DaysPastDue > 90:
		score += 40
	case l.DaysPastDue > 30:
		score += 20
	case l.DaysPastDue > 7:
		score += 10
	}

	switch {
	case paymentEfficiency < 50:
		score += 30
	case paymentEfficiency < 70:
		score += 20
	case paymentEfficiency < 85:
		score += 10
	}

	balanceRatio := 0.0
	if l.Principal.IsPositive() {
		balanceRatio = l.OutstandingBalance.Div(l.Principal).InexactFloat64()
	}
	switch {
	case balanceRatio > 0.8:
		score += 15
	case balanceRatio > 0.6:
		score += 10
	case balanceRatio > 0.4:
		score += 5
	}

	switch {
	case l.PenaltyAmount.GreaterThan(l.InstallmentAmount):
		score += 15
	case l.PenaltyAmount.IsPositive():
		score += 10
	}

	switch {
	case score >= 70:
		return RiskCritical
	case score >= 45:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	}
	return RiskLow
}

// ProjectedMaturityDate estimates when the loan will be paid off at the
// average payment rate observed so far. If payments do not even cover
// interest the projection is pushed ten years past maturity.
func (l *Loan) ProjectedMaturityDate(asOf time.Time) time.Time {
	monthlyRate := l.InterestRate.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(12)).InexactFloat64()
	balance := l.OutstandingBalance.InexactFloat64()

	monthsSinceStart := monthsBetween(l.StartDate, asOf)
	if monthsSinceStart < 1 {
		monthsSinceStart = 1
	}
	avgMonthlyPayment := l.TotalPaid.InexactFloat64() / float64(monthsSinceStart)

	monthlyInterest := balance * monthlyRate
	if avgMonthlyPayment <= monthlyInterest {
		return l.MaturityDate.AddDate(10, 0, 0)
	}

	monthsNeeded := math.Log(1+monthlyInterest/(avgMonthlyPayment-monthlyInterest)) / math.Log(1+monthlyRate)
	return asOf.AddDate(0, int(math.Ceil(monthsNeeded)), 0)
}

func monthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if months < 0 {
		return 0
	}
	return months
}

// LoanPayment is an immutable record of one repayment event with its
// penalty/interest/principal split
type LoanPayment struct {
	shared.BaseEntity
	TenantID         uuid.UUID       `json:"tenant_id"`
	LoanID           uuid.UUID       `json:"loan_id"`
	Amount           decimal.Decimal `json:"amount"`
	PenaltyPortion   decimal.Decimal `json:"penalty_portion"`
	InterestPortion  decimal.Decimal `json:"interest_portion"`
	PrincipalPortion decimal.Decimal `json:"principal_portion"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	PaymentDate      time.Time       `json:"payment_date"`
	Method           string          `json:"method"`
	PaymentReference string          `json:"payment_reference"`
	ProcessedBy      *uuid.UUID      `json:"processed_by"`
}

// NewLoanPayment creates the immutable record for one repayment
func NewLoanPayment(loan *Loan, amount decimal.Decimal, allocation PaymentAllocation, paymentDate time.Time, method, reference string, processedBy *uuid.UUID) *LoanPayment {
	return &LoanPayment{
		BaseEntity:       shared.NewBaseEntity(),
		TenantID:         loan.TenantID,
		LoanID:           loan.ID,
		Amount:           amount,
		PenaltyPortion:   allocation.Penalty,
		InterestPortion:  allocation.Interest,
		PrincipalPortion: allocation.Principal,
		BalanceAfter:     loan.OutstandingBalance,
		PaymentDate:      paymentDate,
		Method:           method,
		PaymentReference: reference,
		ProcessedBy:      processedBy,
	}
}
