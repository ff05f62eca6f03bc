package lending

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fuelerp/backend/internal/domain/lending"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LoanServiceConfig carries the tenant-wide lending defaults
type LoanServiceConfig struct {
	DefaultPenaltyRate     decimal.Decimal
	DefaultGracePeriodDays int
}

// DefaultLoanServiceConfig returns the standard lending defaults
func DefaultLoanServiceConfig() LoanServiceConfig {
	return LoanServiceConfig{
		DefaultPenaltyRate:     decimal.NewFromFloat(0.05),
		DefaultGracePeriodDays: 7,
	}
}

// LoanService provides application-level loan operations
type LoanService struct {
	loanRepo lending.LoanRepository
	eventBus shared.EventBus
	logger   *zap.Logger
	config   LoanServiceConfig
	now      func() time.Time
}

// NewLoanService creates a new LoanService
func NewLoanService(
	loanRepo lending.LoanRepository,
	eventBus shared.EventBus,
	logger *zap.Logger,
	config LoanServiceConfig,
) *LoanService {
	return &LoanService{
		loanRepo: loanRepo,
		eventBus: eventBus,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}
}

// CreateLoanRequest is the input for creating a loan
type CreateLoanRequest struct {
	StationID         uuid.UUID                  `json:"station_id" binding:"required"`
	DealerID          uuid.UUID                  `json:"dealer_id" binding:"required"`
	Principal         decimal.Decimal            `json:"principal" binding:"required"`
	AnnualRatePercent decimal.Decimal            `json:"annual_rate_percent" binding:"required"`
	TenorMonths       int                        `json:"tenor_months" binding:"required"`
	Frequency         lending.RepaymentFrequency `json:"frequency" binding:"required"`
	StartDate         *time.Time                 `json:"start_date"`
	PenaltyRate       *decimal.Decimal           `json:"penalty_rate"`
	GracePeriodDays   *int                       `json:"grace_period_days"`
	CollateralDetails string                     `json:"collateral_details"`
	GuarantorDetails  string                     `json:"guarantor_details"`
	Notes             string                     `json:"notes"`
}

// CreateLoan creates a loan in PENDING_APPROVAL, enforcing the active
// loan cap per station
func (s *LoanService) CreateLoan(ctx context.Context, tenantID uuid.UUID, req CreateLoanRequest) (*lending.Loan, error) {
	activeCount, err := s.loanRepo.CountActiveByStation(ctx, tenantID, req.StationID)
	if err != nil {
		return nil, err
	}
	if activeCount >= lending.MaxActiveLoansPerStation {
		return nil, shared.NewDomainError("VALIDATION_FAILURE",
			fmt.Sprintf("Station already has %d active loans", lending.MaxActiveLoansPerStation))
	}

	startDate := s.now()
	if req.StartDate != nil {
		startDate = *req.StartDate
	}
	penaltyRate := s.config.DefaultPenaltyRate
	if req.PenaltyRate != nil {
		penaltyRate = *req.PenaltyRate
	}
	gracePeriodDays := s.config.DefaultGracePeriodDays
	if req.GracePeriodDays != nil {
		gracePeriodDays = *req.GracePeriodDays
	}

	reference := s.loanReference("LOAN", req.StationID)

	loan, err := lending.NewLoan(
		tenantID, req.StationID, req.DealerID, reference,
		req.Principal, req.AnnualRatePercent, req.TenorMonths, req.Frequency,
		startDate, penaltyRate, gracePeriodDays,
		req.CollateralDetails, req.GuarantorDetails, req.Notes,
	)
	if err != nil {
		return nil, err
	}

	if err := s.loanRepo.Save(ctx, loan); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, loan)

	s.logger.Info("Created loan",
		zap.String("tenant_id", tenantID.String()),
		zap.String("station_id", req.StationID.String()),
		zap.String("reference", reference),
		zap.String("principal", req.Principal.String()))

	return loan, nil
}

// ApproveLoan activates a pending loan
func (s *LoanService) ApproveLoan(ctx context.Context, tenantID, loanID, approvedBy uuid.UUID) (*lending.Loan, error) {
	loan, err := s.findLoan(ctx, tenantID, loanID)
	if err != nil {
		return nil, err
	}

	if err := loan.Approve(approvedBy); err != nil {
		return nil, err
	}

	if err := s.loanRepo.Save(ctx, loan); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, loan)

	return loan, nil
}

// ProcessPaymentRequest is the input for applying a repayment
type ProcessPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	PaymentDate *time.Time      `json:"payment_date"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference"`
	ProcessedBy *uuid.UUID      `json:"processed_by"`
}

// ProcessPayment applies a repayment to an active loan, persisting the
// loan mutation and the payment record atomically
func (s *LoanService) ProcessPayment(ctx context.Context, tenantID, loanID uuid.UUID, req ProcessPaymentRequest) (*lending.Loan, *lending.LoanPayment, error) {
	loan, err := s.findLoan(ctx, tenantID, loanID)
	if err != nil {
		return nil, nil, err
	}

	paymentDate := s.now()
	if req.PaymentDate != nil {
		paymentDate = *req.PaymentDate
	}

	allocation, err := loan.ProcessPayment(req.Amount, paymentDate)
	if err != nil {
		return nil, nil, err
	}

	payment := lending.NewLoanPayment(loan, req.Amount, allocation, paymentDate, req.Method, req.Reference, req.ProcessedBy)

	if err := s.loanRepo.SaveWithPayment(ctx, loan, payment); err != nil {
		return nil, nil, err
	}

	s.publishEvents(ctx, loan)

	s.logger.Info("Processed loan payment",
		zap.String("tenant_id", tenantID.String()),
		zap.String("loan_id", loanID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("balance_after", loan.OutstandingBalance.String()),
		zap.String("status", loan.Status.String()))

	return loan, payment, nil
}

// RestructureLoanRequest is the input for restructuring a loan. Nil
// fields carry the original terms forward; a nil principal defaults to
// the outstanding balance.
type RestructureLoanRequest struct {
	NewPrincipal    *decimal.Decimal            `json:"new_principal"`
	NewRatePercent  *decimal.Decimal            `json:"new_rate_percent"`
	NewTenorMonths  *int                        `json:"new_tenor_months"`
	NewFrequency    *lending.RepaymentFrequency `json:"new_frequency"`
	GracePeriodDays *int                        `json:"grace_period_days"`
	Reason          string                      `json:"reason" binding:"required"`
}

// RestructureLoan closes an active loan as RESTRUCTURED and opens its
// active successor in one atomic unit
func (s *LoanService) RestructureLoan(ctx context.Context, tenantID, loanID uuid.UUID, req RestructureLoanRequest) (*lending.Loan, error) {
	original, err := s.findLoan(ctx, tenantID, loanID)
	if err != nil {
		return nil, err
	}

	if err := original.MarkRestructured(); err != nil {
		return nil, err
	}

	gracePeriodDays := original.GracePeriodDays
	if req.GracePeriodDays != nil {
		gracePeriodDays = *req.GracePeriodDays
	}

	reference := s.loanReference("RESTR", original.StationID)

	successor, err := lending.NewRestructuredLoan(
		original, reference,
		req.NewPrincipal, req.NewRatePercent, req.NewTenorMonths, req.NewFrequency,
		gracePeriodDays, req.Reason,
	)
	if err != nil {
		return nil, err
	}

	if err := s.loanRepo.SaveRestructure(ctx, original, successor); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, original)
	s.publishEvents(ctx, successor)

	s.logger.Info("Restructured loan",
		zap.String("tenant_id", tenantID.String()),
		zap.String("original_reference", original.Reference),
		zap.String("successor_reference", successor.Reference),
		zap.String("reason", req.Reason))

	return successor, nil
}

// PenaltyRunResult summarizes one penalty accrual sweep
type PenaltyRunResult struct {
	LoansChecked   int             `json:"loans_checked"`
	LoansPenalized int             `json:"loans_penalized"`
	Failed         int             `json:"failed"`
	TotalAccrued   decimal.Decimal `json:"total_accrued"`
}

// AccruePenalties sweeps active loans past their next payment date and
// accrues late penalties. Per-loan failures never abort the sweep.
func (s *LoanService) AccruePenalties(ctx context.Context, asOf time.Time) (*PenaltyRunResult, error) {
	loans, err := s.loanRepo.FindActiveDueOnOrBefore(ctx, asOf)
	if err != nil {
		return nil, err
	}

	result := &PenaltyRunResult{TotalAccrued: decimal.Zero}
	result.LoansChecked = len(loans)

	for _, loan := range loans {
		penalty, err := loan.AccruePenalty(asOf)
		if err != nil {
			result.Failed++
			s.logger.Warn("Penalty accrual failed",
				zap.String("loan_id", loan.ID.String()),
				zap.Error(err))
			continue
		}
		if penalty.IsZero() {
			continue
		}

		if err := s.loanRepo.Save(ctx, loan); err != nil {
			result.Failed++
			s.logger.Warn("Failed to save penalized loan",
				zap.String("loan_id", loan.ID.String()),
				zap.Error(err))
			continue
		}

		s.publishEvents(ctx, loan)
		result.LoansPenalized++
		result.TotalAccrued = result.TotalAccrued.Add(penalty)
	}

	s.logger.Info("Penalty accrual sweep completed",
		zap.Int("checked", result.LoansChecked),
		zap.Int("penalized", result.LoansPenalized),
		zap.Int("failed", result.Failed),
		zap.String("total_accrued", result.TotalAccrued.String()))

	return result, nil
}

// PerformanceMetrics is the per-loan repayment performance read model
type PerformanceMetrics struct {
	LoanID                uuid.UUID         `json:"loan_id"`
	Reference             string            `json:"reference"`
	PaymentsMade          int               `json:"payments_made"`
	PaymentsDue           int               `json:"payments_due"`
	OnTimePayments        int               `json:"on_time_payments"`
	LatePayments          int               `json:"late_payments"`
	PaymentEfficiency     float64           `json:"payment_efficiency"`
	CurrentInstallment    int               `json:"current_installment"`
	TotalPaid             decimal.Decimal   `json:"total_paid"`
	OutstandingBalance    decimal.Decimal   `json:"outstanding_balance"`
	PenaltyAmount         decimal.Decimal   `json:"penalty_amount"`
	DaysPastDue           int               `json:"days_past_due"`
	DefaultRisk           lending.RiskLevel `json:"default_risk"`
	ProjectedMaturityDate time.Time         `json:"projected_maturity_date"`
}

// GetPerformanceMetrics builds the repayment performance view for one loan
func (s *LoanService) GetPerformanceMetrics(ctx context.Context, tenantID, loanID uuid.UUID) (*PerformanceMetrics, error) {
	loan, err := s.findLoan(ctx, tenantID, loanID)
	if err != nil {
		return nil, err
	}

	payments, err := s.loanRepo.FindPaymentsByLoan(ctx, tenantID, loanID)
	if err != nil {
		return nil, err
	}

	asOf := s.now()
	onTime, late := loan.CountOnTimePayments(payments)

	paymentsDue := 0
	currentInstallment := 0
	for i := range loan.Schedule {
		if !loan.Schedule[i].DueDate.After(asOf) {
			paymentsDue++
		} else if currentInstallment == 0 {
			currentInstallment = loan.Schedule[i].InstallmentNumber
		}
	}
	if currentInstallment == 0 && len(loan.Schedule) > 0 {
		currentInstallment = loan.Schedule[len(loan.Schedule)-1].InstallmentNumber
	}

	efficiency := 100.0
	if paymentsDue > 0 {
		efficiency = float64(len(payments)) / float64(paymentsDue) * 100
		if efficiency > 100 {
			efficiency = 100
		}
	}

	return &PerformanceMetrics{
		LoanID:                loan.ID,
		Reference:             loan.Reference,
		PaymentsMade:          len(payments),
		PaymentsDue:           paymentsDue,
		OnTimePayments:        onTime,
		LatePayments:          late,
		PaymentEfficiency:     efficiency,
		CurrentInstallment:    currentInstallment,
		TotalPaid:             loan.TotalPaid,
		OutstandingBalance:    loan.OutstandingBalance,
		PenaltyAmount:         loan.PenaltyAmount,
		DaysPastDue:           loan.DaysPastDueAsOf(asOf),
		DefaultRisk:           loan.DefaultRisk(efficiency),
		ProjectedMaturityDate: loan.ProjectedMaturityDate(asOf),
	}, nil
}

// StationObligation is the station's aggregate monthly debt service
type StationObligation struct {
	StationID          uuid.UUID       `json:"station_id"`
	ActiveLoans        int             `json:"active_loans"`
	MonthlyObligation  decimal.Decimal `json:"monthly_obligation"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	PenaltyAmount      decimal.Decimal `json:"penalty_amount"`
}

// GetStationObligation sums the monthly-equivalent obligations of a
// station's active loans
func (s *LoanService) GetStationObligation(ctx context.Context, tenantID, stationID uuid.UUID) (*StationObligation, error) {
	loans, err := s.loanRepo.FindActiveByStation(ctx, tenantID, stationID)
	if err != nil {
		return nil, err
	}

	obligation := &StationObligation{
		StationID:          stationID,
		ActiveLoans:        len(loans),
		MonthlyObligation:  decimal.Zero,
		OutstandingBalance: decimal.Zero,
		PenaltyAmount:      decimal.Zero,
	}
	for _, loan := range loans {
		obligation.MonthlyObligation = obligation.MonthlyObligation.Add(loan.MonthlyObligation())
		obligation.OutstandingBalance = obligation.OutstandingBalance.Add(loan.OutstandingBalance)
		obligation.PenaltyAmount = obligation.PenaltyAmount.Add(loan.PenaltyAmount)
	}
	obligation.MonthlyObligation = obligation.MonthlyObligation.Round(2)

	return obligation, nil
}

// GetByID returns one loan
func (s *LoanService) GetByID(ctx context.Context, tenantID, loanID uuid.UUID) (*lending.Loan, error) {
	return s.findLoan(ctx, tenantID, loanID)
}

// ListByStation returns all loans for a station
func (s *LoanService) ListByStation(ctx context.Context, tenantID, stationID uuid.UUID) ([]*lending.Loan, error) {
	return s.loanRepo.FindByStation(ctx, tenantID, stationID)
}

// ListPayments returns the payment history of a loan
func (s *LoanService) ListPayments(ctx context.Context, tenantID, loanID uuid.UUID) ([]*lending.LoanPayment, error) {
	return s.loanRepo.FindPaymentsByLoan(ctx, tenantID, loanID)
}

func (s *LoanService) findLoan(ctx context.Context, tenantID, loanID uuid.UUID) (*lending.Loan, error) {
	loan, err := s.loanRepo.FindByIDForTenant(ctx, tenantID, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Loan not found")
	}
	return loan, nil
}

// loanReference builds references like LOAN-3f2a-1735000000000 from the
// station suffix and the creation timestamp
func (s *LoanService) loanReference(prefix string, stationID uuid.UUID) string {
	compact := strings.ReplaceAll(stationID.String(), "-", "")
	suffix := compact[len(compact)-4:]
	return fmt.Sprintf("%s-%s-%d", prefix, suffix, s.now().UnixMilli())
}

func (s *LoanService) publishEvents(ctx context.Context, loan *lending.Loan) {
	if s.eventBus == nil {
		return
	}
	for _, event := range loan.GetDomainEvents() {
		_ = s.eventBus.Publish(ctx, event)
	}
	loan.ClearDomainEvents()
}
