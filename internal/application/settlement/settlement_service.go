package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fuelerp/backend/internal/domain/accrual"
	"github.com/fuelerp/backend/internal/domain/lending"
	"github.com/fuelerp/backend/internal/domain/pricing"
	"github.com/fuelerp/backend/internal/domain/settlement"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementService nets accrued margin against loan and other
// deductions for one (station, pricing window) and manages the
// settlement lifecycle through payment
type SettlementService struct {
	settlementRepo settlement.SettlementRepository
	accrualRepo    accrual.MarginAccrualRepository
	loanRepo       lending.LoanRepository
	pricing        pricing.Authority
	eventBus       shared.EventBus
	logger         *zap.Logger
	now            func() time.Time
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	settlementRepo settlement.SettlementRepository,
	accrualRepo accrual.MarginAccrualRepository,
	loanRepo lending.LoanRepository,
	pricingAuthority pricing.Authority,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		settlementRepo: settlementRepo,
		accrualRepo:    accrualRepo,
		loanRepo:       loanRepo,
		pricing:        pricingAuthority,
		eventBus:       eventBus,
		logger:         logger,
		now:            time.Now,
	}
}

// CalculateRequest is the input for computing a station's settlement
// for one pricing window
type CalculateRequest struct {
	StationID uuid.UUID                  `json:"station_id" binding:"required"`
	WindowID  string                     `json:"window_id" binding:"required"`
	Other     settlement.OtherDeductions `json:"other_deductions"`
}

// Calculate nets the window's accruals against deductions and persists
// the settlement. Re-running the same (station, window) replaces the
// totals while the settlement is still CALCULATED; afterwards it is a
// conflict.
func (s *SettlementService) Calculate(ctx context.Context, tenantID uuid.UUID, req CalculateRequest) (*settlement.Settlement, error) {
	window, err := s.pricing.WindowDates(ctx, req.WindowID)
	if err != nil {
		return nil, shared.NewDomainErrorWithCause("EXTERNAL_FAILURE", "Failed to resolve pricing window", err)
	}

	existing, err := s.settlementRepo.FindByStationWindow(ctx, tenantID, req.StationID, req.WindowID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != settlement.SettlementStatusCalculated {
		return nil, shared.NewDomainError("CONFLICT",
			fmt.Sprintf("Settlement %s has already been processed for this window", existing.Reference))
	}

	calc, newAccrualIDs, err := s.buildCalculation(ctx, tenantID, req.StationID, req.WindowID, window, req.Other)
	if err != nil {
		return nil, err
	}

	var result *settlement.Settlement
	if existing != nil {
		if err := existing.Recalculate(calc); err != nil {
			return nil, err
		}
		result = existing
	} else {
		reference := s.settlementReference(req.StationID, req.WindowID)
		result, err = settlement.NewSettlement(tenantID, reference, calc)
		if err != nil {
			return nil, err
		}
	}

	if err := s.settlementRepo.SaveWithAccrualPosting(ctx, result, newAccrualIDs); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, result)

	s.logger.Info("Calculated settlement",
		zap.String("tenant_id", tenantID.String()),
		zap.String("station_id", req.StationID.String()),
		zap.String("window_id", req.WindowID),
		zap.String("reference", result.Reference),
		zap.String("gross_margin", result.GrossMargin.String()),
		zap.String("net_payable", result.NetPayable.String()),
		zap.Bool("recalculated", existing != nil))

	return result, nil
}

// buildCalculation assembles the netting result: per-product sales from
// the window's accrual records plus the loan deduction estimate. The
// returned IDs are the records still awaiting ledger posting.
func (s *SettlementService) buildCalculation(
	ctx context.Context,
	tenantID, stationID uuid.UUID,
	windowID string,
	window pricing.Window,
	other settlement.OtherDeductions,
) (settlement.Calculation, []uuid.UUID, error) {
	records, err := s.accrualRepo.FindByStationDateRange(ctx, tenantID, stationID, window.StartDate, window.EndDate)
	if err != nil {
		return settlement.Calculation{}, nil, err
	}

	sales := settlement.ProductSalesBreakdown{}
	byProduct := make(map[string]int)
	totalLitres, grossMargin := decimal.Zero, decimal.Zero
	newAccrualIDs := make([]uuid.UUID, 0)

	for _, record := range records {
		switch record.Status {
		case accrual.AccrualStatusAccrued:
			newAccrualIDs = append(newAccrualIDs, record.ID)
		case accrual.AccrualStatusPosted:
			// already netted by a previous calculation of this window
		default:
			continue
		}

		totalLitres = totalLitres.Add(record.LitresSold)
		grossMargin = grossMargin.Add(record.MarginAmount)

		idx, ok := byProduct[record.Product]
		if !ok {
			sales = append(sales, settlement.ProductSales{
				Product:     record.Product,
				LitresSold:  decimal.Zero,
				ExPumpPrice: record.AverageExPump,
				MarginRate:  record.MarginRate,
			})
			idx = len(sales) - 1
			byProduct[record.Product] = idx
		}
		sales[idx].LitresSold = sales[idx].LitresSold.Add(record.LitresSold)
		sales[idx].MarginAmount = sales[idx].MarginAmount.Add(record.MarginAmount)
	}

	if len(newAccrualIDs) == 0 && grossMargin.IsZero() {
		return settlement.Calculation{}, nil, shared.NewDomainError("NOT_FOUND",
			"No accrued margin found for the station in this window")
	}

	loanLines, loanDeduction, err := s.buildLoanDeductions(ctx, tenantID, stationID)
	if err != nil {
		return settlement.Calculation{}, nil, err
	}

	return settlement.Calculation{
		StationID:       stationID,
		WindowID:        windowID,
		PeriodStart:     window.StartDate,
		PeriodEnd:       window.EndDate,
		Sales:           sales,
		TotalLitresSold: totalLitres,
		GrossMargin:     grossMargin,
		LoanLines:       loanLines,
		LoanDeduction:   loanDeduction,
		Other:           other,
		AccrualIDs:      newAccrualIDs,
	}, newAccrualIDs, nil
}

// buildLoanDeductions takes one flat installment per active loan, the
// principal split evenly over the tenor. The interest share is carved
// out of that installment for the line breakdown, not charged on top.
// Outstanding penalties are added to the deduction.
func (s *SettlementService) buildLoanDeductions(ctx context.Context, tenantID, stationID uuid.UUID) (settlement.LoanDeductionLines, decimal.Decimal, error) {
	loans, err := s.loanRepo.FindActiveByStation(ctx, tenantID, stationID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	lines := settlement.LoanDeductionLines{}
	total := decimal.Zero
	asOf := s.now()

	for _, loan := range loans {
		installment := loan.Principal.Div(decimal.NewFromInt(int64(loan.TenorMonths))).Round(2)
		if installment.GreaterThan(loan.OutstandingBalance) {
			installment = loan.OutstandingBalance
		}
		monthlyRate := loan.InterestRate.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(12))
		interest := loan.OutstandingBalance.Mul(monthlyRate).Round(2)
		principal := decimal.Max(decimal.Zero, installment.Sub(interest))

		installmentNumber := 0
		if entry := loan.CurrentInstallment(asOf); entry != nil {
			installmentNumber = entry.InstallmentNumber
		}

		lines = append(lines, settlement.LoanDeductionLine{
			LoanID:            loan.ID,
			LoanReference:     loan.Reference,
			InstallmentAmount: installment,
			PrincipalAmount:   principal,
			InterestAmount:    interest,
			PenaltyAmount:     loan.PenaltyAmount,
			InstallmentNumber: installmentNumber,
		})
		total = total.Add(installment).Add(loan.PenaltyAmount)
	}

	return lines, total, nil
}

// Approve moves a calculated settlement to APPROVED
func (s *SettlementService) Approve(ctx context.Context, tenantID, settlementID, approvedBy uuid.UUID) (*settlement.Settlement, error) {
	sett, err := s.findSettlement(ctx, tenantID, settlementID)
	if err != nil {
		return nil, err
	}

	if err := sett.Approve(approvedBy); err != nil {
		return nil, err
	}

	if err := s.settlementRepo.Save(ctx, sett); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, sett)

	return sett, nil
}

// PayRequest is the input for marking a settlement paid
type PayRequest struct {
	PaymentReference string     `json:"payment_reference" binding:"required"`
	PaymentMethod    string     `json:"payment_method"`
	PaidBy           *uuid.UUID `json:"paid_by"`
}

// Pay marks an approved settlement as PAID and sweeps its loan
// deduction across the station's active loans, oldest start date
// first, as lump-sum balance transfers. The settlement and the swept
// loans are persisted in one atomic unit.
func (s *SettlementService) Pay(ctx context.Context, tenantID, settlementID uuid.UUID, req PayRequest) (*settlement.Settlement, error) {
	sett, err := s.findSettlement(ctx, tenantID, settlementID)
	if err != nil {
		return nil, err
	}

	if err := sett.MarkPaid(req.PaymentReference, req.PaymentMethod, req.PaidBy); err != nil {
		return nil, err
	}

	sweptLoans, payments, err := s.sweepLoanDeduction(ctx, tenantID, sett, req)
	if err != nil {
		return nil, err
	}

	if err := s.settlementRepo.SaveWithLoanSweep(ctx, sett, sweptLoans, payments); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, sett)
	for _, loan := range sweptLoans {
		s.publishLoanEvents(ctx, loan)
	}

	s.logger.Info("Paid settlement",
		zap.String("tenant_id", tenantID.String()),
		zap.String("reference", sett.Reference),
		zap.String("net_payable", sett.NetPayable.String()),
		zap.String("loan_deduction", sett.LoanDeduction.String()),
		zap.Int("loans_swept", len(sweptLoans)))

	return sett, nil
}

// sweepLoanDeduction spreads the settlement's loan deduction across the
// station's active loans in start-date order
func (s *SettlementService) sweepLoanDeduction(ctx context.Context, tenantID uuid.UUID, sett *settlement.Settlement, req PayRequest) ([]*lending.Loan, []*lending.LoanPayment, error) {
	if sett.LoanDeduction.LessThanOrEqual(decimal.Zero) {
		return nil, nil, nil
	}

	loans, err := s.loanRepo.FindActiveByStation(ctx, tenantID, sett.StationID)
	if err != nil {
		return nil, nil, err
	}

	remaining := sett.LoanDeduction
	paymentDate := s.now()
	swept := make([]*lending.Loan, 0, len(loans))
	payments := make([]*lending.LoanPayment, 0, len(loans))

	for _, loan := range loans {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		applied, err := loan.ApplyLumpSum(remaining, paymentDate)
		if err != nil {
			return nil, nil, err
		}
		remaining = remaining.Sub(applied)

		payment := lending.NewLoanPayment(loan, applied, lending.PaymentAllocation{Principal: applied},
			paymentDate, "SETTLEMENT_DEDUCTION", sett.Reference, req.PaidBy)

		swept = append(swept, loan)
		payments = append(payments, payment)
	}

	return swept, payments, nil
}

// Dispute moves the settlement to the terminal DISPUTED state
func (s *SettlementService) Dispute(ctx context.Context, tenantID, settlementID uuid.UUID, reason string) (*settlement.Settlement, error) {
	sett, err := s.findSettlement(ctx, tenantID, settlementID)
	if err != nil {
		return nil, err
	}

	if err := sett.Dispute(reason); err != nil {
		return nil, err
	}

	if err := s.settlementRepo.Save(ctx, sett); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, sett)

	return sett, nil
}

// WindowRunResult summarizes an automated window-close batch run
type WindowRunResult struct {
	WindowID  string       `json:"window_id"`
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Errors    []StationRun `json:"errors,omitempty"`
}

// StationRun carries one failed station and its reason
type StationRun struct {
	StationID uuid.UUID `json:"station_id"`
	Reason    string    `json:"reason"`
}

// RunWindowBatch calculates settlements for every station holding
// accrued margin in the window. Per-station failures never abort the
// run.
func (s *SettlementService) RunWindowBatch(ctx context.Context, tenantID uuid.UUID, windowID string, other settlement.OtherDeductions) (*WindowRunResult, error) {
	window, err := s.pricing.WindowDates(ctx, windowID)
	if err != nil {
		return nil, shared.NewDomainErrorWithCause("EXTERNAL_FAILURE", "Failed to resolve pricing window", err)
	}

	stations, err := s.accrualRepo.FindStationsWithAccruals(ctx, tenantID, window.StartDate, window.EndDate)
	if err != nil {
		return nil, err
	}

	result := &WindowRunResult{WindowID: windowID}
	for _, stationID := range stations {
		_, err := s.Calculate(ctx, tenantID, CalculateRequest{StationID: stationID, WindowID: windowID, Other: other})
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, StationRun{StationID: stationID, Reason: err.Error()})
			s.logger.Warn("Window settlement failed for station",
				zap.String("tenant_id", tenantID.String()),
				zap.String("station_id", stationID.String()),
				zap.String("window_id", windowID),
				zap.Error(err))
			continue
		}
		result.Processed++
	}

	s.publish(ctx, settlement.NewSettlementBatchCompletedEvent(tenantID, windowID, result.Processed, result.Failed))

	s.logger.Info("Window settlement batch completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("window_id", windowID),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed))

	return result, nil
}

// GetByID returns one settlement
func (s *SettlementService) GetByID(ctx context.Context, tenantID, settlementID uuid.UUID) (*settlement.Settlement, error) {
	return s.findSettlement(ctx, tenantID, settlementID)
}

// ListByStation returns a station's settlements, newest period first
func (s *SettlementService) ListByStation(ctx context.Context, tenantID, stationID uuid.UUID) ([]*settlement.Settlement, error) {
	return s.settlementRepo.FindByStation(ctx, tenantID, stationID)
}

// ListByStatus returns the tenant's settlements in a given status
func (s *SettlementService) ListByStatus(ctx context.Context, tenantID uuid.UUID, status settlement.SettlementStatus) ([]*settlement.Settlement, error) {
	if !status.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Settlement status is not valid")
	}
	return s.settlementRepo.FindByStatus(ctx, tenantID, status)
}

func (s *SettlementService) findSettlement(ctx context.Context, tenantID, settlementID uuid.UUID) (*settlement.Settlement, error) {
	sett, err := s.settlementRepo.FindByIDForTenant(ctx, tenantID, settlementID)
	if err != nil {
		return nil, err
	}
	if sett == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Settlement not found")
	}
	return sett, nil
}

// settlementReference builds references like SETT-3f2a-2025-W01-1735000000000
func (s *SettlementService) settlementReference(stationID uuid.UUID, windowID string) string {
	compact := strings.ReplaceAll(stationID.String(), "-", "")
	return fmt.Sprintf("SETT-%s-%s-%d", compact[len(compact)-4:], windowID, s.now().UnixMilli())
}

func (s *SettlementService) publish(ctx context.Context, event shared.DomainEvent) {
	if s.eventBus == nil {
		return
	}
	_ = s.eventBus.Publish(ctx, event)
}

func (s *SettlementService) publishEvents(ctx context.Context, sett *settlement.Settlement) {
	if s.eventBus == nil {
		return
	}
	for _, event := range sett.GetDomainEvents() {
		_ = s.eventBus.Publish(ctx, event)
	}
	sett.ClearDomainEvents()
}

func (s *SettlementService) publishLoanEvents(ctx context.Context, loan *lending.Loan) {
	if s.eventBus == nil {
		return
	}
	for _, event := range loan.GetDomainEvents() {
		_ = s.eventBus.Publish(ctx, event)
	}
	loan.ClearDomainEvents()
}
