package settlement

import (
	"context"
	"time"

	"github.com/fuelerp/backend/internal/domain/accrual"
	"github.com/fuelerp/backend/internal/domain/lending"
	"github.com/fuelerp/backend/internal/domain/settlement"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// expectedMarginPerLitre is the regulated dealer margin benchmark used
// for efficiency ratios on statements
var expectedMarginPerLitre = decimal.NewFromFloat(0.35)

// StatementService builds the settlement statement read model consumed
// by the external statement generator
type StatementService struct {
	settlementRepo settlement.SettlementRepository
	accrualRepo    accrual.MarginAccrualRepository
	loanRepo       lending.LoanRepository
	logger         *zap.Logger
}

// NewStatementService creates a new StatementService
func NewStatementService(
	settlementRepo settlement.SettlementRepository,
	accrualRepo accrual.MarginAccrualRepository,
	loanRepo lending.LoanRepository,
	logger *zap.Logger,
) *StatementService {
	return &StatementService{
		settlementRepo: settlementRepo,
		accrualRepo:    accrualRepo,
		loanRepo:       loanRepo,
		logger:         logger,
	}
}

// DailyMargin is one day of the statement's margin breakdown
type DailyMargin struct {
	Date         time.Time       `json:"date"`
	LitresSold   decimal.Decimal `json:"litres_sold"`
	MarginEarned decimal.Decimal `json:"margin_earned"`
}

// PeriodComparison compares the statement period against the previous
// settlement for the station
type PeriodComparison struct {
	PreviousGrossMargin decimal.Decimal `json:"previous_gross_margin"`
	PreviousLitresSold  decimal.Decimal `json:"previous_litres_sold"`
	MarginVariancePct   decimal.Decimal `json:"margin_variance_pct"`
	VolumeVariancePct   decimal.Decimal `json:"volume_variance_pct"`
	Trend               string          `json:"trend"`
}

// LoanPosition summarizes the station's open facilities on the statement
type LoanPosition struct {
	ActiveLoans        int             `json:"active_loans"`
	TotalOutstanding   decimal.Decimal `json:"total_outstanding"`
	MonthlyObligations decimal.Decimal `json:"monthly_obligations"`
	NextPaymentDue     *time.Time      `json:"next_payment_due,omitempty"`
}

// Statement is the full settlement statement read model
type Statement struct {
	SettlementID       uuid.UUID                        `json:"settlement_id"`
	Reference          string                           `json:"reference"`
	StationID          uuid.UUID                        `json:"station_id"`
	WindowID           string                           `json:"window_id"`
	PeriodStart        time.Time                        `json:"period_start"`
	PeriodEnd          time.Time                        `json:"period_end"`
	Status             settlement.SettlementStatus      `json:"status"`
	Sales              settlement.ProductSalesBreakdown `json:"sales"`
	TotalLitresSold    decimal.Decimal                  `json:"total_litres_sold"`
	GrossMargin        decimal.Decimal                  `json:"gross_margin"`
	LoanLines          settlement.LoanDeductionLines    `json:"loan_lines"`
	LoanDeduction      decimal.Decimal                  `json:"loan_deduction"`
	OtherBreakdown     settlement.OtherDeductions       `json:"other_breakdown"`
	TotalDeductions    decimal.Decimal                  `json:"total_deductions"`
	NetPayable         decimal.Decimal                  `json:"net_payable"`
	MarginPerLitre     decimal.Decimal                  `json:"margin_per_litre"`
	MarginEfficiency   decimal.Decimal                  `json:"margin_efficiency"`
	DeductionRatio     decimal.Decimal                  `json:"deduction_ratio"`
	ProfitabilityIndex decimal.Decimal                  `json:"profitability_index"`
	Rating             string                           `json:"rating"`
	DailyBreakdown     []DailyMargin                    `json:"daily_breakdown"`
	Comparison         *PeriodComparison                `json:"comparison,omitempty"`
	Loans              *LoanPosition                    `json:"loans,omitempty"`
}

// GetStatement assembles the statement for one settlement
func (s *StatementService) GetStatement(ctx context.Context, tenantID, settlementID uuid.UUID) (*Statement, error) {
	sett, err := s.settlementRepo.FindByIDForTenant(ctx, tenantID, settlementID)
	if err != nil {
		return nil, err
	}
	if sett == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Settlement not found")
	}

	statement := &Statement{
		SettlementID:    sett.ID,
		Reference:       sett.Reference,
		StationID:       sett.StationID,
		WindowID:        sett.WindowID,
		PeriodStart:     sett.PeriodStart,
		PeriodEnd:       sett.PeriodEnd,
		Status:          sett.Status,
		Sales:           sett.Sales,
		TotalLitresSold: sett.TotalLitresSold,
		GrossMargin:     sett.GrossMargin,
		LoanLines:       sett.LoanLines,
		LoanDeduction:   sett.LoanDeduction,
		OtherBreakdown:  sett.OtherBreakdown,
		TotalDeductions: sett.LoanDeduction.Add(sett.OtherDeduction),
		NetPayable:      sett.NetPayable,
	}

	s.applyRatios(statement)

	if breakdown, err := s.buildDailyBreakdown(ctx, tenantID, sett); err == nil {
		statement.DailyBreakdown = breakdown
	} else {
		s.logger.Warn("Failed to build daily margin breakdown",
			zap.String("settlement_id", settlementID.String()),
			zap.Error(err))
	}

	statement.Comparison = s.buildComparison(ctx, tenantID, sett)

	if loans, err := s.loanRepo.FindActiveByStation(ctx, tenantID, sett.StationID); err == nil && len(loans) > 0 {
		statement.Loans = buildLoanPosition(loans)
	}

	return statement, nil
}

// applyRatios fills the statement's performance ratios from its totals
func (s *StatementService) applyRatios(statement *Statement) {
	if statement.TotalLitresSold.IsPositive() {
		statement.MarginPerLitre = statement.GrossMargin.Div(statement.TotalLitresSold).Round(4)
		statement.MarginEfficiency = statement.MarginPerLitre.
			Div(expectedMarginPerLitre).Mul(decimal.NewFromInt(100)).Round(2)
	}
	if statement.GrossMargin.IsPositive() {
		statement.DeductionRatio = statement.TotalDeductions.Div(statement.GrossMargin).Round(4)
		statement.ProfitabilityIndex = statement.NetPayable.Div(statement.GrossMargin).Round(4)
	}
	statement.Rating = ratingForProfitability(statement.ProfitabilityIndex)
}

func ratingForProfitability(index decimal.Decimal) string {
	switch {
	case index.GreaterThanOrEqual(decimal.NewFromFloat(0.85)):
		return "EXCELLENT"
	case index.GreaterThanOrEqual(decimal.NewFromFloat(0.70)):
		return "GOOD"
	case index.GreaterThanOrEqual(decimal.NewFromFloat(0.50)):
		return "SATISFACTORY"
	}
	return "POOR"
}

// buildDailyBreakdown folds the window's accrual records into per-day totals
func (s *StatementService) buildDailyBreakdown(ctx context.Context, tenantID uuid.UUID, sett *settlement.Settlement) ([]DailyMargin, error) {
	records, err := s.accrualRepo.FindByStationDateRange(ctx, tenantID, sett.StationID, sett.PeriodStart, sett.PeriodEnd)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*DailyMargin)
	order := make([]string, 0)
	for _, record := range records {
		key := record.AccrualDate.Format("2006-01-02")
		day, ok := byDay[key]
		if !ok {
			day = &DailyMargin{Date: record.AccrualDate, LitresSold: decimal.Zero, MarginEarned: decimal.Zero}
			byDay[key] = day
			order = append(order, key)
		}
		day.LitresSold = day.LitresSold.Add(record.LitresSold)
		day.MarginEarned = day.MarginEarned.Add(record.MarginAmount)
	}

	breakdown := make([]DailyMargin, 0, len(order))
	for _, key := range order {
		breakdown = append(breakdown, *byDay[key])
	}
	return breakdown, nil
}

// buildComparison finds the station's previous settlement and derives
// the period-over-period variances
func (s *StatementService) buildComparison(ctx context.Context, tenantID uuid.UUID, sett *settlement.Settlement) *PeriodComparison {
	settlements, err := s.settlementRepo.FindByStation(ctx, tenantID, sett.StationID)
	if err != nil {
		return nil
	}

	var previous *settlement.Settlement
	for _, candidate := range settlements {
		if candidate.ID == sett.ID {
			continue
		}
		if candidate.PeriodEnd.After(sett.PeriodStart) {
			continue
		}
		if previous == nil || candidate.PeriodEnd.After(previous.PeriodEnd) {
			previous = candidate
		}
	}
	if previous == nil {
		return nil
	}

	comparison := &PeriodComparison{
		PreviousGrossMargin: previous.GrossMargin,
		PreviousLitresSold:  previous.TotalLitresSold,
	}
	hundred := decimal.NewFromInt(100)
	if previous.GrossMargin.IsPositive() {
		comparison.MarginVariancePct = sett.GrossMargin.Sub(previous.GrossMargin).
			Div(previous.GrossMargin).Mul(hundred).Round(2)
	}
	if previous.TotalLitresSold.IsPositive() {
		comparison.VolumeVariancePct = sett.TotalLitresSold.Sub(previous.TotalLitresSold).
			Div(previous.TotalLitresSold).Mul(hundred).Round(2)
	}

	five := decimal.NewFromInt(5)
	switch {
	case comparison.MarginVariancePct.GreaterThan(five):
		comparison.Trend = "IMPROVING"
	case comparison.MarginVariancePct.LessThan(five.Neg()):
		comparison.Trend = "DECLINING"
	default:
		comparison.Trend = "STABLE"
	}

	return comparison
}

func buildLoanPosition(loans []*lending.Loan) *LoanPosition {
	position := &LoanPosition{
		ActiveLoans:        len(loans),
		TotalOutstanding:   decimal.Zero,
		MonthlyObligations: decimal.Zero,
	}
	for _, loan := range loans {
		position.TotalOutstanding = position.TotalOutstanding.Add(loan.OutstandingBalance)
		position.MonthlyObligations = position.MonthlyObligations.Add(loan.MonthlyObligation())
		if loan.NextPaymentDate != nil &&
			(position.NextPaymentDue == nil || loan.NextPaymentDate.Before(*position.NextPaymentDue)) {
			position.NextPaymentDue = loan.NextPaymentDate
		}
	}
	position.MonthlyObligations = position.MonthlyObligations.Round(2)
	return position
}
