package credit

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/fuelerp/backend/internal/domain/accrual"
	"github.com/fuelerp/backend/internal/domain/credit"
	"github.com/fuelerp/backend/internal/domain/lending"
	"github.com/fuelerp/backend/internal/domain/settlement"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultLookbackMonths = 12

// CreditService derives credit scores and operational risk assessments
// from a station's persisted settlement and loan history
type CreditService struct {
	accrualRepo    accrual.MarginAccrualRepository
	settlementRepo settlement.SettlementRepository
	loanRepo       lending.LoanRepository
	scorer         *credit.Scorer
	logger         *zap.Logger
	now            func() time.Time
}

// NewCreditService creates a new CreditService
func NewCreditService(
	accrualRepo accrual.MarginAccrualRepository,
	settlementRepo settlement.SettlementRepository,
	loanRepo lending.LoanRepository,
	logger *zap.Logger,
) *CreditService {
	return &CreditService{
		accrualRepo:    accrualRepo,
		settlementRepo: settlementRepo,
		loanRepo:       loanRepo,
		scorer:         credit.NewScorer(credit.DefaultRiskFactors()),
		logger:         logger,
		now:            time.Now,
	}
}

// AssessRequest tunes one station assessment
type AssessRequest struct {
	// LookbackMonths bounds the accrual history considered, default 12
	LookbackMonths int `json:"lookback_months"`

	// CollateralValue is the appraised value of pledged collateral,
	// when an appraisal is on file
	CollateralValue *decimal.Decimal `json:"collateral_value"`
}

// StationAssessment combines the credit score and the operational risk
// picture for one station
type StationAssessment struct {
	StationID  uuid.UUID             `json:"station_id"`
	AssessedAt time.Time             `json:"assessed_at"`
	Credit     credit.Assessment     `json:"credit"`
	Portfolio  credit.RiskAssessment `json:"portfolio"`
	Input      credit.ScoringInput   `json:"input"`
}

// AssessStation scores a station's creditworthiness and operational
// risk from its accrual, settlement and loan history
func (s *CreditService) AssessStation(ctx context.Context, tenantID, stationID uuid.UUID, req AssessRequest) (*StationAssessment, error) {
	lookback := req.LookbackMonths
	if lookback <= 0 {
		lookback = defaultLookbackMonths
	}

	asOf := s.now()
	from := asOf.AddDate(0, -lookback, 0)

	records, err := s.accrualRepo.FindByStationDateRange(ctx, tenantID, stationID, from, asOf)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, shared.NewDomainError("NOT_FOUND", "Station has no margin history to assess")
	}

	loans, err := s.loanRepo.FindByStation(ctx, tenantID, stationID)
	if err != nil {
		return nil, err
	}

	settlements, err := s.settlementRepo.FindByStation(ctx, tenantID, stationID)
	if err != nil {
		return nil, err
	}

	income := s.summarizeIncome(records)
	debt := s.summarizeDebt(ctx, tenantID, loans, asOf)

	input := credit.ScoringInput{
		PaymentReliability:  debt.reliability,
		AveragePaymentDelay: debt.averageDelay,
		DebtToIncomeRatio:   ratio(debt.monthlyObligations, income.monthlyMargin),
		VolumeVolatility:    income.volatility,
		OperatingMonths:     income.operatingMonths,
		MarginPerLitre:      income.marginPerLitre,
		CollateralCoverage:  collateralCoverage(req.CollateralValue, debt.totalOutstanding),
		MonthlyIncome:       income.monthlyMargin,
	}

	snapshot := credit.PortfolioSnapshot{
		VolumeTrend:              income.trend,
		SalesVolatility:          income.volatility,
		DebtServiceCoverageRatio: coverage(income.monthlyMargin, debt.monthlyObligations),
		DebtToRevenueRatio:       ratio(debt.totalOutstanding, income.annualMargin),
		LiquidityRatio:           coverage(income.monthlyNetPayable(settlements, lookback), debt.monthlyObligations),
		PaymentReliability:       debt.reliability,
		AveragePaymentDelay:      debt.averageDelay,
		TotalSettlements:         len(settlements),
		DisputedSettlements:      countDisputed(settlements),
		AnnualMarginEarned:       income.annualMargin,
	}

	assessment := &StationAssessment{
		StationID:  stationID,
		AssessedAt: asOf,
		Credit:     s.scorer.Assess(input),
		Portfolio:  credit.AssessPortfolioRisk(snapshot),
		Input:      input,
	}

	s.logger.Info("Station credit assessment completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("station_id", stationID.String()),
		zap.Int("score", assessment.Credit.Score),
		zap.String("risk_category", assessment.Portfolio.RiskCategory.String()))

	return assessment, nil
}

type incomeSummary struct {
	monthlyMargin   decimal.Decimal
	annualMargin    decimal.Decimal
	marginPerLitre  decimal.Decimal
	volatility      float64
	operatingMonths int
	trend           credit.VolumeTrend
}

// summarizeIncome folds the accrual history into monthly buckets and
// derives the volume statistics the scorer consumes
func (s *CreditService) summarizeIncome(records []*accrual.MarginAccrualRecord) incomeSummary {
	type monthBucket struct {
		litres decimal.Decimal
		margin decimal.Decimal
	}

	byMonth := make(map[string]*monthBucket)
	totalLitres, totalMargin := decimal.Zero, decimal.Zero
	for _, record := range records {
		key := record.AccrualDate.Format("2006-01")
		bucket, ok := byMonth[key]
		if !ok {
			bucket = &monthBucket{litres: decimal.Zero, margin: decimal.Zero}
			byMonth[key] = bucket
		}
		bucket.litres = bucket.litres.Add(record.LitresSold)
		bucket.margin = bucket.margin.Add(record.MarginAmount)
		totalLitres = totalLitres.Add(record.LitresSold)
		totalMargin = totalMargin.Add(record.MarginAmount)
	}

	months := make([]string, 0, len(byMonth))
	for key := range byMonth {
		months = append(months, key)
	}
	sort.Strings(months)

	volumes := make([]float64, 0, len(months))
	for _, key := range months {
		volumes = append(volumes, byMonth[key].litres.InexactFloat64())
	}

	summary := incomeSummary{
		annualMargin:    totalMargin,
		operatingMonths: len(months),
		volatility:      coefficientOfVariation(volumes),
		trend:           volumeTrend(volumes),
	}
	if len(months) > 0 {
		summary.monthlyMargin = totalMargin.Div(decimal.NewFromInt(int64(len(months)))).Round(2)
	} else {
		summary.monthlyMargin = decimal.Zero
	}
	if totalLitres.IsPositive() {
		summary.marginPerLitre = totalMargin.Div(totalLitres).Round(4)
	} else {
		summary.marginPerLitre = decimal.Zero
	}
	return summary
}

// monthlyNetPayable averages the realized settlement payouts over the
// lookback period as a liquidity proxy
func (i incomeSummary) monthlyNetPayable(settlements []*settlement.Settlement, lookbackMonths int) decimal.Decimal {
	if lookbackMonths <= 0 || len(settlements) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, sett := range settlements {
		if sett.Status == settlement.SettlementStatusPaid {
			total = total.Add(sett.NetPayable)
		}
	}
	return total.Div(decimal.NewFromInt(int64(lookbackMonths))).Round(2)
}

type debtSummary struct {
	totalOutstanding   decimal.Decimal
	monthlyObligations decimal.Decimal
	reliability        float64
	averageDelay       float64
}

func (s *CreditService) summarizeDebt(ctx context.Context, tenantID uuid.UUID, loans []*lending.Loan, asOf time.Time) debtSummary {
	summary := debtSummary{
		totalOutstanding:   decimal.Zero,
		monthlyObligations: decimal.Zero,
		reliability:        100,
	}

	onTime, late := 0, 0
	activeCount, totalDelay := 0, 0
	for _, loan := range loans {
		if loan.Status == lending.LoanStatusActive {
			summary.totalOutstanding = summary.totalOutstanding.Add(loan.OutstandingBalance)
			summary.monthlyObligations = summary.monthlyObligations.Add(loan.MonthlyObligation())
			totalDelay += loan.DaysPastDueAsOf(asOf)
			activeCount++
		}

		payments, err := s.loanRepo.FindPaymentsByLoan(ctx, tenantID, loan.ID)
		if err != nil {
			s.logger.Warn("Failed to load loan payments for scoring",
				zap.String("loan_id", loan.ID.String()),
				zap.Error(err))
			continue
		}
		loanOnTime, loanLate := loan.CountOnTimePayments(payments)
		onTime += loanOnTime
		late += loanLate
	}

	if onTime+late > 0 {
		summary.reliability = float64(onTime) / float64(onTime+late) * 100
	}
	if activeCount > 0 {
		summary.averageDelay = float64(totalDelay) / float64(activeCount)
	}
	summary.monthlyObligations = summary.monthlyObligations.Round(2)
	return summary
}

func countDisputed(settlements []*settlement.Settlement) int {
	disputed := 0
	for _, sett := range settlements {
		if sett.Status == settlement.SettlementStatusDisputed {
			disputed++
		}
	}
	return disputed
}

// coefficientOfVariation measures relative volume dispersion, 0 for
// fewer than two observations
func coefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance) / mean
}

// volumeTrend compares the most recent three months against the three
// before them, within a 5% stability band
func volumeTrend(volumes []float64) credit.VolumeTrend {
	if len(volumes) < 6 {
		return credit.VolumeTrendStable
	}
	recent := average(volumes[len(volumes)-3:])
	prior := average(volumes[len(volumes)-6 : len(volumes)-3])
	if prior == 0 {
		return credit.VolumeTrendStable
	}
	change := (recent - prior) / prior
	switch {
	case change > 0.05:
		return credit.VolumeTrendIncreasing
	case change < -0.05:
		return credit.VolumeTrendDecreasing
	}
	return credit.VolumeTrendStable
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func ratio(numerator, denominator decimal.Decimal) float64 {
	if !denominator.IsPositive() {
		return 0
	}
	return numerator.Div(denominator).InexactFloat64()
}

// coverage reports how many times income covers an obligation. A
// station with no obligations is fully covered.
func coverage(income, obligations decimal.Decimal) float64 {
	if !obligations.IsPositive() {
		return 2.0
	}
	return income.Div(obligations).InexactFloat64()
}

func collateralCoverage(value *decimal.Decimal, outstanding decimal.Decimal) float64 {
	if value == nil || !value.IsPositive() {
		return 0
	}
	if !outstanding.IsPositive() {
		return 1.5
	}
	return value.Div(outstanding).InexactFloat64()
}
