package credit

import (
	"math"

	"github.com/shopspring/decimal"
)

// RiskCategory buckets a credit score or operational risk score
type RiskCategory string

const (
	RiskCategoryLow      RiskCategory = "LOW"
	RiskCategoryMedium   RiskCategory = "MEDIUM"
	RiskCategoryHigh     RiskCategory = "HIGH"
	RiskCategoryCritical RiskCategory = "CRITICAL"
)

// String returns the string representation of RiskCategory
func (c RiskCategory) String() string {
	return string(c)
}

// Component weights. The six components always sum to 1.
const (
	WeightPaymentHistory    = 0.35
	WeightDebtToIncome      = 0.30
	WeightBusinessStability = 0.15
	WeightProfitability     = 0.10
	WeightCollateral        = 0.05
	WeightIndustryFactors   = 0.05
)

// ScoreComponent is one weighted input to the credit score
type ScoreComponent struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Components holds the six weighted components of the credit score
type Components struct {
	PaymentHistory    ScoreComponent `json:"payment_history"`
	DebtToIncomeRatio ScoreComponent `json:"debt_to_income_ratio"`
	BusinessStability ScoreComponent `json:"business_stability"`
	Profitability     ScoreComponent `json:"profitability"`
	Collateral        ScoreComponent `json:"collateral"`
	IndustryFactors   ScoreComponent `json:"industry_factors"`
}

func (c Components) all() []ScoreComponent {
	return []ScoreComponent{
		c.PaymentHistory,
		c.DebtToIncomeRatio,
		c.BusinessStability,
		c.Profitability,
		c.Collateral,
		c.IndustryFactors,
	}
}

// RiskFactors are the exogenous risk weights folded into the default
// probability. Each factor is a fraction in [0, 1].
type RiskFactors struct {
	IndustryRisk      float64 `json:"industry_risk"`
	LocationRisk      float64 `json:"location_risk"`
	ConcentrationRisk float64 `json:"concentration_risk"`
	OperationalRisk   float64 `json:"operational_risk"`
	FinancialRisk     float64 `json:"financial_risk"`
	MacroeconomicRisk float64 `json:"macroeconomic_risk"`
}

// Sum returns the total of all factor weights
func (f RiskFactors) Sum() float64 {
	return f.IndustryRisk + f.LocationRisk + f.ConcentrationRisk +
		f.OperationalRisk + f.FinancialRisk + f.MacroeconomicRisk
}

// DefaultRiskFactors returns the baseline factor set for a retail fuel
// station in the Ghanaian market
func DefaultRiskFactors() RiskFactors {
	return RiskFactors{
		IndustryRisk:      0.3,
		LocationRisk:      0.2,
		ConcentrationRisk: 0.4,
		OperationalRisk:   0.25,
		FinancialRisk:     0.3,
		MacroeconomicRisk: 0.35,
	}
}

// ScoringInput carries the portfolio observations the components are
// derived from. Ratios are fractions, reliability is a percentage.
type ScoringInput struct {
	// PaymentReliability is the share of installments paid within the
	// on-time tolerance, as a percentage 0..100
	PaymentReliability float64

	// AveragePaymentDelay is the mean days past due across active loans
	AveragePaymentDelay float64

	// DebtToIncomeRatio is monthly debt service over monthly income
	DebtToIncomeRatio float64

	// VolumeVolatility is the coefficient of variation of monthly
	// litres sold. Lower is more stable.
	VolumeVolatility float64

	// OperatingMonths is how long the station has been accruing margin
	OperatingMonths int

	// MarginPerLitre is the average realized margin rate
	MarginPerLitre decimal.Decimal

	// CollateralCoverage is pledged collateral value over outstanding
	// debt. Zero when there is no debt or no collateral on file.
	CollateralCoverage float64

	// MonthlyIncome is the station's average monthly gross margin
	MonthlyIncome decimal.Decimal
}

// Assessment is the scoring output consumed by loan approval
type Assessment struct {
	Score                int             `json:"score"`
	Components           Components      `json:"components"`
	RiskFactors          RiskFactors     `json:"risk_factors"`
	RiskCategory         RiskCategory    `json:"risk_category"`
	ProbabilityOfDefault float64         `json:"probability_of_default"`
	RecommendedLimit     decimal.Decimal `json:"recommended_limit"`
	InterestRatePremium  float64         `json:"interest_rate_premium"`
	RequiredCollateral   decimal.Decimal `json:"required_collateral"`
}

// Scorer derives credit assessments from settlement and loan history
type Scorer struct {
	factors RiskFactors
}

// NewScorer creates a scorer with the given risk factor baseline
func NewScorer(factors RiskFactors) *Scorer {
	return &Scorer{factors: factors}
}

// Assess produces the full credit assessment for one station
func (s *Scorer) Assess(input ScoringInput) Assessment {
	components := s.DeriveComponents(input)
	score := CreditScore(components)
	limit := RecommendedLimit(input.MonthlyIncome, score)

	return Assessment{
		Score:                score,
		Components:           components,
		RiskFactors:          s.factors,
		RiskCategory:         CategoryForScore(score),
		ProbabilityOfDefault: ProbabilityOfDefault(score, s.factors),
		RecommendedLimit:     limit,
		InterestRatePremium:  InterestRatePremium(score, s.factors),
		RequiredCollateral:   RequiredCollateral(limit, score),
	}
}

// DeriveComponents maps the portfolio observations onto the six
// weighted component scores, each on the 0..1000 scale
func (s *Scorer) DeriveComponents(input ScoringInput) Components {
	return Components{
		PaymentHistory:    ScoreComponent{Score: paymentHistoryScore(input), Weight: WeightPaymentHistory},
		DebtToIncomeRatio: ScoreComponent{Score: debtToIncomeScore(input.DebtToIncomeRatio), Weight: WeightDebtToIncome},
		BusinessStability: ScoreComponent{Score: stabilityScore(input), Weight: WeightBusinessStability},
		Profitability:     ScoreComponent{Score: profitabilityScore(input.MarginPerLitre), Weight: WeightProfitability},
		Collateral:        ScoreComponent{Score: collateralScore(input.CollateralCoverage), Weight: WeightCollateral},
		IndustryFactors:   ScoreComponent{Score: industryScore(s.factors), Weight: WeightIndustryFactors},
	}
}

// paymentHistoryScore rewards on-time reliability and penalizes
// sustained delay. A perfect payer scores 950, a chronic defaulter
// bottoms out at 200.
func paymentHistoryScore(input ScoringInput) float64 {
	score := 200 + input.PaymentReliability*7.5
	score -= math.Min(input.AveragePaymentDelay, 90) * 2
	return clampScore(score)
}

// debtToIncomeScore maps the ratio band [0, 1] onto [850, 300]. A
// station with no debt service scores the ceiling.
func debtToIncomeScore(ratio float64) float64 {
	if ratio <= 0 {
		return 850
	}
	return clampScore(850 - math.Min(ratio, 1)*550)
}

// stabilityScore combines operating tenure with volume consistency
func stabilityScore(input ScoringInput) float64 {
	tenure := math.Min(float64(input.OperatingMonths)/36, 1) * 400
	consistency := (1 - math.Min(input.VolumeVolatility, 1)) * 500
	return clampScore(100 + tenure + consistency)
}

// profitabilityScore scales the realized margin against the 0.50
// GHS/litre benchmark
func profitabilityScore(marginPerLitre decimal.Decimal) float64 {
	rate, _ := marginPerLitre.Float64()
	return clampScore(300 + math.Min(rate/0.50, 1.2)*500)
}

// collateralScore rewards coverage up to 150% of outstanding debt
func collateralScore(coverage float64) float64 {
	return clampScore(300 + math.Min(coverage/1.5, 1)*600)
}

// industryScore converts the exogenous factor baseline into a
// component score. Higher aggregate risk lowers the score.
func industryScore(factors RiskFactors) float64 {
	return clampScore(900 - factors.Sum()*200)
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1000 {
		return 1000
	}
	return score
}

// CreditScore is the weighted sum of the components, rounded to the
// nearest point on the 0..1000 scale
func CreditScore(components Components) int {
	weightedScore := 0.0
	totalWeight := 0.0
	for _, component := range components.all() {
		weightedScore += component.Score * component.Weight
		totalWeight += component.Weight
	}
	if totalWeight == 0 {
		return 500
	}
	return int(math.Round(weightedScore / totalWeight))
}

// ProbabilityOfDefault derives the PD percentage from the score and
// the exogenous factors, capped at 95
func ProbabilityOfDefault(score int, factors RiskFactors) float64 {
	baseRate := math.Max(0, (800-float64(score))/10)
	return math.Min(95, baseRate+factors.Sum()*10)
}

// RecommendedLimit is three months of income scaled by the score
// against the 800 benchmark, floored at 10% of the base
func RecommendedLimit(monthlyIncome decimal.Decimal, score int) decimal.Decimal {
	baseLimit := monthlyIncome.Mul(decimal.NewFromInt(3))
	multiplier := math.Max(0.1, float64(score)/800)
	return baseLimit.Mul(decimal.NewFromFloat(multiplier)).Round(2)
}

// InterestRatePremium is the pricing add-on in percentage points for
// scores below the 750 benchmark plus the factor surcharge
func InterestRatePremium(score int, factors RiskFactors) float64 {
	basePremium := math.Max(0, (750-float64(score))/100)
	return basePremium + factors.Sum()
}

// RequiredCollateral returns the collateral a new facility must carry:
// none at 700+, half the limit at 600+, 80% below that
func RequiredCollateral(limit decimal.Decimal, score int) decimal.Decimal {
	switch {
	case score >= 700:
		return decimal.Zero
	case score >= 600:
		return limit.Mul(decimal.NewFromFloat(0.5)).Round(2)
	default:
		return limit.Mul(decimal.NewFromFloat(0.8)).Round(2)
	}
}

// CategoryForScore buckets a credit score
func CategoryForScore(score int) RiskCategory {
	switch {
	case score >= 750:
		return RiskCategoryLow
	case score >= 650:
		return RiskCategoryMedium
	case score >= 550:
		return RiskCategoryHigh
	default:
		return RiskCategoryCritical
	}
}
