package credit

import (
	"math"

	"github.com/shopspring/decimal"
)

// VolumeTrend classifies the direction of a station's sales volume
type VolumeTrend string

const (
	VolumeTrendIncreasing VolumeTrend = "INCREASING"
	VolumeTrendStable     VolumeTrend = "STABLE"
	VolumeTrendDecreasing VolumeTrend = "DECREASING"
)

// PortfolioSnapshot is the operational picture of one station used for
// the risk flag assessment
type PortfolioSnapshot struct {
	VolumeTrend              VolumeTrend
	SalesVolatility          float64
	DebtServiceCoverageRatio float64
	DebtToRevenueRatio       float64
	LiquidityRatio           float64
	PaymentReliability       float64
	AveragePaymentDelay      float64
	TotalSettlements         int
	DisputedSettlements      int
	AnnualMarginEarned       decimal.Decimal
}

// RiskAssessment is the operational risk output with its named flags
type RiskAssessment struct {
	RiskScore            int             `json:"risk_score"`
	RiskCategory         RiskCategory    `json:"risk_category"`
	RiskFlags            []string        `json:"risk_flags"`
	ProbabilityOfDefault float64         `json:"probability_of_default"`
	RecommendedLimit     decimal.Decimal `json:"recommended_limit"`
	RequiresIntervention bool            `json:"requires_intervention"`
}

// AssessPortfolioRisk scores a station's operational risk by summing
// the triggered flags and derives the matching exposure limit
func AssessPortfolioRisk(snapshot PortfolioSnapshot) RiskAssessment {
	riskScore := 0
	flags := make([]string, 0)

	if snapshot.VolumeTrend == VolumeTrendDecreasing {
		riskScore += 15
		flags = append(flags, "Declining sales volume trend")
	}
	if snapshot.SalesVolatility > 0.5 {
		riskScore += 10
		flags = append(flags, "High sales volatility")
	}
	if snapshot.DebtServiceCoverageRatio < 1.2 {
		riskScore += 20
		flags = append(flags, "Low debt service coverage")
	}
	if snapshot.DebtToRevenueRatio > 0.4 {
		riskScore += 15
		flags = append(flags, "High debt-to-revenue ratio")
	}
	if snapshot.LiquidityRatio < 1.0 {
		riskScore += 15
		flags = append(flags, "Poor liquidity position")
	}
	if snapshot.PaymentReliability < 80 {
		riskScore += 20
		flags = append(flags, "Poor payment reliability")
	}
	if snapshot.AveragePaymentDelay > 30 {
		riskScore += 10
		flags = append(flags, "Chronic payment delays")
	}
	if snapshot.TotalSettlements > 0 &&
		float64(snapshot.DisputedSettlements) > float64(snapshot.TotalSettlements)*0.1 {
		riskScore += 10
		flags = append(flags, "High settlement dispute rate")
	}

	category := categoryForRiskScore(riskScore)

	return RiskAssessment{
		RiskScore:            riskScore,
		RiskCategory:         category,
		RiskFlags:            flags,
		ProbabilityOfDefault: math.Min(95, float64(riskScore)*1.2),
		RecommendedLimit:     exposureLimit(snapshot.AnnualMarginEarned, category),
		RequiresIntervention: category == RiskCategoryHigh || category == RiskCategoryCritical,
	}
}

func categoryForRiskScore(riskScore int) RiskCategory {
	switch {
	case riskScore <= 20:
		return RiskCategoryLow
	case riskScore <= 40:
		return RiskCategoryMedium
	case riskScore <= 70:
		return RiskCategoryHigh
	default:
		return RiskCategoryCritical
	}
}

// exposureLimit scales annual margin by the risk-banded multiplier
func exposureLimit(annualMargin decimal.Decimal, category RiskCategory) decimal.Decimal {
	multiplier := decimal.NewFromFloat(0.3)
	switch category {
	case RiskCategoryMedium:
		multiplier = decimal.NewFromFloat(0.2)
	case RiskCategoryHigh:
		multiplier = decimal.NewFromFloat(0.1)
	case RiskCategoryCritical:
		multiplier = decimal.NewFromFloat(0.05)
	}
	return annualMargin.Mul(multiplier).Round(2)
}
