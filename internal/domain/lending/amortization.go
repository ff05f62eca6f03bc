package lending

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RepaymentFrequency represents how often loan installments fall due
type RepaymentFrequency string

const (
	FrequencyDaily    RepaymentFrequency = "DAILY"
	FrequencyWeekly   RepaymentFrequency = "WEEKLY"
	FrequencyBiWeekly RepaymentFrequency = "BI_WEEKLY"
	FrequencyMonthly  RepaymentFrequency = "MONTHLY"
)

// IsValid checks if the frequency is a valid RepaymentFrequency
func (f RepaymentFrequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// String returns the string representation of RepaymentFrequency
func (f RepaymentFrequency) String() string {
	return string(f)
}

// PaymentsPerYear returns the number of installments per year
func (f RepaymentFrequency) PaymentsPerYear() int {
	switch f {
	case FrequencyDaily:
		return 365
	case FrequencyWeekly:
		return 52
	case FrequencyBiWeekly:
		return 26
	default:
		return 12
	}
}

// MonthlyEquivalentFactor converts one installment amount to its
// monthly-equivalent obligation
func (f RepaymentFrequency) MonthlyEquivalentFactor() decimal.Decimal {
	switch f {
	case FrequencyDaily:
		return decimal.NewFromInt(30)
	case FrequencyWeekly:
		return decimal.NewFromFloat(4.33)
	case FrequencyBiWeekly:
		return decimal.NewFromFloat(2.17)
	default:
		return decimal.NewFromInt(1)
	}
}

// DueDateFor returns the due date of installment n (1-based) counted
// from the start date
func (f RepaymentFrequency) DueDateFor(startDate time.Time, installment int) time.Time {
	switch f {
	case FrequencyDaily:
		return startDate.AddDate(0, 0, installment)
	case FrequencyWeekly:
		return startDate.AddDate(0, 0, installment*7)
	case FrequencyBiWeekly:
		return startDate.AddDate(0, 0, installment*14)
	default:
		return startDate.AddDate(0, installment, 0)
	}
}

// NextDueDate returns the first due date after the given date
func (f RepaymentFrequency) NextDueDate(from time.Time) time.Time {
	return f.DueDateFor(from, 1)
}

// ScheduleEntry is one installment of an amortization schedule.
// Entries are generated once and never renumbered.
type ScheduleEntry struct {
	InstallmentNumber int             `json:"installment_number"`
	DueDate           time.Time       `json:"due_date"`
	PrincipalAmount   decimal.Decimal `json:"principal_amount"`
	InterestAmount    decimal.Decimal `json:"interest_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	BalanceAfter      decimal.Decimal `json:"balance_after"`
}

// AmortizationSchedule is the ordered installment list embedded in a Loan,
// stored as JSONB
type AmortizationSchedule []ScheduleEntry

// Value implements driver.Valuer interface for GORM to store as JSONB
func (s AmortizationSchedule) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (s *AmortizationSchedule) Scan(value interface{}) error {
	if value == nil {
		*s = AmortizationSchedule{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan AmortizationSchedule: unsupported type")
	}

	if len(bytes) == 0 {
		*s = AmortizationSchedule{}
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// GenerateSchedule builds a fixed-payment reducing-balance schedule.
// Each installment's interest is the running balance times the periodic
// rate; the schedule stops early if the balance reaches zero.
func GenerateSchedule(
	principal decimal.Decimal,
	annualRatePercent decimal.Decimal,
	tenorMonths int,
	frequency RepaymentFrequency,
	startDate time.Time,
) (AmortizationSchedule, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_PRINCIPAL", "Principal must be positive")
	}
	if !frequency.IsValid() {
		return nil, shared.NewDomainError("INVALID_FREQUENCY", "Repayment frequency is not valid")
	}
	if tenorMonths <= 0 {
		return nil, shared.NewDomainError("INVALID_TENOR", "Tenor must be positive")
	}

	paymentsPerYear := frequency.PaymentsPerYear()
	periodicRate := annualRatePercent.
		Div(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(paymentsPerYear)))
	totalPeriods := tenorMonths * paymentsPerYear / 12
	if totalPeriods < 1 {
		totalPeriods = 1
	}

	var payment decimal.Decimal
	if periodicRate.IsZero() {
		payment = principal.Div(decimal.NewFromInt(int64(totalPeriods)))
	} else {
		compound := periodicRate.Add(decimal.NewFromInt(1)).Pow(decimal.NewFromInt(int64(totalPeriods)))
		payment = principal.Mul(periodicRate).Mul(compound).Div(compound.Sub(decimal.NewFromInt(1)))
	}

	schedule := make(AmortizationSchedule, 0, totalPeriods)
	balance := principal

	for i := 1; i <= totalPeriods; i++ {
		interest := balance.Mul(periodicRate)
		principalPortion := payment.Sub(interest)
		if principalPortion.GreaterThan(balance) {
			principalPortion = balance
		}
		balance = balance.Sub(principalPortion)
		if balance.IsNegative() {
			balance = decimal.Zero
		}

		schedule = append(schedule, ScheduleEntry{
			InstallmentNumber: i,
			DueDate:           frequency.DueDateFor(startDate, i),
			PrincipalAmount:   principalPortion.Round(4),
			InterestAmount:    interest.Round(4),
			TotalAmount:       principalPortion.Add(interest).Round(4),
			BalanceAfter:      balance.Round(4),
		})

		if balance.LessThanOrEqual(decimal.Zero) {
			break
		}
	}

	return schedule, nil
}
