package lending

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateScheduleMonthly(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	schedule, err := GenerateSchedule(
		decimal.NewFromInt(12000),
		decimal.NewFromInt(24),
		12,
		FrequencyMonthly,
		start,
	)
	require.NoError(t, err)
	require.Len(t, schedule, 12)

	// 24%/yr monthly is a 2% periodic rate; fixed payment ~= 1135
	first := schedule[0]
	assert.Equal(t, 1, first.InstallmentNumber)
	assert.Equal(t, start.AddDate(0, 1, 0), first.DueDate)
	assert.InDelta(t, 240.00, first.InterestAmount.InexactFloat64(), 0.01)
	assert.InDelta(t, 1135.0, first.TotalAmount.InexactFloat64(), 0.5)
	assert.InDelta(t, 12000-first.PrincipalAmount.InexactFloat64(), first.BalanceAfter.InexactFloat64(), 0.01)

	// Principal portions sum back to the principal; final balance is zero
	totalPrincipal := decimal.Zero
	for _, entry := range schedule {
		totalPrincipal = totalPrincipal.Add(entry.PrincipalAmount)
	}
	assert.InDelta(t, 12000, totalPrincipal.InexactFloat64(), 0.01)
	assert.InDelta(t, 0, schedule[len(schedule)-1].BalanceAfter.InexactFloat64(), 0.01)

	// Interest declines as the balance reduces
	assert.True(t, schedule[5].InterestAmount.LessThan(schedule[0].InterestAmount))
	assert.True(t, schedule[11].InterestAmount.LessThan(schedule[5].InterestAmount))
}

func TestGenerateScheduleFrequencies(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		frequency RepaymentFrequency
		tenor     int
		periods   int
		secondDue time.Time
	}{
		{FrequencyMonthly, 12, 12, start.AddDate(0, 2, 0)},
		{FrequencyWeekly, 12, 52, start.AddDate(0, 0, 14)},
		{FrequencyBiWeekly, 12, 26, start.AddDate(0, 0, 28)},
		{FrequencyDaily, 12, 365, start.AddDate(0, 0, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.frequency.String(), func(t *testing.T) {
			schedule, err := GenerateSchedule(
				decimal.NewFromInt(10000),
				decimal.NewFromInt(18),
				tt.tenor,
				tt.frequency,
				start,
			)
			require.NoError(t, err)
			assert.Len(t, schedule, tt.periods)
			assert.Equal(t, tt.secondDue, schedule[1].DueDate)
			assert.InDelta(t, 0, schedule[len(schedule)-1].BalanceAfter.InexactFloat64(), 0.01)
		})
	}
}

func TestGenerateScheduleValidation(t *testing.T) {
	start := time.Now()

	_, err := GenerateSchedule(decimal.Zero, decimal.NewFromInt(10), 12, FrequencyMonthly, start)
	assert.Error(t, err)

	_, err = GenerateSchedule(decimal.NewFromInt(5000), decimal.NewFromInt(10), 0, FrequencyMonthly, start)
	assert.Error(t, err)

	_, err = GenerateSchedule(decimal.NewFromInt(5000), decimal.NewFromInt(10), 12, RepaymentFrequency("YEARLY"), start)
	assert.Error(t, err)
}

func TestAmortizationScheduleScan(t *testing.T) {
	schedule, err := GenerateSchedule(
		decimal.NewFromInt(6000),
		decimal.NewFromInt(12),
		6,
		FrequencyMonthly,
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	value, err := schedule.Value()
	require.NoError(t, err)

	var restored AmortizationSchedule
	require.NoError(t, restored.Scan(value))
	require.Len(t, restored, len(schedule))
	assert.Equal(t, schedule[0].InstallmentNumber, restored[0].InstallmentNumber)
	assert.True(t, schedule[0].TotalAmount.Equal(restored[0].TotalAmount))
}

func TestMonthlyEquivalentFactor(t *testing.T) {
	assert.True(t, FrequencyDaily.MonthlyEquivalentFactor().Equal(decimal.NewFromInt(30)))
	assert.True(t, FrequencyWeekly.MonthlyEquivalentFactor().Equal(decimal.NewFromFloat(4.33)))
	assert.True(t, FrequencyBiWeekly.MonthlyEquivalentFactor().Equal(decimal.NewFromFloat(2.17)))
	assert.True(t, FrequencyMonthly.MonthlyEquivalentFactor().Equal(decimal.NewFromInt(1)))
}
