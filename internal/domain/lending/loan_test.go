package lending

import (
	"testing"
	"time"

	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoan(t *testing.T) *Loan {
	t.Helper()
	loan, err := NewLoan(
		uuid.New(),
		uuid.New(),
		uuid.New(),
		"LOAN-ab12-1700000000",
		decimal.NewFromInt(12000),
		decimal.NewFromInt(24),
		12,
		FrequencyMonthly,
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		decimal.NewFromFloat(0.05),
		7,
		"", "", "working capital",
	)
	require.NoError(t, err)
	return loan
}

func newActiveLoan(t *testing.T) *Loan {
	t.Helper()
	loan := newTestLoan(t)
	require.NoError(t, loan.Approve(uuid.New()))
	loan.ClearDomainEvents()
	return loan
}

func TestNewLoan(t *testing.T) {
	t.Run("creates pending loan with schedule", func(t *testing.T) {
		loan := newTestLoan(t)
		assert.Equal(t, LoanStatusPendingApproval, loan.Status)
		assert.True(t, loan.OutstandingBalance.Equal(loan.Principal))
		assert.Len(t, loan.Schedule, 12)
		assert.True(t, loan.InstallmentAmount.Equal(loan.Schedule[0].TotalAmount))
		assert.Equal(t, loan.StartDate.AddDate(0, 12, 0), loan.MaturityDate)
		assert.Nil(t, loan.NextPaymentDate)

		events := loan.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, "LoanCreated", events[0].EventType())
	})

	t.Run("rejects out of range parameters", func(t *testing.T) {
		base := newTestLoan(t)
		tests := []struct {
			name      string
			principal decimal.Decimal
			rate      decimal.Decimal
			tenor     int
		}{
			{"principal below minimum", decimal.NewFromInt(999), base.InterestRate, 12},
			{"principal above maximum", decimal.NewFromInt(100001), base.InterestRate, 12},
			{"zero rate", decimal.NewFromInt(12000), decimal.Zero, 12},
			{"rate above maximum", decimal.NewFromInt(12000), decimal.NewFromInt(51), 12},
			{"tenor too short", decimal.NewFromInt(12000), base.InterestRate, 2},
			{"tenor too long", decimal.NewFromInt(12000), base.InterestRate, 61},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewLoan(uuid.New(), uuid.New(), uuid.New(), "LOAN-x",
					tt.principal, tt.rate, tt.tenor, FrequencyMonthly,
					time.Now(), decimal.NewFromFloat(0.05), 7, "", "", "")
				require.Error(t, err)

				var domainErr *shared.DomainError
				require.ErrorAs(t, err, &domainErr)
				assert.Equal(t, "VALIDATION_FAILURE", domainErr.Code)
			})
		}
	})
}

func TestLoanApprove(t *testing.T) {
	t.Run("activates pending loan", func(t *testing.T) {
		loan := newTestLoan(t)
		approver := uuid.New()

		require.NoError(t, loan.Approve(approver))

		assert.Equal(t, LoanStatusActive, loan.Status)
		require.NotNil(t, loan.NextPaymentDate)
		assert.Equal(t, loan.StartDate.AddDate(0, 1, 0), *loan.NextPaymentDate)
		assert.Equal(t, approver, *loan.ApprovedBy)
	})

	t.Run("rejects non-pending loan", func(t *testing.T) {
		loan := newActiveLoan(t)
		err := loan.Approve(uuid.New())
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATE", domainErr.Code)
	})
}

func TestAllocatePayment(t *testing.T) {
	t.Run("allocates penalty then interest then principal", func(t *testing.T) {
		loan := newActiveLoan(t)
		loan.PenaltyAmount = decimal.NewFromInt(100)

		// Monthly interest on 12000 at 24%/yr is 240
		allocation := loan.AllocatePayment(decimal.NewFromInt(1000))

		assert.True(t, allocation.Penalty.Equal(decimal.NewFromInt(100)))
		assert.True(t, allocation.Interest.Equal(decimal.NewFromInt(240)))
		assert.True(t, allocation.Principal.Equal(decimal.NewFromInt(660)))
	})

	t.Run("partial payment covers penalty first", func(t *testing.T) {
		loan := newActiveLoan(t)
		loan.PenaltyAmount = decimal.NewFromInt(100)

		allocation := loan.AllocatePayment(decimal.NewFromInt(60))
		assert.True(t, allocation.Penalty.Equal(decimal.NewFromInt(60)))
		assert.True(t, allocation.Interest.IsZero())
		assert.True(t, allocation.Principal.IsZero())
	})

	t.Run("payment covering penalty spills into interest", func(t *testing.T) {
		loan := newActiveLoan(t)
		loan.PenaltyAmount = decimal.NewFromInt(100)

		allocation := loan.AllocatePayment(decimal.NewFromInt(150))
		assert.True(t, allocation.Penalty.Equal(decimal.NewFromInt(100)))
		assert.True(t, allocation.Interest.Equal(decimal.NewFromInt(50)))
		assert.True(t, allocation.Principal.IsZero())
	})
}

func TestProcessPayment(t *testing.T) {
	t.Run("applies allocation and advances next payment date", func(t *testing.T) {
		loan := newActiveLoan(t)
		paymentDate := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

		allocation, err := loan.ProcessPayment(decimal.NewFromInt(1240), paymentDate)
		require.NoError(t, err)

		assert.True(t, allocation.Interest.Equal(decimal.NewFromInt(240)))
		assert.True(t, allocation.Principal.Equal(decimal.NewFromInt(1000)))
		assert.True(t, loan.OutstandingBalance.Equal(decimal.NewFromInt(11000)))
		assert.True(t, loan.TotalPaid.Equal(decimal.NewFromInt(1240)))
		assert.True(t, loan.TotalInterestPaid.Equal(decimal.NewFromInt(240)))
		require.NotNil(t, loan.NextPaymentDate)
		assert.Equal(t, paymentDate.AddDate(0, 1, 0), *loan.NextPaymentDate)

		events := loan.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, "LoanPaymentProcessed", events[0].EventType())
	})

	t.Run("completes loan when balance reaches zero", func(t *testing.T) {
		loan := newActiveLoan(t)
		loan.OutstandingBalance = decimal.NewFromInt(500)

		// 500 balance: interest 10, principal 490, remainder ignored
		_, err := loan.ProcessPayment(decimal.NewFromInt(600), time.Now())
		require.NoError(t, err)

		assert.Equal(t, LoanStatusCompleted, loan.Status)
		assert.True(t, loan.OutstandingBalance.IsZero())
		assert.Nil(t, loan.NextPaymentDate)
		assert.NotNil(t, loan.CompletedAt)

		types := make([]string, 0)
		for _, e := range loan.GetDomainEvents() {
			types = append(types, e.EventType())
		}
		assert.Contains(t, types, "LoanCompleted")
	})

	t.Run("rejects payment on non-active loan", func(t *testing.T) {
		loan := newTestLoan(t)
		_, err := loan.ProcessPayment(decimal.NewFromInt(100), time.Now())
		assert.Error(t, err)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		loan := newActiveLoan(t)
		_, err := loan.ProcessPayment(decimal.Zero, time.Now())
		assert.Error(t, err)
	})
}

func TestApplyLumpSum(t *testing.T) {
	t.Run("caps applied amount at outstanding balance", func(t *testing.T) {
		loan := newActiveLoan(t)
		loan.OutstandingBalance = decimal.NewFromInt(300)

		applied, err := loan.ApplyLumpSum(decimal.NewFromInt(500), time.Now())
		require.NoError(t, err)

		assert.True(t, applied.Equal(decimal.NewFromInt(300)))
		assert.Equal(t, LoanStatusCompleted, loan.Status)
	})

	t.Run("partial sweep leaves loan active", func(t *testing.T) {
		loan := newActiveLoan(t)

		applied, err := loan.ApplyLumpSum(decimal.NewFromInt(200), time.Now())
		require.NoError(t, err)

		assert.True(t, applied.Equal(decimal.NewFromInt(200)))
		assert.Equal(t, LoanStatusActive, loan.Status)
		assert.True(t, loan.OutstandingBalance.Equal(decimal.NewFromInt(11800)))
	})

	t.Run("rejects sweep on pending loan", func(t *testing.T) {
		loan := newTestLoan(t)
		_, err := loan.ApplyLumpSum(decimal.NewFromInt(100), time.Now())
		assert.Error(t, err)
	})
}

func TestRestructure(t *testing.T) {
	t.Run("creates active successor from outstanding balance", func(t *testing.T) {
		original := newActiveLoan(t)
		_, err := original.ProcessPayment(decimal.NewFromInt(1240), time.Now())
		require.NoError(t, err)

		require.NoError(t, original.MarkRestructured())
		assert.Equal(t, LoanStatusRestructured, original.Status)

		successor, err := NewRestructuredLoan(original, "RESTR-ab12-1700000001",
			nil, nil, nil, nil, 30, "cash flow stress")
		require.NoError(t, err)

		assert.Equal(t, LoanStatusActive, successor.Status)
		assert.True(t, successor.Principal.Equal(decimal.NewFromInt(11000)))
		assert.Equal(t, original.ID, *successor.OriginalLoanID)
		assert.NotNil(t, successor.NextPaymentDate)
		assert.True(t, successor.TotalPaid.IsZero())
		assert.Contains(t, successor.Notes, "RESTRUCTURED: cash flow stress")
	})

	t.Run("honors supplied new terms", func(t *testing.T) {
		original := newActiveLoan(t)
		require.NoError(t, original.MarkRestructured())

		newTenor := 24
		newRate := decimal.NewFromInt(18)
		successor, err := NewRestructuredLoan(original, "RESTR-ab12-1700000002",
			nil, &newRate, &newTenor, nil, 0, "renegotiated")
		require.NoError(t, err)

		assert.Equal(t, 24, successor.TenorMonths)
		assert.True(t, successor.InterestRate.Equal(newRate))
		assert.Len(t, successor.Schedule, 24)
	})

	t.Run("cannot restructure a completed loan", func(t *testing.T) {
		loan := newActiveLoan(t)
		loan.OutstandingBalance = decimal.NewFromInt(10)
		_, err := loan.ProcessPayment(decimal.NewFromInt(100), time.Now())
		require.NoError(t, err)

		assert.Error(t, loan.MarkRestructured())
	})

	t.Run("successor requires restructured original", func(t *testing.T) {
		loan := newActiveLoan(t)
		_, err := NewRestructuredLoan(loan, "RESTR-x", nil, nil, nil, nil, 0, "reason")
		assert.Error(t, err)
	})
}

func TestAccruePenalty(t *testing.T) {
	t.Run("accrues penalty past grace period", func(t *testing.T) {
		loan := newActiveLoan(t)
		pastDue := time.Now().AddDate(0, 0, -65)
		loan.NextPaymentDate = &pastDue

		// 65 days past due, 7 day grace: 2 complete months late
		penalty, err := loan.AccruePenalty(time.Now())
		require.NoError(t, err)

		expected := loan.InstallmentAmount.Mul(decimal.NewFromFloat(0.05)).Mul(decimal.NewFromInt(2))
		assert.True(t, penalty.Equal(expected))
		assert.True(t, loan.PenaltyAmount.Equal(expected))
		assert.Equal(t, 65, loan.DaysPastDue)

		events := loan.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, "LoanPenaltyAccrued", events[0].EventType())
	})

	t.Run("no penalty within grace period", func(t *testing.T) {
		loan := newActiveLoan(t)
		pastDue := time.Now().AddDate(0, 0, -5)
		loan.NextPaymentDate = &pastDue

		penalty, err := loan.AccruePenalty(time.Now())
		require.NoError(t, err)
		assert.True(t, penalty.IsZero())
		assert.Empty(t, loan.GetDomainEvents())
	})

	t.Run("rejects non-active loan", func(t *testing.T) {
		loan := newTestLoan(t)
		_, err := loan.AccruePenalty(time.Now())
		assert.Error(t, err)
	})
}

func TestDaysPastDue(t *testing.T) {
	loan := newActiveLoan(t)

	due := time.Now().AddDate(0, 0, -10)
	loan.NextPaymentDate = &due
	assert.Equal(t, 10, loan.DaysPastDueAsOf(time.Now()))

	future := time.Now().AddDate(0, 0, 5)
	loan.NextPaymentDate = &future
	assert.Equal(t, 0, loan.DaysPastDueAsOf(time.Now()))

	loan.NextPaymentDate = nil
	assert.Equal(t, 0, loan.DaysPastDueAsOf(time.Now()))
}

func TestDefaultRisk(t *testing.T) {
	tests := []struct {
		name        string
		daysPastDue int
		efficiency  float64
		balance     decimal.Decimal
		penalty     decimal.Decimal
		expected    RiskLevel
	}{
		{"healthy loan", 0, 95, decimal.NewFromInt(3000), decimal.Zero, RiskLow},
		{"mildly late", 10, 80, decimal.NewFromInt(5000), decimal.Zero, RiskMedium},
		{"chronically late", 40, 60, decimal.NewFromInt(8000), decimal.NewFromInt(50), RiskHigh},
		{"severely delinquent", 100, 30, decimal.NewFromInt(11000), decimal.NewFromInt(2000), RiskCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := newActiveLoan(t)
			loan.DaysPastDue = tt.daysPastDue
			loan.OutstandingBalance = tt.balance
			loan.PenaltyAmount = tt.penalty
			assert.Equal(t, tt.expected, loan.DefaultRisk(tt.efficiency))
		})
	}
}

func TestCountOnTimePayments(t *testing.T) {
	loan := newActiveLoan(t)

	onTimeDate := loan.Schedule[0].DueDate.AddDate(0, 0, -2)
	lateDate := loan.Schedule[1].DueDate.AddDate(0, 0, 5)
	unmatchedDate := loan.Schedule[2].DueDate.AddDate(0, 0, 12)

	payments := []*LoanPayment{
		{PaymentDate: onTimeDate},
		{PaymentDate: lateDate},
		{PaymentDate: unmatchedDate},
	}

	onTime, late := loan.CountOnTimePayments(payments)
	assert.Equal(t, 1, onTime)
	assert.Equal(t, 2, late)
}

func TestMonthlyObligation(t *testing.T) {
	loan := newActiveLoan(t)
	assert.True(t, loan.MonthlyObligation().Equal(loan.InstallmentAmount))

	loan.Frequency = FrequencyWeekly
	expected := loan.InstallmentAmount.Mul(decimal.NewFromFloat(4.33))
	assert.True(t, loan.MonthlyObligation().Equal(expected))
}

func TestNewLoanPayment(t *testing.T) {
	loan := newActiveLoan(t)
	allocation, err := loan.ProcessPayment(decimal.NewFromInt(1240), time.Now())
	require.NoError(t, err)

	processor := uuid.New()
	record := NewLoanPayment(loan, decimal.NewFromInt(1240), allocation,
		time.Now(), "SETTLEMENT_DEDUCTION", "PAY-123", &processor)

	assert.Equal(t, loan.ID, record.LoanID)
	assert.Equal(t, loan.TenantID, record.TenantID)
	assert.True(t, record.BalanceAfter.Equal(loan.OutstandingBalance))
	assert.True(t, record.InterestPortion.Equal(decimal.NewFromInt(240)))
}
