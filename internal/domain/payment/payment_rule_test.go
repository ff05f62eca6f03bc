package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/fuelerp/backend/internal/domain/settlement"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApprovedSettlement(t *testing.T, netPayable decimal.Decimal, approvedDaysAgo int) *settlement.Settlement {
	t.Helper()

	s, err := settlement.NewSettlement(uuid.New(), "SETT-TEST-W01", settlement.Calculation{
		StationID:   uuid.New(),
		WindowID:    "2025-W01",
		PeriodStart: time.Now().AddDate(0, 0, -14),
		PeriodEnd:   time.Now().AddDate(0, 0, -7),
		GrossMargin: netPayable,
	})
	require.NoError(t, err)

	err = s.Approve(uuid.New())
	require.NoError(t, err)

	approvedAt := time.Now().AddDate(0, 0, -approvedDaysAgo)
	s.ApprovedAt = &approvedAt

	return s
}

func TestNewPaymentRule(t *testing.T) {
	tenantID := uuid.New()

	conditions := RuleConditions{
		MinAmount:        decimal.NewFromInt(500),
		MaxAmount:        decimal.NewFromInt(20000),
		AllowedStatuses:  []settlement.SettlementStatus{settlement.SettlementStatusApproved},
		DaysFromApproval: 2,
	}
	controls := RiskControls{
		DailyLimit:     decimal.NewFromInt(100000),
		MonthlyLimit:   decimal.NewFromInt(500000),
		DuplicateCheck: true,
	}

	t.Run("should create an active rule", func(t *testing.T) {
		rule, err := NewPaymentRule(tenantID, "Mid-tier payouts", "Mid-size settlements", 2, conditions, MethodMobileMoney, controls)

		require.NoError(t, err)
		assert.True(t, rule.IsActive)
		assert.Equal(t, 2, rule.Priority)
		assert.Equal(t, MethodMobileMoney, rule.Method)
		assert.True(t, rule.Controls.DuplicateCheck)
	})

	t.Run("should reject empty name", func(t *testing.T) {
		_, err := NewPaymentRule(tenantID, "", "", 1, conditions, MethodBankTransfer, controls)

		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "INVALID_RULE_NAME", domainErr.Code)
	})

	t.Run("should reject invalid method", func(t *testing.T) {
		_, err := NewPaymentRule(tenantID, "Rule", "", 1, conditions, Method("WIRE"), controls)
		assert.Error(t, err)
	})

	t.Run("should reject inverted amount band", func(t *testing.T) {
		bad := conditions
		bad.MinAmount = decimal.NewFromInt(20000)
		bad.MaxAmount = decimal.NewFromInt(500)

		_, err := NewPaymentRule(tenantID, "Rule", "", 1, bad, MethodBankTransfer, controls)

		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "VALIDATION_FAILURE", domainErr.Code)
	})

	t.Run("should reject negative days from approval", func(t *testing.T) {
		bad := conditions
		bad.DaysFromApproval = -1

		_, err := NewPaymentRule(tenantID, "Rule", "", 1, bad, MethodBankTransfer, controls)
		assert.Error(t, err)
	})
}

func TestDefaultRule(t *testing.T) {
	rule := DefaultRule(uuid.New())

	require.NotNil(t, rule)
	assert.True(t, rule.IsActive)
	assert.Equal(t, 1, rule.Priority)
	assert.Equal(t, MethodBankTransfer, rule.Method)
	assert.True(t, rule.Conditions.MinAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, rule.Conditions.MaxAmount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 3, rule.Conditions.DaysFromApproval)
	assert.Equal(t, []settlement.SettlementStatus{settlement.SettlementStatusApproved}, rule.Conditions.AllowedStatuses)
	assert.True(t, rule.Controls.DailyLimit.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, rule.Controls.MonthlyLimit.Equal(decimal.NewFromInt(10_000_000)))
	assert.True(t, rule.Controls.DuplicateCheck)
	assert.True(t, rule.Controls.FraudCheck)
}

func TestPaymentRuleMatches(t *testing.T) {
	rule := DefaultRule(uuid.New())
	now := time.Now()

	t.Run("should match an approved settlement inside the band", func(t *testing.T) {
		s := newApprovedSettlement(t, decimal.NewFromInt(5000), 5)
		assert.True(t, rule.Matches(s, now))
	})

	t.Run("should match at the band edges", func(t *testing.T) {
		low := newApprovedSettlement(t, decimal.NewFromInt(100), 5)
		high := newApprovedSettlement(t, decimal.NewFromInt(50000), 5)

		assert.True(t, rule.Matches(low, now))
		assert.True(t, rule.Matches(high, now))
	})

	t.Run("should not match below the minimum amount", func(t *testing.T) {
		s := newApprovedSettlement(t, decimal.NewFromFloat(99.99), 5)
		assert.False(t, rule.Matches(s, now))
	})

	t.Run("should not match above the maximum amount", func(t *testing.T) {
		s := newApprovedSettlement(t, decimal.NewFromInt(50001), 5)
		assert.False(t, rule.Matches(s, now))
	})

	t.Run("should not match a settlement approved too recently", func(t *testing.T) {
		s := newApprovedSettlement(t, decimal.NewFromInt(5000), 1)
		assert.False(t, rule.Matches(s, now))
	})

	t.Run("should not match a settlement outside the allowed statuses", func(t *testing.T) {
		s, err := settlement.NewSettlement(uuid.New(), "SETT-TEST-W02", settlement.Calculation{
			StationID:   uuid.New(),
			WindowID:    "2025-W02",
			GrossMargin: decimal.NewFromInt(5000),
		})
		require.NoError(t, err)

		assert.False(t, rule.Matches(s, now))
	})

	t.Run("should not match when deactivated", func(t *testing.T) {
		inactive := DefaultRule(uuid.New())
		inactive.Deactivate()

		s := newApprovedSettlement(t, decimal.NewFromInt(5000), 5)

		assert.False(t, inactive.IsActive)
		assert.False(t, inactive.Matches(s, now))
	})
}

func TestRuleConditionsJSONB(t *testing.T) {
	conditions := RuleConditions{
		MinAmount:        decimal.NewFromInt(100),
		MaxAmount:        decimal.NewFromInt(50000),
		AllowedStatuses:  []settlement.SettlementStatus{settlement.SettlementStatusApproved},
		DaysFromApproval: 3,
	}

	value, err := conditions.Value()
	require.NoError(t, err)

	var scanned RuleConditions
	err = scanned.Scan(value)
	require.NoError(t, err)

	assert.True(t, scanned.MinAmount.Equal(conditions.MinAmount))
	assert.True(t, scanned.MaxAmount.Equal(conditions.MaxAmount))
	assert.Equal(t, conditions.AllowedStatuses, scanned.AllowedStatuses)
	assert.Equal(t, 3, scanned.DaysFromApproval)

	var empty RuleConditions
	require.NoError(t, empty.Scan(nil))
	assert.Equal(t, 0, empty.DaysFromApproval)
}
