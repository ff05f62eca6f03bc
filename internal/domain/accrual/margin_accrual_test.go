package accrual

import (
	"testing"
	"time"

	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(t *testing.T) *MarginAccrualRecord {
	t.Helper()
	r, err := NewMarginAccrualRecord(
		uuid.New(),
		uuid.New(),
		"PETROL",
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		"2026-W1",
		decimal.NewFromInt(5000),
		decimal.NewFromFloat(0.35),
		decimal.NewFromFloat(13.10),
		[]string{"txn-1", "txn-2"},
	)
	require.NoError(t, err)
	return r
}

func TestNewMarginAccrualRecord(t *testing.T) {
	t.Run("computes margin amount from litres and rate", func(t *testing.T) {
		r := newTestRecord(t)
		assert.Equal(t, AccrualStatusAccrued, r.Status)
		assert.True(t, r.MarginAmount.Equal(decimal.NewFromInt(1750)))
		assert.Len(t, r.Details.TransactionIDs, 2)
		assert.Empty(t, r.Details.Adjustments)
	})

	t.Run("rejects non-positive volume", func(t *testing.T) {
		_, err := NewMarginAccrualRecord(uuid.New(), uuid.New(), "DIESEL",
			time.Now(), "2026-W1", decimal.Zero, decimal.NewFromFloat(0.35),
			decimal.Zero, nil)
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_VOLUME", domainErr.Code)
	})

	t.Run("rejects negative rate", func(t *testing.T) {
		_, err := NewMarginAccrualRecord(uuid.New(), uuid.New(), "DIESEL",
			time.Now(), "2026-W1", decimal.NewFromInt(100), decimal.NewFromFloat(-0.1),
			decimal.Zero, nil)
		assert.Error(t, err)
	})

	t.Run("rejects missing window", func(t *testing.T) {
		_, err := NewMarginAccrualRecord(uuid.New(), uuid.New(), "DIESEL",
			time.Now(), "", decimal.NewFromInt(100), decimal.NewFromFloat(0.1),
			decimal.Zero, nil)
		assert.Error(t, err)
	})
}

func TestAccrualStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    AccrualStatus
		to      AccrualStatus
		allowed bool
	}{
		{"pending to accrued", AccrualStatusPending, AccrualStatusAccrued, true},
		{"accrued to posted", AccrualStatusAccrued, AccrualStatusPosted, true},
		{"pending cannot skip to posted", AccrualStatusPending, AccrualStatusPosted, false},
		{"posted cannot regress", AccrualStatusPosted, AccrualStatusAccrued, false},
		{"accrued cannot regress", AccrualStatusAccrued, AccrualStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

func TestApplyAdjustment(t *testing.T) {
	t.Run("applies delta and records audit entry", func(t *testing.T) {
		r := newTestRecord(t)
		actor := uuid.New()

		err := r.ApplyAdjustment(decimal.NewFromFloat(-50.25), "pump meter correction", actor)
		require.NoError(t, err)

		assert.True(t, r.MarginAmount.Equal(decimal.NewFromFloat(1699.75)))
		require.Len(t, r.Details.Adjustments, 1)
		assert.Equal(t, actor, r.Details.Adjustments[0].AdjustedBy)
		assert.Equal(t, "pump meter correction", r.Details.Adjustments[0].Reason)

		events := r.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, "MarginAdjusted", events[0].EventType())
	})

	t.Run("rejects adjustment after posting", func(t *testing.T) {
		r := newTestRecord(t)
		require.NoError(t, r.PostToLedger())

		err := r.ApplyAdjustment(decimal.NewFromInt(10), "late correction", uuid.New())
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "CONFLICT", domainErr.Code)
	})

	t.Run("rejects zero delta", func(t *testing.T) {
		r := newTestRecord(t)
		assert.Error(t, r.ApplyAdjustment(decimal.Zero, "noop", uuid.New()))
	})

	t.Run("rejects missing reason", func(t *testing.T) {
		r := newTestRecord(t)
		assert.Error(t, r.ApplyAdjustment(decimal.NewFromInt(5), "", uuid.New()))
	})
}

func TestPostToLedger(t *testing.T) {
	t.Run("advances accrued record", func(t *testing.T) {
		r := newTestRecord(t)
		require.NoError(t, r.PostToLedger())
		assert.Equal(t, AccrualStatusPosted, r.Status)
		assert.NotNil(t, r.PostedAt)
		assert.True(t, r.IsPosted())
	})

	t.Run("rejects double posting", func(t *testing.T) {
		r := newTestRecord(t)
		require.NoError(t, r.PostToLedger())
		assert.Error(t, r.PostToLedger())
	})
}

func TestCalculationDetailsScan(t *testing.T) {
	original := CalculationDetails{
		TransactionIDs: []string{"a", "b"},
		Adjustments: []AccrualAdjustment{{
			ID:         uuid.New(),
			Delta:      decimal.NewFromInt(-10),
			Reason:     "shortage",
			AdjustedBy: uuid.New(),
			AdjustedAt: time.Now().Truncate(time.Second),
		}},
	}

	value, err := original.Value()
	require.NoError(t, err)

	var restored CalculationDetails
	require.NoError(t, restored.Scan(value))
	assert.Equal(t, original.TransactionIDs, restored.TransactionIDs)
	require.Len(t, restored.Adjustments, 1)
	assert.True(t, restored.Adjustments[0].Delta.Equal(decimal.NewFromInt(-10)))

	var empty CalculationDetails
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty.TransactionIDs)
}
