package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(100.50), GHS)
		require.NoError(t, err)
		assert.Equal(t, GHS, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(100.50)))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromFloat(100), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency cannot be empty")
	})
}

func TestNewMoneyGHS(t *testing.T) {
	m := NewMoneyGHS(decimal.NewFromFloat(50.00))
	assert.Equal(t, GHS, m.Currency())
	assert.True(t, m.Amount().Equal(decimal.NewFromFloat(50.00)))
}

func TestZero(t *testing.T) {
	m := Zero(GHS)
	assert.True(t, m.IsZero())
	assert.False(t, m.IsPositive())
	assert.Equal(t, GHS, m.Currency())
}

func TestMoneyAdd(t *testing.T) {
	t.Run("adds same currency", func(t *testing.T) {
		a := NewMoneyGHS(decimal.NewFromFloat(100.25))
		b := NewMoneyGHS(decimal.NewFromFloat(50.75))
		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.True(t, sum.Amount().Equal(decimal.NewFromInt(151)))
	})

	t.Run("rejects mixed currencies", func(t *testing.T) {
		a := NewMoneyGHS(decimal.NewFromInt(100))
		b, err := NewMoney(decimal.NewFromInt(100), USD)
		require.NoError(t, err)
		_, err = a.Add(b)
		assert.Error(t, err)
	})
}

func TestMoneySubtract(t *testing.T) {
	a := NewMoneyGHS(decimal.NewFromInt(100))
	b := NewMoneyGHS(decimal.NewFromFloat(30.50))
	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount().Equal(decimal.NewFromFloat(69.50)))
	assert.False(t, diff.IsNegative())
}

func TestMoneyEquals(t *testing.T) {
	a := NewMoneyGHS(decimal.NewFromInt(10))
	assert.True(t, a.Equals(NewMoneyGHS(decimal.NewFromInt(10))))
	assert.False(t, a.Equals(NewMoneyGHS(decimal.NewFromInt(20))))

	usd, err := NewMoney(decimal.NewFromInt(10), USD)
	require.NoError(t, err)
	assert.False(t, a.Equals(usd))
}

func TestMoneyRound(t *testing.T) {
	m := NewMoneyGHS(decimal.NewFromFloat(10.127))
	assert.True(t, m.Round(2).Amount().Equal(decimal.NewFromFloat(10.13)))
}

func TestMoneyString(t *testing.T) {
	m := NewMoneyGHS(decimal.NewFromFloat(1234.5))
	assert.Equal(t, "1234.50 GHS", m.String())
}

func TestMoneyJSON(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		original := NewMoneyGHS(decimal.NewFromFloat(99.99))
		data, err := json.Marshal(original)
		require.NoError(t, err)

		var restored Money
		require.NoError(t, json.Unmarshal(data, &restored))
		assert.True(t, original.Equals(restored))
	})

	t.Run("rejects empty currency", func(t *testing.T) {
		var m Money
		err := json.Unmarshal([]byte(`{"amount":"42.00","currency":""}`), &m)
		assert.Error(t, err)
	})

	t.Run("rejects malformed amount", func(t *testing.T) {
		var m Money
		err := json.Unmarshal([]byte(`{"amount":"not-a-number","currency":"GHS"}`), &m)
		assert.Error(t, err)
	})
}
