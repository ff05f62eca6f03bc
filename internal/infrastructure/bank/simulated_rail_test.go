package bank

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fuelerp/backend/internal/domain/payment"
	"github.com/fuelerp/backend/internal/domain/shared/valueobject"
)

func TestSimulatedRail_SubmitTransfer(t *testing.T) {
	rail := NewSimulatedRail(zap.NewNop())
	ctx := context.Background()

	validRequest := payment.TransferRequest{
		Amount:        valueobject.NewMoneyGHS(decimal.NewFromInt(50000)),
		AccountName:   "Kilimani Service Station Ltd",
		AccountNumber: "0102030405",
		BankCode:      "01",
		Reference:     "PAY-2025-000042",
		Method:        payment.MethodBankTransfer,
	}

	t.Run("should acknowledge a valid transfer", func(t *testing.T) {
		result, err := rail.SubmitTransfer(ctx, validRequest)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(result.TransactionID, "SIM-"))
	})

	t.Run("should issue distinct transaction IDs", func(t *testing.T) {
		first, err := rail.SubmitTransfer(ctx, validRequest)
		require.NoError(t, err)
		second, err := rail.SubmitTransfer(ctx, validRequest)
		require.NoError(t, err)
		assert.NotEqual(t, first.TransactionID, second.TransactionID)
	})

	t.Run("should reject a missing account number", func(t *testing.T) {
		req := validRequest
		req.AccountNumber = "  "
		_, err := rail.SubmitTransfer(ctx, req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "account number")
	})

	t.Run("should reject a non-positive amount", func(t *testing.T) {
		req := validRequest
		req.Amount = valueobject.Zero(valueobject.GHS)
		_, err := rail.SubmitTransfer(ctx, req)
		require.Error(t, err)
	})

	t.Run("should honor context cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := rail.SubmitTransfer(cancelled, validRequest)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
