package bank

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fuelerp/backend/internal/domain/payment"
)

// SimulatedRail is an in-process bank rail for development and testing.
// It acknowledges every well-formed transfer with a deterministic-looking
// transaction ID and rejects transfers that a real rail would reject.
type SimulatedRail struct {
	logger *zap.Logger
}

// NewSimulatedRail creates a new SimulatedRail
func NewSimulatedRail(logger *zap.Logger) *SimulatedRail {
	return &SimulatedRail{logger: logger}
}

// SubmitTransfer validates the request and returns a simulated acknowledgement
func (r *SimulatedRail) SubmitTransfer(ctx context.Context, req payment.TransferRequest) (payment.TransferResult, error) {
	if err := ctx.Err(); err != nil {
		return payment.TransferResult{}, err
	}
	if !req.Amount.IsPositive() {
		return payment.TransferResult{}, fmt.Errorf("transfer amount must be positive")
	}
	if strings.TrimSpace(req.AccountNumber) == "" {
		return payment.TransferResult{}, fmt.Errorf("transfer rejected: missing account number")
	}
	if strings.TrimSpace(req.BankCode) == "" {
		return payment.TransferResult{}, fmt.Errorf("transfer rejected: missing bank code")
	}

	transactionID := "SIM-" + strings.ToUpper(uuid.New().String()[:12])

	r.logger.Info("Simulated transfer accepted",
		zap.String("reference", req.Reference),
		zap.Stringer("amount", req.Amount),
		zap.String("transaction_id", transactionID))

	return payment.TransferResult{TransactionID: transactionID}, nil
}

var _ payment.BankRail = (*SimulatedRail)(nil)
