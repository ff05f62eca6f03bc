package payment

import (
	"context"

	"github.com/fuelerp/backend/internal/domain/shared/valueobject"
)

// TransferRequest is one disbursement submitted to the bank rail
type TransferRequest struct {
	Amount        valueobject.Money
	AccountName   string
	AccountNumber string
	BankCode      string
	Reference     string
	Method        Method
}

// TransferResult is the rail's acknowledgement of a submitted transfer
type TransferResult struct {
	TransactionID string
}

// BankRail submits disbursements to the external banking partner.
// A rejected transfer is returned as an error and recorded as the
// settlement's failure reason, never propagated out of the batch.
type BankRail interface {
	SubmitTransfer(ctx context.Context, req TransferRequest) (TransferResult, error)
}
