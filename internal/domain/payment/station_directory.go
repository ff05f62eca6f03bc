package payment

import (
	"context"

	"github.com/google/uuid"
)

// BankAccount is a station's disbursement destination as registered
// in the dealer directory
type BankAccount struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	BankCode      string `json:"bank_code"`
}

// StationDirectory resolves station disbursement accounts. A station
// without a registered account cannot enter a payment batch.
type StationDirectory interface {
	BankAccount(ctx context.Context, tenantID, stationID uuid.UUID) (BankAccount, error)
}
