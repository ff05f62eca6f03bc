package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fuelerp/backend/internal/domain/payment"
	"github.com/fuelerp/backend/internal/infrastructure/config"
)

// maxRailResponseSize limits the response body size
const maxRailResponseSize = 1 * 1024 * 1024

// HTTPRail submits disbursements to the banking partner's transfer API
type HTTPRail struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

type transferPayload struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	AccountName   string          `json:"account_name"`
	AccountNumber string          `json:"account_number"`
	BankCode      string          `json:"bank_code"`
	Reference     string          `json:"reference"`
	Method        string          `json:"method"`
}

type transferResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// NewHTTPRail creates a rail client against the configured endpoint
func NewHTTPRail(cfg *config.BankRailConfig, logger *zap.Logger) *HTTPRail {
	return &HTTPRail{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// NewRail selects the rail implementation from configuration
func NewRail(cfg *config.BankRailConfig, logger *zap.Logger) payment.BankRail {
	if cfg.Mode == "live" {
		return NewHTTPRail(cfg, logger)
	}
	return NewSimulatedRail(logger)
}

// SubmitTransfer posts the transfer and returns the partner's acknowledgement
func (r *HTTPRail) SubmitTransfer(ctx context.Context, req payment.TransferRequest) (payment.TransferResult, error) {
	payload := transferPayload{
		Amount:        req.Amount.Amount(),
		Currency:      string(req.Amount.Currency()),
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		Reference:     req.Reference,
		Method:        string(req.Method),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return payment.TransferResult{}, fmt.Errorf("failed to encode transfer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return payment.TransferResult{}, fmt.Errorf("failed to build transfer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return payment.TransferResult{}, fmt.Errorf("bank rail request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			r.logger.Warn("Failed to close rail response body", zap.Error(closeErr))
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxRailResponseSize))
	if err != nil {
		return payment.TransferResult{}, fmt.Errorf("failed to read rail response: %w", err)
	}

	var result transferResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return payment.TransferResult{}, fmt.Errorf("failed to decode rail response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if result.Message != "" {
			return payment.TransferResult{}, fmt.Errorf("transfer rejected: %s", result.Message)
		}
		return payment.TransferResult{}, fmt.Errorf("bank rail returned status %d", resp.StatusCode)
	}
	if result.TransactionID == "" {
		return payment.TransferResult{}, fmt.Errorf("bank rail acknowledged without a transaction ID")
	}

	r.logger.Info("Transfer submitted",
		zap.String("reference", req.Reference),
		zap.String("transaction_id", result.TransactionID))

	return payment.TransferResult{TransactionID: result.TransactionID}, nil
}

var _ payment.BankRail = (*HTTPRail)(nil)
