package payment

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchStatus represents the status of a payment batch
type BatchStatus string

const (
	BatchStatusPending            BatchStatus = "PENDING"
	BatchStatusProcessing         BatchStatus = "PROCESSING"
	BatchStatusCompleted          BatchStatus = "COMPLETED"
	BatchStatusPartiallyCompleted BatchStatus = "PARTIALLY_COMPLETED"
	BatchStatusFailed             BatchStatus = "FAILED"
	BatchStatusCancelled          BatchStatus = "CANCELLED"
)

// IsValid checks if the status is a valid BatchStatus
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusProcessing, BatchStatusCompleted,
		BatchStatusPartiallyCompleted, BatchStatusFailed, BatchStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of BatchStatus
func (s BatchStatus) String() string {
	return string(s)
}

// IsOpen returns true while the batch still holds its settlements
// exclusively
func (s BatchStatus) IsOpen() bool {
	return s == BatchStatusPending || s == BatchStatusProcessing
}

// ItemStatus represents the status of one settlement inside a batch
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "PENDING"
	ItemStatusCompleted ItemStatus = "COMPLETED"
	ItemStatusFailed    ItemStatus = "FAILED"
)

// BatchItem is one settlement's disbursement inside a batch, stored as
// JSONB on the batch
type BatchItem struct {
	SettlementID     uuid.UUID       `json:"settlement_id"`
	StationID        uuid.UUID       `json:"station_id"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentReference string          `json:"payment_reference"`
	AccountName      string          `json:"account_name"`
	AccountNumber    string          `json:"account_number"`
	BankName         string          `json:"bank_name"`
	BankCode         string          `json:"bank_code"`
	Status           ItemStatus      `json:"status"`
	TransactionID    string          `json:"transaction_id,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
}

// BatchItems is a slice of BatchItem with JSONB storage support
type BatchItems []BatchItem

// Value implements driver.Valuer interface for GORM to store as JSONB
func (b BatchItems) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	return json.Marshal(b)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (b *BatchItems) Scan(value interface{}) error {
	return scanJSONB(value, b, func() { *b = BatchItems{} })
}

// PaymentBatch groups settlements sharing a disbursement method into
// one execution unit. Each settlement appears in at most one open batch.
type PaymentBatch struct {
	shared.TenantAggregateRoot
	Reference          string          `json:"reference"`
	BatchDate          time.Time       `json:"batch_date"`
	Method             Method          `json:"method"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	TotalSettlements   int             `json:"total_settlements"`
	Status             BatchStatus     `json:"status"`
	Items              BatchItems      `json:"items"`
	SuccessfulPayments int             `json:"successful_payments"`
	FailedPayments     int             `json:"failed_payments"`
	StartedAt          *time.Time      `json:"started_at"`
	CompletedAt        *time.Time      `json:"completed_at"`
	ProcessedBy        *uuid.UUID      `json:"processed_by"`
}

// NewPaymentBatch creates a pending batch over the given items
func NewPaymentBatch(tenantID uuid.UUID, reference string, method Method, items BatchItems) (*PaymentBatch, error) {
	if reference == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Batch reference cannot be empty")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD", "Payment method is not valid")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("VALIDATION_FAILURE", "Batch must contain at least one settlement")
	}

	total := decimal.Zero
	for i := range items {
		if items[i].Amount.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError("VALIDATION_FAILURE", "Batch item amounts must be positive")
		}
		items[i].Status = ItemStatusPending
		total = total.Add(items[i].Amount)
	}

	b := &PaymentBatch{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Reference:           reference,
		BatchDate:           time.Now(),
		Method:              method,
		TotalAmount:         total,
		TotalSettlements:    len(items),
		Status:              BatchStatusPending,
		Items:               items,
	}

	b.AddDomainEvent(NewPaymentBatchCreatedEvent(b))

	return b, nil
}

// StartProcessing moves a pending batch to PROCESSING
func (b *PaymentBatch) StartProcessing(processedBy uuid.UUID) error {
	if b.Status != BatchStatusPending {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot start batch in %s status", b.Status))
	}

	now := time.Now()
	b.Status = BatchStatusProcessing
	b.StartedAt = &now
	b.ProcessedBy = &processedBy
	b.UpdatedAt = now
	b.IncrementVersion()

	return nil
}

// BeginRetry reopens a finished batch for a retry of its failed items
// only. Completed items keep their results.
func (b *PaymentBatch) BeginRetry(processedBy uuid.UUID) error {
	if b.Status != BatchStatusPartiallyCompleted && b.Status != BatchStatusFailed {
		return shared.NewDomainError("INVALID_STATE", "Only failed or partially completed batches can be retried")
	}
	if len(b.FailedItems()) == 0 {
		return shared.NewDomainError("INVALID_STATE", "Batch has no failed payments to retry")
	}

	now := time.Now()
	b.Status = BatchStatusProcessing
	b.ProcessedBy = &processedBy
	b.CompletedAt = nil
	b.UpdatedAt = now
	b.IncrementVersion()

	return nil
}

// RecordItemSuccess marks one settlement's disbursement as completed
func (b *PaymentBatch) RecordItemSuccess(settlementID uuid.UUID, transactionID string) error {
	item := b.findItem(settlementID)
	if item == nil {
		return shared.NewDomainError("NOT_FOUND", "Settlement is not part of this batch")
	}

	item.Status = ItemStatusCompleted
	item.TransactionID = transactionID
	item.FailureReason = ""

	return nil
}

// RecordItemFailure marks one settlement's disbursement as failed with
// its reason. Failures never abort the batch.
func (b *PaymentBatch) RecordItemFailure(settlementID uuid.UUID, reason string) error {
	item := b.findItem(settlementID)
	if item == nil {
		return shared.NewDomainError("NOT_FOUND", "Settlement is not part of this batch")
	}

	item.Status = ItemStatusFailed
	item.FailureReason = reason

	return nil
}

func (b *PaymentBatch) findItem(settlementID uuid.UUID) *BatchItem {
	for i := range b.Items {
		if b.Items[i].SettlementID == settlementID {
			return &b.Items[i]
		}
	}
	return nil
}

// FailedItems returns the items whose disbursement failed
func (b *PaymentBatch) FailedItems() []BatchItem {
	failed := make([]BatchItem, 0)
	for _, item := range b.Items {
		if item.Status == ItemStatusFailed {
			failed = append(failed, item)
		}
	}
	return failed
}

// Finish settles the batch's final status from its item results:
// COMPLETED with zero failures, FAILED with zero successes,
// PARTIALLY_COMPLETED otherwise
func (b *PaymentBatch) Finish() error {
	if b.Status != BatchStatusProcessing {
		return shared.NewDomainError("INVALID_STATE", "Batch is not being processed")
	}

	succeeded, failed := 0, 0
	for _, item := range b.Items {
		switch item.Status {
		case ItemStatusCompleted:
			succeeded++
		case ItemStatusFailed:
			failed++
		}
	}

	switch {
	case failed == 0:
		b.Status = BatchStatusCompleted
	case succeeded == 0:
		b.Status = BatchStatusFailed
	default:
		b.Status = BatchStatusPartiallyCompleted
	}

	now := time.Now()
	b.SuccessfulPayments = succeeded
	b.FailedPayments = failed
	b.CompletedAt = &now

	b.AddDomainEvent(NewPaymentBatchCompletedEvent(b))
	b.UpdatedAt = now
	b.IncrementVersion()

	return nil
}

// Cancel abandons a batch that has not started processing
func (b *PaymentBatch) Cancel() error {
	if b.Status != BatchStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending batches can be cancelled")
	}

	b.Status = BatchStatusCancelled
	b.UpdatedAt = time.Now()
	b.IncrementVersion()

	return nil
}
