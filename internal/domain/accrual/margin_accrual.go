package accrual

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccrualStatus represents the status of a margin accrual record
type AccrualStatus string

const (
	AccrualStatusPending AccrualStatus = "PENDING"          // Computed but not yet confirmed
	AccrualStatusAccrued AccrualStatus = "ACCRUED"          // Confirmed, available for settlement netting
	AccrualStatusPosted  AccrualStatus = "POSTED_TO_LEDGER" // Netted into a settlement, immutable
)

// IsValid checks if the status is a valid AccrualStatus
func (s AccrualStatus) IsValid() bool {
	switch s {
	case AccrualStatusPending, AccrualStatusAccrued, AccrualStatusPosted:
		return true
	}
	return false
}

// String returns the string representation of AccrualStatus
func (s AccrualStatus) String() string {
	return string(s)
}

func (s AccrualStatus) rank() int {
	switch s {
	case AccrualStatusPending:
		return 0
	case AccrualStatusAccrued:
		return 1
	case AccrualStatusPosted:
		return 2
	}
	return -1
}

// CanAdvanceTo returns true if the status may move to target.
// Status is monotonic: PENDING -> ACCRUED -> POSTED_TO_LEDGER, no regression.
func (s AccrualStatus) CanAdvanceTo(target AccrualStatus) bool {
	return target.IsValid() && target.rank() == s.rank()+1
}

// AccrualAdjustment records one manual amount adjustment applied to an
// accrual record. Adjustments are append-only and kept for audit.
type AccrualAdjustment struct {
	ID         uuid.UUID       `json:"id"`
	Delta      decimal.Decimal `json:"delta"`
	Reason     string          `json:"reason"`
	AdjustedBy uuid.UUID       `json:"adjusted_by"`
	AdjustedAt time.Time       `json:"adjusted_at"`
}

// CalculationDetails captures how an accrual amount was derived.
// Stored as JSONB alongside the record.
type CalculationDetails struct {
	TransactionIDs []string            `json:"transaction_ids"`
	Adjustments    []AccrualAdjustment `json:"adjustments"`
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (d CalculationDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (d *CalculationDetails) Scan(value interface{}) error {
	if value == nil {
		*d = CalculationDetails{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan CalculationDetails: unsupported type")
	}

	if len(bytes) == 0 {
		*d = CalculationDetails{}
		return nil
	}

	return json.Unmarshal(bytes, d)
}

// MarginAccrualRecord represents one day of earned dealer margin for a
// single product at a station, within a pricing window. It is the unit
// the settlement calculator nets against deductions.
type MarginAccrualRecord struct {
	shared.TenantAggregateRoot
	StationID        uuid.UUID          `json:"station_id"`
	Product          string             `json:"product"`
	AccrualDate      time.Time          `json:"accrual_date"`
	WindowID         string             `json:"window_id"`
	LitresSold       decimal.Decimal    `json:"litres_sold"`
	MarginRate       decimal.Decimal    `json:"margin_rate"`
	MarginAmount     decimal.Decimal    `json:"margin_amount"`
	AverageExPump    decimal.Decimal    `json:"average_ex_pump"`
	CumulativeLitres decimal.Decimal    `json:"cumulative_litres"`
	CumulativeMargin decimal.Decimal    `json:"cumulative_margin"`
	Status           AccrualStatus      `json:"status"`
	Details          CalculationDetails `json:"details"`
	PostedAt         *time.Time         `json:"posted_at"`
}

// NewMarginAccrualRecord creates a confirmed accrual record for one
// product/day. The margin amount is litres sold times the window's
// margin rate for the product.
func NewMarginAccrualRecord(
	tenantID uuid.UUID,
	stationID uuid.UUID,
	product string,
	accrualDate time.Time,
	windowID string,
	litresSold decimal.Decimal,
	marginRate decimal.Decimal,
	averageExPump decimal.Decimal,
	transactionIDs []string,
) (*MarginAccrualRecord, error) {
	if stationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STATION", "Station ID cannot be empty")
	}
	if product == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product cannot be empty")
	}
	if windowID == "" {
		return nil, shared.NewDomainError("INVALID_WINDOW", "Pricing window ID cannot be empty")
	}
	if litresSold.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_VOLUME", "Litres sold must be positive")
	}
	if marginRate.IsNegative() {
		return nil, shared.NewDomainError("INVALID_RATE", "Margin rate cannot be negative")
	}

	return &MarginAccrualRecord{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		StationID:           stationID,
		Product:             product,
		AccrualDate:         accrualDate,
		WindowID:            windowID,
		LitresSold:          litresSold,
		MarginRate:          marginRate,
		MarginAmount:        litresSold.Mul(marginRate).Round(4),
		AverageExPump:       averageExPump,
		Status:              AccrualStatusAccrued,
		Details: CalculationDetails{
			TransactionIDs: transactionIDs,
			Adjustments:    []AccrualAdjustment{},
		},
	}, nil
}

// SetCumulatives records the window-running totals as of this record
func (r *MarginAccrualRecord) SetCumulatives(litres, margin decimal.Decimal) {
	r.CumulativeLitres = litres
	r.CumulativeMargin = margin
}

// IsPosted returns true once the record has been netted into a settlement
func (r *MarginAccrualRecord) IsPosted() bool {
	return r.Status == AccrualStatusPosted
}

// ApplyAdjustment applies a manual amount delta with an audit entry.
// Adjustments are rejected once the record has been posted to the ledger.
func (r *MarginAccrualRecord) ApplyAdjustment(delta decimal.Decimal, reason string, adjustedBy uuid.UUID) error {
	if r.IsPosted() {
		return shared.NewDomainError("CONFLICT", "Cannot adjust an accrual that has been posted to the ledger")
	}
	if delta.IsZero() {
		return shared.NewDomainError("INVALID_ADJUSTMENT", "Adjustment delta cannot be zero")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Adjustment reason is required")
	}

	adjustment := AccrualAdjustment{
		ID:         uuid.New(),
		Delta:      delta,
		Reason:     reason,
		AdjustedBy: adjustedBy,
		AdjustedAt: time.Now(),
	}
	r.Details.Adjustments = append(r.Details.Adjustments, adjustment)
	r.MarginAmount = r.MarginAmount.Add(delta)

	r.AddDomainEvent(NewMarginAdjustedEvent(r, adjustment))
	r.UpdatedAt = time.Now()
	r.IncrementVersion()

	return nil
}

// PostToLedger advances the record to POSTED_TO_LEDGER.
// Only the settlement calculator calls this, when the record is netted.
func (r *MarginAccrualRecord) PostToLedger() error {
	if !r.Status.CanAdvanceTo(AccrualStatusPosted) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot post accrual in %s status", r.Status))
	}
	now := time.Now()
	r.Status = AccrualStatusPosted
	r.PostedAt = &now
	r.UpdatedAt = now
	r.IncrementVersion()
	return nil
}
