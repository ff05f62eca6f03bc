package accrual

import (
	"time"

	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MarginAccruedEvent is raised when a station/day accrual run completes,
// carrying the totals for downstream ledger posting
type MarginAccruedEvent struct {
	shared.BaseDomainEvent
	StationID    uuid.UUID       `json:"station_id"`
	WindowID     string          `json:"window_id"`
	AccrualDate  time.Time       `json:"accrual_date"`
	ProductCount int             `json:"product_count"`
	TotalLitres  decimal.Decimal `json:"total_litres"`
	TotalMargin  decimal.Decimal `json:"total_margin"`
}

// EventType returns the event type name
func (e *MarginAccruedEvent) EventType() string {
	return "MarginAccrued"
}

// NewMarginAccruedEvent creates a new MarginAccruedEvent
func NewMarginAccruedEvent(tenantID, stationID uuid.UUID, windowID string, accrualDate time.Time, productCount int, totalLitres, totalMargin decimal.Decimal) *MarginAccruedEvent {
	return &MarginAccruedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MarginAccrued", "MarginAccrualRecord", stationID, tenantID),
		StationID:       stationID,
		WindowID:        windowID,
		AccrualDate:     accrualDate,
		ProductCount:    productCount,
		TotalLitres:     totalLitres,
		TotalMargin:     totalMargin,
	}
}

// MarginAdjustedEvent is raised when a manual adjustment is applied to
// an accrual record
type MarginAdjustedEvent struct {
	shared.BaseDomainEvent
	RecordID   uuid.UUID       `json:"record_id"`
	StationID  uuid.UUID       `json:"station_id"`
	Product    string          `json:"product"`
	Delta      decimal.Decimal `json:"delta"`
	NewAmount  decimal.Decimal `json:"new_amount"`
	Reason     string          `json:"reason"`
	AdjustedBy uuid.UUID       `json:"adjusted_by"`
}

// EventType returns the event type name
func (e *MarginAdjustedEvent) EventType() string {
	return "MarginAdjusted"
}

// NewMarginAdjustedEvent creates a new MarginAdjustedEvent
func NewMarginAdjustedEvent(r *MarginAccrualRecord, adjustment AccrualAdjustment) *MarginAdjustedEvent {
	return &MarginAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MarginAdjusted", "MarginAccrualRecord", r.ID, r.TenantID),
		RecordID:        r.ID,
		StationID:       r.StationID,
		Product:         r.Product,
		Delta:           adjustment.Delta,
		NewAmount:       r.MarginAmount,
		Reason:          adjustment.Reason,
		AdjustedBy:      adjustment.AdjustedBy,
	}
}

// MarginAccrualBatchCompletedEvent is raised when a multi-station batch
// accrual run finishes, with success and failure counts
type MarginAccrualBatchCompletedEvent struct {
	shared.BaseDomainEvent
	WindowID     string `json:"window_id"`
	Processed    int    `json:"processed"`
	Failed       int    `json:"failed"`
	TotalRecords int    `json:"total_records"`
}

// EventType returns the event type name
func (e *MarginAccrualBatchCompletedEvent) EventType() string {
	return "MarginAccrualBatchCompleted"
}

// NewMarginAccrualBatchCompletedEvent creates a new MarginAccrualBatchCompletedEvent
func NewMarginAccrualBatchCompletedEvent(tenantID uuid.UUID, windowID string, processed, failed, totalRecords int) *MarginAccrualBatchCompletedEvent {
	return &MarginAccrualBatchCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MarginAccrualBatchCompleted", "MarginAccrualRecord", uuid.New(), tenantID),
		WindowID:        windowID,
		Processed:       processed,
		Failed:          failed,
		TotalRecords:    totalRecords,
	}
}
