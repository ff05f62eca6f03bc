package accrual

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MarginAccrualRepository defines the interface for margin accrual persistence
type MarginAccrualRepository interface {
	// FindByIDForTenant finds an accrual record by ID for a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*MarginAccrualRecord, error)

	// FindByStationDate finds all records for a station/date/window combination
	FindByStationDate(ctx context.Context, tenantID, stationID uuid.UUID, date time.Time, windowID string) ([]*MarginAccrualRecord, error)

	// FindByStationDateRange finds records for a station within a date range,
	// any status, ordered by accrual date
	FindByStationDateRange(ctx context.Context, tenantID, stationID uuid.UUID, from, to time.Time) ([]*MarginAccrualRecord, error)

	// FindAccruedForWindow finds records in ACCRUED status for a station
	// within a window's date range, ready for settlement netting
	FindAccruedForWindow(ctx context.Context, tenantID, stationID uuid.UUID, from, to time.Time) ([]*MarginAccrualRecord, error)

	// ReplaceForStationDate atomically deletes all non-posted records for a
	// station/date/window and inserts the replacements
	ReplaceForStationDate(ctx context.Context, tenantID, stationID uuid.UUID, date time.Time, windowID string, records []*MarginAccrualRecord) error

	// FindStationsWithAccruals returns the distinct stations holding
	// ACCRUED records in the date range. Drives the window batch run.
	FindStationsWithAccruals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]uuid.UUID, error)

	// Save creates or updates a single accrual record
	Save(ctx context.Context, record *MarginAccrualRecord) error

	// HasPostedForStationDate reports whether any record for the
	// station/date/window has already been posted to the ledger
	HasPostedForStationDate(ctx context.Context, tenantID, stationID uuid.UUID, date time.Time, windowID string) (bool, error)
}
