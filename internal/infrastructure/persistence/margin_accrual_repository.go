package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/fuelerp/backend/internal/domain/accrual"
	"github.com/fuelerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMarginAccrualRepository implements MarginAccrualRepository using GORM
type GormMarginAccrualRepository struct {
	db *gorm.DB
}

// NewGormMarginAccrualRepository creates a new GormMarginAccrualRepository
func NewGormMarginAccrualRepository(db *gorm.DB) *GormMarginAccrualRepository {
	return &GormMarginAccrualRepository{db: db}
}

// accrualDay normalizes a date to UTC midnight so day equality survives
// round-tripping through the database
func accrualDay(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
}

// FindByIDForTenant finds an accrual record by ID within a tenant
func (r *GormMarginAccrualRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*accrual.MarginAccrualRecord, error) {
	var model models.MarginAccrualModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStationDate finds all records for a station/date/window combination
func (r *GormMarginAccrualRepository) FindByStationDate(ctx context.Context, tenantID, stationID uuid.UUID, date time.Time, windowID string) ([]*accrual.MarginAccrualRecord, error) {
	var accrualModels []models.MarginAccrualModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND station_id = ? AND accrual_date = ? AND window_id = ?",
			tenantID, stationID, accrualDay(date), windowID).
		Order("product ASC").
		Find(&accrualModels).Error; err != nil {
		return nil, err
	}
	return toDomainAccruals(accrualModels), nil
}

// FindByStationDateRange finds records for a station within a date range
func (r *GormMarginAccrualRepository) FindByStationDateRange(ctx context.Context, tenantID, stationID uuid.UUID, from, to time.Time) ([]*accrual.MarginAccrualRecord, error) {
	var accrualModels []models.MarginAccrualModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND station_id = ? AND accrual_date >= ? AND accrual_date <= ?",
			tenantID, stationID, accrualDay(from), accrualDay(to)).
		Order("accrual_date ASC, product ASC").
		Find(&accrualModels).Error; err != nil {
		return nil, err
	}
	return toDomainAccruals(accrualModels), nil
}

// FindAccruedForWindow finds ACCRUED records ready for settlement netting
func (r *GormMarginAccrualRepository) FindAccruedForWindow(ctx context.Context, tenantID, stationID uuid.UUID, from, to time.Time) ([]*accrual.MarginAccrualRecord, error) {
	var accrualModels []models.MarginAccrualModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND station_id = ? AND status = ? AND accrual_date >= ? AND accrual_date <= ?",
			tenantID, stationID, accrual.AccrualStatusAccrued, accrualDay(from), accrualDay(to)).
		Order("accrual_date ASC, product ASC").
		Find(&accrualModels).Error; err != nil {
		return nil, err
	}
	return toDomainAccruals(accrualModels), nil
}

// ReplaceForStationDate atomically deletes all non-posted records for the
// station/date/window and inserts the replacements
func (r *GormMarginAccrualRepository) ReplaceForStationDate(ctx context.Context, tenantID, stationID uuid.UUID, date time.Time, windowID string, records []*accrual.MarginAccrualRecord) error {
	day := accrualDay(date)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("tenant_id = ? AND station_id = ? AND accrual_date = ? AND window_id = ? AND status <> ?",
				tenantID, stationID, day, windowID, accrual.AccrualStatusPosted).
			Delete(&models.MarginAccrualModel{}).Error; err != nil {
			return err
		}
		for _, record := range records {
			model := models.MarginAccrualModelFromDomain(record)
			model.AccrualDate = day
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindStationsWithAccruals returns the distinct stations holding ACCRUED
// records in the date range
func (r *GormMarginAccrualRepository) FindStationsWithAccruals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]uuid.UUID, error) {
	var stationIDs []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.MarginAccrualModel{}).
		Where("tenant_id = ? AND status = ? AND accrual_date >= ? AND accrual_date <= ?",
			tenantID, accrual.AccrualStatusAccrued, accrualDay(from), accrualDay(to)).
		Distinct().
		Pluck("station_id", &stationIDs).Error; err != nil {
		return nil, err
	}
	return stationIDs, nil
}

// Save creates or updates a single accrual record
func (r *GormMarginAccrualRepository) Save(ctx context.Context, record *accrual.MarginAccrualRecord) error {
	model := models.MarginAccrualModelFromDomain(record)
	model.AccrualDate = accrualDay(record.AccrualDate)
	return r.db.WithContext(ctx).Save(model).Error
}

// HasPostedForStationDate reports whether any record for the
// station/date/window has already been posted to the ledger
func (r *GormMarginAccrualRepository) HasPostedForStationDate(ctx context.Context, tenantID, stationID uuid.UUID, date time.Time, windowID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.MarginAccrualModel{}).
		Where("tenant_id = ? AND station_id = ? AND accrual_date = ? AND window_id = ? AND status = ?",
			tenantID, stationID, accrualDay(date), windowID, accrual.AccrualStatusPosted).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func toDomainAccruals(accrualModels []models.MarginAccrualModel) []*accrual.MarginAccrualRecord {
	records := make([]*accrual.MarginAccrualRecord, len(accrualModels))
	for i := range accrualModels {
		records[i] = accrualModels[i].ToDomain()
	}
	return records
}

var _ accrual.MarginAccrualRepository = (*GormMarginAccrualRepository)(nil)
