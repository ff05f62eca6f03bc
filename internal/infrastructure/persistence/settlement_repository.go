package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/fuelerp/backend/internal/domain/accrual"
	"github.com/fuelerp/backend/internal/domain/lending"
	"github.com/fuelerp/backend/internal/domain/settlement"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/fuelerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSettlementRepository implements SettlementRepository using GORM
type GormSettlementRepository struct {
	db *gorm.DB
}

// NewGormSettlementRepository creates a new GormSettlementRepository
func NewGormSettlementRepository(db *gorm.DB) *GormSettlementRepository {
	return &GormSettlementRepository{db: db}
}

// FindByIDForTenant finds a settlement by ID within a tenant
func (r *GormSettlementRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*settlement.Settlement, error) {
	var model models.SettlementModel
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

// FindByStationWindow finds the settlement for a (station, window) pair
func (r *GormSettlementRepository) FindByStationWindow(ctx context.Context, tenantID, stationID uuid.UUID, windowID string) (*settlement.Settlement, error) {
	var model models.SettlementModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND station_id = ? AND window_id = ?", tenantID, stationID, windowID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStatus finds settlements in a given status for a tenant
func (r *GormSettlementRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status settlement.SettlementStatus) ([]*settlement.Settlement, error) {
	var settlementModels []models.SettlementModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, status).
		Order("settlement_date ASC").
		Find(&settlementModels).Error; err != nil {
		return nil, err
	}
	return toDomainSettlements(settlementModels), nil
}

// FindByStation finds all settlements for a station, newest period first
func (r *GormSettlementRepository) FindByStation(ctx context.Context, tenantID, stationID uuid.UUID) ([]*settlement.Settlement, error) {
	var settlementModels []models.SettlementModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND station_id = ?", tenantID, stationID).
		Order("period_start DESC").
		Find(&settlementModels).Error; err != nil {
		return nil, err
	}
	return toDomainSettlements(settlementModels), nil
}

// Save creates or updates a settlement. Updates are guarded by the
// aggregate version so stale copies cannot clobber approval or payment
// state written by a concurrent transaction.
func (r *GormSettlementRepository) Save(ctx context.Context, s *settlement.Settlement) error {
	return saveSettlementVersioned(r.db.WithContext(ctx), s)
}

// SaveWithAccrualPosting atomically persists the settlement and advances
// the netted accrual records to POSTED_TO_LEDGER
func (r *GormSettlementRepository) SaveWithAccrualPosting(ctx context.Context, s *settlement.Settlement, accrualIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveSettlementVersioned(tx, s); err != nil {
			return err
		}
		if len(accrualIDs) == 0 {
			return nil
		}
		now := time.Now()
		return tx.Model(&models.MarginAccrualModel{}).
			Where("tenant_id = ? AND id IN ?", s.TenantID, accrualIDs).
			Updates(map[string]any{
				"status":     accrual.AccrualStatusPosted,
				"posted_at":  now,
				"updated_at": now,
			}).Error
	})
}

// SaveWithLoanSweep atomically persists the paid settlement together with
// the swept loans and their payment records
func (r *GormSettlementRepository) SaveWithLoanSweep(ctx context.Context, s *settlement.Settlement, loans []*lending.Loan, payments []*lending.LoanPayment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveSettlementVersioned(tx, s); err != nil {
			return err
		}
		for _, loan := range loans {
			if err := saveLoanVersioned(tx, loan); err != nil {
				return err
			}
		}
		for _, payment := range payments {
			if err := tx.Create(models.LoanPaymentModelFromDomain(payment)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// saveSettlementVersioned inserts a new settlement, or updates an
// existing one only when the stored row still carries the version the
// aggregate was loaded at.
func saveSettlementVersioned(tx *gorm.DB, s *settlement.Settlement) error {
	model := models.SettlementModelFromDomain(s)
	if s.Version <= 1 {
		return tx.Create(model).Error
	}
	result := tx.Model(&models.SettlementModel{}).
		Where("id = ? AND version = ?", s.ID, s.Version-1).
		Select("*").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "Settlement was modified by another transaction")
	}
	return nil
}

func toDomainSettlements(settlementModels []models.SettlementModel) []*settlement.Settlement {
	settlements := make([]*settlement.Settlement, len(settlementModels))
	for i := range settlementModels {
		settlements[i] = settlementModels[i].ToDomain()
	}
	return settlements
}

var _ settlement.SettlementRepository = (*GormSettlementRepository)(nil)
