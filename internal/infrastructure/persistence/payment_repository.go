package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/fuelerp/backend/internal/domain/payment"
	"github.com/fuelerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentBatchRepository implements PaymentBatchRepository using GORM
type GormPaymentBatchRepository struct {
	db *gorm.DB
}

// NewGormPaymentBatchRepository creates a new GormPaymentBatchRepository
func NewGormPaymentBatchRepository(db *gorm.DB) *GormPaymentBatchRepository {
	return &GormPaymentBatchRepository{db: db}
}

// FindByIDForTenant finds a batch by ID within a tenant
func (r *GormPaymentBatchRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*payment.PaymentBatch, error) {
	var model models.PaymentBatchModel
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

// FindByStatus finds batches in a given status for a tenant
func (r *GormPaymentBatchRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status payment.BatchStatus) ([]*payment.PaymentBatch, error) {
	var batchModels []models.PaymentBatchModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, status).
		Order("batch_date DESC").
		Find(&batchModels).Error; err != nil {
		return nil, err
	}
	return toDomainBatches(batchModels), nil
}

// FindByDateRange finds batches whose batch date falls in the range
func (r *GormPaymentBatchRepository) FindByDateRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*payment.PaymentBatch, error) {
	var batchModels []models.PaymentBatchModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND batch_date >= ? AND batch_date <= ?", tenantID, from, to).
		Order("batch_date ASC").
		Find(&batchModels).Error; err != nil {
		return nil, err
	}
	return toDomainBatches(batchModels), nil
}

// SettlementInOpenBatch reports whether a settlement already belongs to a
// pending or processing batch. Batch items live in JSONB, so membership
// is checked over the tenant's open batches in memory.
func (r *GormPaymentBatchRepository) SettlementInOpenBatch(ctx context.Context, tenantID, settlementID uuid.UUID) (bool, error) {
	var batchModels []models.PaymentBatchModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ?", tenantID,
			[]payment.BatchStatus{payment.BatchStatusPending, payment.BatchStatusProcessing}).
		Find(&batchModels).Error; err != nil {
		return false, err
	}
	for i := range batchModels {
		for _, item := range batchModels[i].Items {
			if item.SettlementID == settlementID {
				return true, nil
			}
		}
	}
	return false, nil
}

// Save creates or updates a batch
func (r *GormPaymentBatchRepository) Save(ctx context.Context, batch *payment.PaymentBatch) error {
	return r.db.WithContext(ctx).Save(models.PaymentBatchModelFromDomain(batch)).Error
}

func toDomainBatches(batchModels []models.PaymentBatchModel) []*payment.PaymentBatch {
	batches := make([]*payment.PaymentBatch, len(batchModels))
	for i := range batchModels {
		batches[i] = batchModels[i].ToDomain()
	}
	return batches
}

// GormPaymentRuleRepository implements PaymentRuleRepository using GORM
type GormPaymentRuleRepository struct {
	db *gorm.DB
}

// NewGormPaymentRuleRepository creates a new GormPaymentRuleRepository
func NewGormPaymentRuleRepository(db *gorm.DB) *GormPaymentRuleRepository {
	return &GormPaymentRuleRepository{db: db}
}

// FindActiveForTenant returns active rules ordered by ascending priority
func (r *GormPaymentRuleRepository) FindActiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]*payment.PaymentRule, error) {
	var ruleModels []models.PaymentRuleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("priority ASC").
		Find(&ruleModels).Error; err != nil {
		return nil, err
	}
	rules := make([]*payment.PaymentRule, len(ruleModels))
	for i := range ruleModels {
		rules[i] = ruleModels[i].ToDomain()
	}
	return rules, nil
}

// FindByIDForTenant finds a rule by ID within a tenant
func (r *GormPaymentRuleRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*payment.PaymentRule, error) {
	var model models.PaymentRuleModel
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

// Save creates or updates a rule
func (r *GormPaymentRuleRepository) Save(ctx context.Context, rule *payment.PaymentRule) error {
	return r.db.WithContext(ctx).Save(models.PaymentRuleModelFromDomain(rule)).Error
}

// GormPaymentInstructionRepository implements PaymentInstructionRepository using GORM
type GormPaymentInstructionRepository struct {
	db *gorm.DB
}

// NewGormPaymentInstructionRepository creates a new GormPaymentInstructionRepository
func NewGormPaymentInstructionRepository(db *gorm.DB) *GormPaymentInstructionRepository {
	return &GormPaymentInstructionRepository{db: db}
}

// SaveAll persists a set of instructions atomically
func (r *GormPaymentInstructionRepository) SaveAll(ctx context.Context, instructions []*payment.PaymentInstruction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, instruction := range instructions {
			if err := tx.Save(models.PaymentInstructionModelFromDomain(instruction)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindQueued returns queued instructions for a tenant ordered by priority
// then scheduled date. HIGH sorts before NORMAL before LOW.
func (r *GormPaymentInstructionRepository) FindQueued(ctx context.Context, tenantID uuid.UUID) ([]*payment.PaymentInstruction, error) {
	var instructionModels []models.PaymentInstructionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, payment.InstructionStatusQueued).
		Order("CASE priority WHEN 'HIGH' THEN 0 WHEN 'NORMAL' THEN 1 ELSE 2 END, scheduled_date ASC").
		Find(&instructionModels).Error; err != nil {
		return nil, err
	}
	return toDomainInstructions(instructionModels), nil
}

// FindBySettlement returns instructions raised for a settlement
func (r *GormPaymentInstructionRepository) FindBySettlement(ctx context.Context, tenantID, settlementID uuid.UUID) ([]*payment.PaymentInstruction, error) {
	var instructionModels []models.PaymentInstructionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND settlement_id = ?", tenantID, settlementID).
		Order("scheduled_date ASC").
		Find(&instructionModels).Error; err != nil {
		return nil, err
	}
	return toDomainInstructions(instructionModels), nil
}

func toDomainInstructions(instructionModels []models.PaymentInstructionModel) []*payment.PaymentInstruction {
	instructions := make([]*payment.PaymentInstruction, len(instructionModels))
	for i := range instructionModels {
		instructions[i] = instructionModels[i].ToDomain()
	}
	return instructions
}

var (
	_ payment.PaymentBatchRepository       = (*GormPaymentBatchRepository)(nil)
	_ payment.PaymentRuleRepository        = (*GormPaymentRuleRepository)(nil)
	_ payment.PaymentInstructionRepository = (*GormPaymentInstructionRepository)(nil)
)
