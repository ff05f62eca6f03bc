package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/fuelerp/backend/internal/domain/lending"
	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/fuelerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLoanRepository implements LoanRepository using GORM
type GormLoanRepository struct {
	db *gorm.DB
}

// NewGormLoanRepository creates a new GormLoanRepository
func NewGormLoanRepository(db *gorm.DB) *GormLoanRepository {
	return &GormLoanRepository{db: db}
}

// FindByIDForTenant finds a loan by ID within a tenant
func (r *GormLoanRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*lending.Loan, error) {
	var model models.LoanModel
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

// FindByReference finds a loan by its human reference within a tenant
func (r *GormLoanRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*lending.Loan, error) {
	var model models.LoanModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reference = ?", tenantID, reference).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByStation finds all ACTIVE loans for a station, oldest first
func (r *GormLoanRepository) FindActiveByStation(ctx context.Context, tenantID, stationID uuid.UUID) ([]*lending.Loan, error) {
	var loanModels []models.LoanModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND station_id = ? AND status = ?", tenantID, stationID, lending.LoanStatusActive).
		Order("start_date ASC").
		Find(&loanModels).Error; err != nil {
		return nil, err
	}
	return toDomainLoans(loanModels), nil
}

// FindByStation finds all loans for a station regardless of status
func (r *GormLoanRepository) FindByStation(ctx context.Context, tenantID, stationID uuid.UUID) ([]*lending.Loan, error) {
	var loanModels []models.LoanModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND station_id = ?", tenantID, stationID).
		Order("start_date ASC").
		Find(&loanModels).Error; err != nil {
		return nil, err
	}
	return toDomainLoans(loanModels), nil
}

// FindActiveDueOnOrBefore finds ACTIVE loans due for the penalty run,
// across all tenants
func (r *GormLoanRepository) FindActiveDueOnOrBefore(ctx context.Context, date time.Time) ([]*lending.Loan, error) {
	var loanModels []models.LoanModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND next_payment_date IS NOT NULL AND next_payment_date <= ?", lending.LoanStatusActive, date).
		Order("next_payment_date ASC").
		Find(&loanModels).Error; err != nil {
		return nil, err
	}
	return toDomainLoans(loanModels), nil
}

// CountActiveByStation counts ACTIVE loans for a station
func (r *GormLoanRepository) CountActiveByStation(ctx context.Context, tenantID, stationID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LoanModel{}).
		Where("tenant_id = ? AND station_id = ? AND status = ?", tenantID, stationID, lending.LoanStatusActive).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a loan. Updates are guarded by the aggregate
// version so a stale copy cannot overwrite a concurrent payment.
func (r *GormLoanRepository) Save(ctx context.Context, loan *lending.Loan) error {
	return saveLoanVersioned(r.db.WithContext(ctx), loan)
}

// SaveWithPayment atomically persists a loan mutation together with its
// payment record
func (r *GormLoanRepository) SaveWithPayment(ctx context.Context, loan *lending.Loan, payment *lending.LoanPayment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveLoanVersioned(tx, loan); err != nil {
			return err
		}
		return tx.Create(models.LoanPaymentModelFromDomain(payment)).Error
	})
}

// SaveRestructure atomically persists the restructured original and its
// active successor
func (r *GormLoanRepository) SaveRestructure(ctx context.Context, original, successor *lending.Loan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveLoanVersioned(tx, original); err != nil {
			return err
		}
		return saveLoanVersioned(tx, successor)
	})
}

// saveLoanVersioned inserts a new loan, or updates an existing one only
// when the stored row still carries the version the aggregate was loaded
// at. A zero-row update means another transaction got there first.
func saveLoanVersioned(tx *gorm.DB, loan *lending.Loan) error {
	model := models.LoanModelFromDomain(loan)
	if loan.Version <= 1 {
		return tx.Create(model).Error
	}
	result := tx.Model(&models.LoanModel{}).
		Where("id = ? AND version = ?", loan.ID, loan.Version-1).
		Select("*").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "Loan was modified by another transaction")
	}
	return nil
}

// FindPaymentsByLoan returns all payment records for a loan ordered by
// payment date ascending
func (r *GormLoanRepository) FindPaymentsByLoan(ctx context.Context, tenantID, loanID uuid.UUID) ([]*lending.LoanPayment, error) {
	var paymentModels []models.LoanPaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND loan_id = ?", tenantID, loanID).
		Order("payment_date ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	payments := make([]*lending.LoanPayment, len(paymentModels))
	for i := range paymentModels {
		payments[i] = paymentModels[i].ToDomain()
	}
	return payments, nil
}

func toDomainLoans(loanModels []models.LoanModel) []*lending.Loan {
	loans := make([]*lending.Loan, len(loanModels))
	for i := range loanModels {
		loans[i] = loanModels[i].ToDomain()
	}
	return loans
}

var _ lending.LoanRepository = (*GormLoanRepository)(nil)
