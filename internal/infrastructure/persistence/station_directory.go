package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/fuelerp/backend/internal/domain/payment"
	"github.com/fuelerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStationDirectory resolves station disbursement accounts from the
// station_bank_accounts table
type GormStationDirectory struct {
	db *gorm.DB
}

// NewGormStationDirectory creates a new GormStationDirectory
func NewGormStationDirectory(db *gorm.DB) *GormStationDirectory {
	return &GormStationDirectory{db: db}
}

// BankAccount returns the registered disbursement account for a station.
// A station without a registered account returns an error, which callers
// treat as ineligible for automated payment.
func (d *GormStationDirectory) BankAccount(ctx context.Context, tenantID, stationID uuid.UUID) (payment.BankAccount, error) {
	var model models.StationBankAccountModel
	if err := d.db.WithContext(ctx).
		Where("tenant_id = ? AND station_id = ?", tenantID, stationID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payment.BankAccount{}, fmt.Errorf("no bank account registered for station %s", stationID)
		}
		return payment.BankAccount{}, err
	}
	return model.ToDomain(), nil
}

// RegisterAccount creates or replaces the disbursement account for a station
func (d *GormStationDirectory) RegisterAccount(ctx context.Context, tenantID, stationID uuid.UUID, account payment.BankAccount) error {
	var model models.StationBankAccountModel
	err := d.db.WithContext(ctx).
		Where("tenant_id = ? AND station_id = ?", tenantID, stationID).
		First(&model).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		model.ID = uuid.New()
		model.TenantID = tenantID
		model.StationID = stationID
	}
	model.AccountName = account.AccountName
	model.AccountNumber = account.AccountNumber
	model.BankName = account.BankName
	model.BankCode = account.BankCode
	return d.db.WithContext(ctx).Save(&model).Error
}

var _ payment.StationDirectory = (*GormStationDirectory)(nil)
