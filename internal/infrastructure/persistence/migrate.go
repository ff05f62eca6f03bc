package persistence

import (
	"gorm.io/gorm"

	"github.com/fuelerp/backend/internal/infrastructure/persistence/models"
)

func migratedModels() []any {
	return []any{
		&models.MarginAccrualModel{},
		&models.SettlementModel{},
		&models.LoanModel{},
		&models.LoanPaymentModel{},
		&models.PaymentBatchModel{},
		&models.PaymentRuleModel{},
		&models.PaymentInstructionModel{},
		&models.StationBankAccountModel{},
	}
}

// AutoMigrate creates or updates the schema for all persistence models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(migratedModels()...)
}

// MigratedTables returns the table names covered by AutoMigrate
func MigratedTables() []string {
	type tabler interface{ TableName() string }

	tables := make([]string, 0, len(migratedModels()))
	for _, model := range migratedModels() {
		if t, ok := model.(tabler); ok {
			tables = append(tables, t.TableName())
		}
	}
	return tables
}
