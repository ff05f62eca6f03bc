package persistence

import (
	"context"

	"github.com/fuelerp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTenantSource enumerates the tenants holding settlement data. The
// scheduler uses it to fan scheduled runs out across tenants.
type GormTenantSource struct {
	db *gorm.DB
}

// NewGormTenantSource creates a new GormTenantSource
func NewGormTenantSource(db *gorm.DB) *GormTenantSource {
	return &GormTenantSource{db: db}
}

// ActiveTenants returns the distinct tenants with margin accrual records
func (s *GormTenantSource) ActiveTenants(ctx context.Context) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	if err := s.db.WithContext(ctx).
		Model(&models.MarginAccrualModel{}).
		Distinct().
		Pluck("tenant_id", &tenantIDs).Error; err != nil {
		return nil, err
	}
	return tenantIDs, nil
}
