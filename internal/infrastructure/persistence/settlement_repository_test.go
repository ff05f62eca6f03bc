package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelerp/backend/internal/domain/settlement"
	"github.com/fuelerp/backend/internal/domain/shared"
)

func newCalculatedTestSettlement(t *testing.T, tenantID, stationID uuid.UUID, reference string) *settlement.Settlement {
	t.Helper()
	sett, err := settlement.NewSettlement(tenantID, reference, settlement.Calculation{
		StationID:       stationID,
		WindowID:        "2026-W4",
		PeriodStart:     time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		PeriodEnd:       time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		TotalLitresSold: decimal.NewFromInt(10000),
		GrossMargin:     decimal.NewFromInt(4000),
		LoanDeduction:   decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	return sett
}

func TestSettlementRepository_VersionedSave(t *testing.T) {
	db := setupAccrualTestDB(t)
	repo := NewGormSettlementRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("should reject a stale save after a concurrent approval", func(t *testing.T) {
		sett := newCalculatedTestSettlement(t, tenantID, uuid.New(), "SETT-2026-001")
		require.NoError(t, repo.Save(ctx, sett))

		first, err := repo.FindByIDForTenant(ctx, tenantID, sett.ID)
		require.NoError(t, err)
		second, err := repo.FindByIDForTenant(ctx, tenantID, sett.ID)
		require.NoError(t, err)

		require.NoError(t, first.Approve(uuid.New()))
		require.NoError(t, repo.Save(ctx, first))

		require.NoError(t, second.Approve(uuid.New()))
		err = repo.Save(ctx, second)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "CONCURRENCY_CONFLICT", domainErr.Code)

		stored, err := repo.FindByIDForTenant(ctx, tenantID, sett.ID)
		require.NoError(t, err)
		assert.Equal(t, settlement.SettlementStatusApproved, stored.Status)
		assert.Equal(t, first.Version, stored.Version)
	})

	t.Run("should update the stored row when the version matches", func(t *testing.T) {
		sett := newCalculatedTestSettlement(t, tenantID, uuid.New(), "SETT-2026-002")
		require.NoError(t, repo.Save(ctx, sett))

		loaded, err := repo.FindByIDForTenant(ctx, tenantID, sett.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Approve(uuid.New()))
		require.NoError(t, repo.Save(ctx, loaded))

		stored, err := repo.FindByIDForTenant(ctx, tenantID, sett.ID)
		require.NoError(t, err)
		assert.Equal(t, settlement.SettlementStatusApproved, stored.Status)
		assert.NotNil(t, stored.ApprovedBy)
	})
}
