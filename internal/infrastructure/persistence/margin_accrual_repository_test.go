package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/fuelerp/backend/internal/domain/accrual"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAccrualTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = AutoMigrate(db)
	require.NoError(t, err)

	return db
}

func newTestAccrual(t *testing.T, tenantID, stationID uuid.UUID, product string, date time.Time, windowID string) *accrual.MarginAccrualRecord {
	t.Helper()
	record, err := accrual.NewMarginAccrualRecord(
		tenantID, stationID, product, date, windowID,
		decimal.NewFromInt(2000),
		decimal.NewFromFloat(0.40),
		decimal.NewFromFloat(179.50),
		[]string{"TXN-001", "TXN-002"},
	)
	require.NoError(t, err)
	return record
}

func TestMarginAccrualRepository_SaveAndFind(t *testing.T) {
	db := setupAccrualTestDB(t)
	repo := NewGormMarginAccrualRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	stationID := uuid.New()
	date := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	t.Run("should round trip a record through the database", func(t *testing.T) {
		record := newTestAccrual(t, tenantID, stationID, "PMS", date, "2025-W1")
		require.NoError(t, repo.Save(ctx, record))

		found, err := repo.FindByIDForTenant(ctx, tenantID, record.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, record.ID, found.ID)
		assert.Equal(t, stationID, found.StationID)
		assert.Equal(t, "PMS", found.Product)
		assert.Equal(t, accrual.AccrualStatusAccrued, found.Status)
		assert.True(t, found.MarginAmount.Equal(decimal.NewFromInt(800)))
		assert.Len(t, found.Details.TransactionIDs, 2)
	})

	t.Run("should normalize the accrual date to midnight", func(t *testing.T) {
		record := newTestAccrual(t, tenantID, stationID, "AGO", date, "2025-W1")
		require.NoError(t, repo.Save(ctx, record))

		// A query at a different time of day still hits the same record
		morning := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
		found, err := repo.FindByStationDate(ctx, tenantID, stationID, morning, "2025-W1")
		require.NoError(t, err)
		products := make([]string, len(found))
		for i, r := range found {
			products[i] = r.Product
		}
		assert.Contains(t, products, "AGO")
	})

	t.Run("should return nil for a missing record", func(t *testing.T) {
		found, err := repo.FindByIDForTenant(ctx, tenantID, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("should not leak records across tenants", func(t *testing.T) {
		record := newTestAccrual(t, tenantID, stationID, "DPK", date, "2025-W1")
		require.NoError(t, repo.Save(ctx, record))

		found, err := repo.FindByIDForTenant(ctx, uuid.New(), record.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestMarginAccrualRepository_ReplaceForStationDate(t *testing.T) {
	db := setupAccrualTestDB(t)
	repo := NewGormMarginAccrualRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	stationID := uuid.New()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("should replace non-posted records for the day", func(t *testing.T) {
		first := newTestAccrual(t, tenantID, stationID, "PMS", date, "2025-W1")
		require.NoError(t, repo.Save(ctx, first))

		replacement := newTestAccrual(t, tenantID, stationID, "PMS", date, "2025-W1")
		require.NoError(t, repo.ReplaceForStationDate(ctx, tenantID, stationID, date, "2025-W1",
			[]*accrual.MarginAccrualRecord{replacement}))

		found, err := repo.FindByStationDate(ctx, tenantID, stationID, date, "2025-W1")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, replacement.ID, found[0].ID)
	})

	t.Run("should leave posted records untouched", func(t *testing.T) {
		otherStation := uuid.New()
		posted := newTestAccrual(t, tenantID, otherStation, "PMS", date, "2025-W1")
		require.NoError(t, posted.PostToLedger())
		require.NoError(t, repo.Save(ctx, posted))

		replacement := newTestAccrual(t, tenantID, otherStation, "AGO", date, "2025-W1")
		require.NoError(t, repo.ReplaceForStationDate(ctx, tenantID, otherStation, date, "2025-W1",
			[]*accrual.MarginAccrualRecord{replacement}))

		found, err := repo.FindByStationDate(ctx, tenantID, otherStation, date, "2025-W1")
		require.NoError(t, err)
		assert.Len(t, found, 2)

		hasPosted, err := repo.HasPostedForStationDate(ctx, tenantID, otherStation, date, "2025-W1")
		require.NoError(t, err)
		assert.True(t, hasPosted)
	})
}

func TestMarginAccrualRepository_WindowQueries(t *testing.T) {
	db := setupAccrualTestDB(t)
	repo := NewGormMarginAccrualRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	stationA := uuid.New()
	stationB := uuid.New()
	windowStart := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for day := 0; day < 3; day++ {
		date := windowStart.AddDate(0, 0, day)
		require.NoError(t, repo.Save(ctx, newTestAccrual(t, tenantID, stationA, "PMS", date, "2025-W1")))
	}
	require.NoError(t, repo.Save(ctx, newTestAccrual(t, tenantID, stationB, "AGO", windowStart, "2025-W1")))

	posted := newTestAccrual(t, tenantID, stationA, "DPK", windowStart, "2025-W1")
	require.NoError(t, posted.PostToLedger())
	require.NoError(t, repo.Save(ctx, posted))

	t.Run("should find accrued records within the window", func(t *testing.T) {
		windowEnd := windowStart.AddDate(0, 0, 13)
		found, err := repo.FindAccruedForWindow(ctx, tenantID, stationA, windowStart, windowEnd)
		require.NoError(t, err)
		assert.Len(t, found, 3)
		for _, record := range found {
			assert.Equal(t, accrual.AccrualStatusAccrued, record.Status)
		}
	})

	t.Run("should list distinct stations holding accrued records", func(t *testing.T) {
		windowEnd := windowStart.AddDate(0, 0, 13)
		stations, err := repo.FindStationsWithAccruals(ctx, tenantID, windowStart, windowEnd)
		require.NoError(t, err)
		assert.Len(t, stations, 2)
		assert.Contains(t, stations, stationA)
		assert.Contains(t, stations, stationB)
	})

	t.Run("should respect the date range boundaries", func(t *testing.T) {
		found, err := repo.FindByStationDateRange(ctx, tenantID, stationA,
			windowStart, windowStart.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Len(t, found, 3) // two PMS days plus the posted DPK record
	})
}
