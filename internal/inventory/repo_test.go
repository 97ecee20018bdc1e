package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/pkg/db/models"
)

func newLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	basketTypes := `
CREATE TABLE IF NOT EXISTS basket_types (
  id TEXT PRIMARY KEY,
  producer_name TEXT NOT NULL,
  label TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	availabilities := `
CREATE TABLE IF NOT EXISTS basket_availabilities (
  id TEXT PRIMARY KEY,
  basket_type_id TEXT NOT NULL,
  pickup_location_id TEXT NOT NULL,
  distribution_date DATETIME NOT NULL,
  published_qty INTEGER NOT NULL,
  available_qty INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (basket_type_id, pickup_location_id, distribution_date)
);`
	require.NoError(t, db.Exec(basketTypes).Error)
	require.NoError(t, db.Exec(availabilities).Error)
	return db
}

func seedEntry(t *testing.T, db *gorm.DB, published, available int) *models.BasketAvailability {
	t.Helper()

	entry := &models.BasketAvailability{
		ID:               uuid.New(),
		BasketTypeID:     uuid.New(),
		PickupLocationID: uuid.New(),
		DistributionDate: time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
		PublishedQty:     published,
		AvailableQty:     available,
	}
	require.NoError(t, db.Omit("BasketType").Create(entry).Error)
	return entry
}

func TestRepositoryDebit(t *testing.T) {
	t.Parallel()

	db := newLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	entry := seedEntry(t, db, 10, 4)

	ok, err := repo.Debit(ctx, entry.ID, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Debit(ctx, entry.ID, 2)
	require.NoError(t, err)
	require.False(t, ok, "debit past available quantity must be refused")

	var reloaded models.BasketAvailability
	require.NoError(t, db.Where("id = ?", entry.ID).First(&reloaded).Error)
	require.Equal(t, 1, reloaded.AvailableQty)
	require.Equal(t, 10, reloaded.PublishedQty)
}

func TestRepositoryCreditClampsAtPublished(t *testing.T) {
	t.Parallel()

	db := newLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	entry := seedEntry(t, db, 10, 8)

	require.NoError(t, repo.Credit(ctx, entry.ID, 5))

	var reloaded models.BasketAvailability
	require.NoError(t, db.Where("id = ?", entry.ID).First(&reloaded).Error)
	require.Equal(t, 10, reloaded.AvailableQty, "credit must clamp at published quantity")

	// A second credit against a full ledger entry changes nothing.
	require.NoError(t, repo.Credit(ctx, entry.ID, 2))
	require.NoError(t, db.Where("id = ?", entry.ID).First(&reloaded).Error)
	require.Equal(t, 10, reloaded.AvailableQty)
}

func TestRepositoryAdjustPublished(t *testing.T) {
	t.Parallel()

	db := newLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	// 10 published, 4 available: 6 already sold.
	entry := seedEntry(t, db, 10, 4)

	ok, err := repo.AdjustPublished(ctx, entry.ID, 15)
	require.NoError(t, err)
	require.True(t, ok)

	var reloaded models.BasketAvailability
	require.NoError(t, db.Where("id = ?", entry.ID).First(&reloaded).Error)
	require.Equal(t, 15, reloaded.PublishedQty)
	require.Equal(t, 9, reloaded.AvailableQty)

	ok, err = repo.AdjustPublished(ctx, entry.ID, 8)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, db.Where("id = ?", entry.ID).First(&reloaded).Error)
	require.Equal(t, 8, reloaded.PublishedQty)
	require.Equal(t, 2, reloaded.AvailableQty)

	// 6 already sold, so the published total cannot drop below 6.
	ok, err = repo.AdjustPublished(ctx, entry.ID, 5)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, db.Where("id = ?", entry.ID).First(&reloaded).Error)
	require.Equal(t, 8, reloaded.PublishedQty)
}

func TestRepositoryFindBySlot(t *testing.T) {
	t.Parallel()

	db := newLedgerTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	entry := seedEntry(t, db, 5, 5)

	found, err := repo.FindBySlot(ctx, entry.BasketTypeID, entry.PickupLocationID, entry.DistributionDate)
	require.NoError(t, err)
	require.Equal(t, entry.ID, found.ID)

	_, err = repo.FindBySlot(ctx, uuid.New(), entry.PickupLocationID, entry.DistributionDate)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
