package reservations

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

func newHoldsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:holds_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS cart_reservations (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  availability_id TEXT NOT NULL,
  qty INTEGER NOT NULL,
  expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_id, availability_id)
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func newHold(userID, availabilityID uuid.UUID, qty int, expiresAt time.Time) *models.CartReservation {
	return &models.CartReservation{
		ID:             uuid.New(),
		UserID:         userID,
		AvailabilityID: availabilityID,
		Qty:            qty,
		ExpiresAt:      expiresAt,
	}
}

func TestRepositoryUpsertReplacesHold(t *testing.T) {
	t.Parallel()

	db := newHoldsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	availabilityID := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, newHold(userID, availabilityID, 2, now.Add(15*time.Minute))))
	require.NoError(t, repo.Upsert(ctx, newHold(userID, availabilityID, 5, now.Add(30*time.Minute))))

	var rows []models.CartReservation
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1, "upsert must replace, not accumulate")
	require.Equal(t, 5, rows[0].Qty)
}

func TestRepositoryActiveQtyByAvailabilityIgnoresExpired(t *testing.T) {
	t.Parallel()

	db := newHoldsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	availabilityID := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, newHold(uuid.New(), availabilityID, 2, now.Add(10*time.Minute))))
	require.NoError(t, repo.Upsert(ctx, newHold(uuid.New(), availabilityID, 3, now.Add(5*time.Minute))))
	require.NoError(t, repo.Upsert(ctx, newHold(uuid.New(), availabilityID, 4, now.Add(-1*time.Minute))))

	held, err := repo.ActiveQtyByAvailability(ctx, []uuid.UUID{availabilityID}, now)
	require.NoError(t, err)
	require.Equal(t, 5, held[availabilityID])
}

func TestRepositoryActiveQtyExcludingUser(t *testing.T) {
	t.Parallel()

	db := newHoldsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	availabilityID := uuid.New()
	me := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, newHold(me, availabilityID, 4, now.Add(10*time.Minute))))
	require.NoError(t, repo.Upsert(ctx, newHold(uuid.New(), availabilityID, 3, now.Add(10*time.Minute))))

	others, err := repo.ActiveQtyExcludingUser(ctx, availabilityID, me, now)
	require.NoError(t, err)
	require.Equal(t, 3, others)

	// No other holds at all yields zero, not an error.
	empty, err := repo.ActiveQtyExcludingUser(ctx, uuid.New(), me, now)
	require.NoError(t, err)
	require.Zero(t, empty)
}

func TestRepositoryDeleteExpired(t *testing.T) {
	t.Parallel()

	db := newHoldsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, newHold(uuid.New(), uuid.New(), 1, now.Add(-2*time.Minute))))
	require.NoError(t, repo.Upsert(ctx, newHold(uuid.New(), uuid.New(), 1, now.Add(-1*time.Second))))
	require.NoError(t, repo.Upsert(ctx, newHold(uuid.New(), uuid.New(), 1, now.Add(10*time.Minute))))

	removed, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	var rows []models.CartReservation
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
}

func TestRepositoryDeleteForUser(t *testing.T) {
	t.Parallel()

	db := newHoldsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	first := uuid.New()
	second := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, newHold(userID, first, 1, now.Add(10*time.Minute))))
	require.NoError(t, repo.Upsert(ctx, newHold(userID, second, 1, now.Add(10*time.Minute))))
	require.NoError(t, repo.Upsert(ctx, newHold(uuid.New(), first, 1, now.Add(10*time.Minute))))

	require.NoError(t, repo.DeleteForUser(ctx, userID, []uuid.UUID{first, second}))

	var rows []models.CartReservation
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1, "other members' holds must survive")
	require.NotEqual(t, userID, rows[0].UserID)
}
