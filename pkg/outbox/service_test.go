package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/pkg/db/models"
	"github.com/panierlocal/amap-backend/pkg/enums"
)

func newOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedOutboxRow(t *testing.T, repo *Repository, db *gorm.DB, createdAt time.Time, attempts int, published *time.Time) uuid.UUID {
	t.Helper()

	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
		CreatedAt:     createdAt,
		AttemptCount:  attempts,
		PublishedAt:   published,
	}
	require.NoError(t, repo.Insert(db, row))
	return row.ID
}

func TestServiceEmitWrapsEnvelope(t *testing.T) {
	t.Parallel()

	db := newOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	aggregateID := uuid.New()
	actorID := uuid.New()

	type stockData struct {
		AvailabilityID uuid.UUID `json:"availability_id"`
		PublishedQty   int       `json:"published_qty"`
	}
	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventStockPublished,
		AggregateType: enums.AggregateBasketAvailability,
		AggregateID:   aggregateID,
		Version:       1,
		Actor:         &ActorRef{UserID: actorID, Role: "admin"},
		Data:          stockData{AvailabilityID: aggregateID, PublishedQty: 12},
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, enums.EventStockPublished, row.EventType)
	require.Equal(t, aggregateID, row.AggregateID)
	require.Nil(t, row.PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.False(t, envelope.OccurredAt.IsZero())
	require.NotNil(t, envelope.Actor)
	require.Equal(t, actorID, envelope.Actor.UserID)

	var data stockData
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, 12, data.PublishedQty)
}

func TestServiceEmitRequiresTransaction(t *testing.T) {
	t.Parallel()

	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCreated})
	require.Error(t, err)
}

func TestRepositoryFetchUnpublished(t *testing.T) {
	t.Parallel()

	db := newOutboxTestDB(t)
	repo := NewRepository(db)
	now := time.Now().UTC()

	oldest := seedOutboxRow(t, repo, db, now.Add(-3*time.Minute), 0, nil)
	newest := seedOutboxRow(t, repo, db, now.Add(-1*time.Minute), 0, nil)
	publishedAt := now.Add(-2 * time.Minute)
	seedOutboxRow(t, repo, db, now.Add(-5*time.Minute), 0, &publishedAt)
	seedOutboxRow(t, repo, db, now.Add(-4*time.Minute), 10, nil)

	rows, err := repo.FetchUnpublishedTx(db, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2, "published and attempt-exhausted rows must be skipped")
	require.Equal(t, oldest, rows[0].ID, "oldest first")
	require.Equal(t, newest, rows[1].ID)

	limited, err := repo.FetchUnpublishedTx(db, 1, 10)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestRepositoryMarkPublished(t *testing.T) {
	t.Parallel()

	db := newOutboxTestDB(t)
	repo := NewRepository(db)
	id := seedOutboxRow(t, repo, db, time.Now().UTC(), 0, nil)

	require.NoError(t, repo.MarkPublishedTx(db, id))

	var row models.OutboxEvent
	require.NoError(t, db.Where("id = ?", id).First(&row).Error)
	require.NotNil(t, row.PublishedAt)

	rows, err := repo.FetchUnpublishedTx(db, 10, 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRepositoryMarkFailedIncrementsAttempts(t *testing.T) {
	t.Parallel()

	db := newOutboxTestDB(t)
	repo := NewRepository(db)
	id := seedOutboxRow(t, repo, db, time.Now().UTC(), 0, nil)

	require.NoError(t, repo.MarkFailedTx(db, id, errors.New("publish timeout")))
	require.NoError(t, repo.MarkFailedTx(db, id, errors.New("publish timeout")))

	var row models.OutboxEvent
	require.NoError(t, db.Where("id = ?", id).First(&row).Error)
	require.Equal(t, 2, row.AttemptCount)
	require.NotNil(t, row.LastError)
	require.Equal(t, "publish timeout", *row.LastError)
}

func TestRepositoryMarkTerminalExhaustsAttempts(t *testing.T) {
	t.Parallel()

	db := newOutboxTestDB(t)
	repo := NewRepository(db)
	id := seedOutboxRow(t, repo, db, time.Now().UTC(), 1, nil)

	require.NoError(t, repo.MarkTerminalTx(db, id, errors.New("unsupported event type"), 10))

	var row models.OutboxEvent
	require.NoError(t, db.Where("id = ?", id).First(&row).Error)
	require.Equal(t, 10, row.AttemptCount)

	rows, err := repo.FetchUnpublishedTx(db, 10, 10)
	require.NoError(t, err)
	require.Empty(t, rows, "terminal rows must never be fetched again")

	// A terminal row that already overshot the budget keeps its count.
	overshoot := seedOutboxRow(t, repo, db, time.Now().UTC(), 15, nil)
	require.NoError(t, repo.MarkTerminalTx(db, overshoot, errors.New("bad payload"), 10))
	var overshootRow models.OutboxEvent
	require.NoError(t, db.Where("id = ?", overshoot).First(&overshootRow).Error)
	require.Equal(t, 15, overshootRow.AttemptCount)
}
