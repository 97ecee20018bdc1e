package reservations

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/pkg/db/models"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/logger"
)

type holdKey struct {
	user  uuid.UUID
	entry uuid.UUID
}

type fakeHoldsRepo struct {
	holds map[holdKey]*models.CartReservation
}

func newFakeHoldsRepo() *fakeHoldsRepo {
	return &fakeHoldsRepo{holds: map[holdKey]*models.CartReservation{}}
}

func (f *fakeHoldsRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeHoldsRepo) Upsert(ctx context.Context, reservation *models.CartReservation) error {
	copied := *reservation
	f.holds[holdKey{user: reservation.UserID, entry: reservation.AvailabilityID}] = &copied
	return nil
}

func (f *fakeHoldsRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.CartReservation, error) {
	var out []models.CartReservation
	for key, hold := range f.holds {
		if key.user == userID && hold.ExpiresAt.After(now) {
			out = append(out, *hold)
		}
	}
	return out, nil
}

func (f *fakeHoldsRepo) ActiveQtyByAvailability(ctx context.Context, ids []uuid.UUID, now time.Time) (map[uuid.UUID]int, error) {
	held := map[uuid.UUID]int{}
	for _, id := range ids {
		for key, hold := range f.holds {
			if key.entry == id && hold.ExpiresAt.After(now) {
				held[id] += hold.Qty
			}
		}
	}
	return held, nil
}

func (f *fakeHoldsRepo) ActiveQtyExcludingUser(ctx context.Context, availabilityID, userID uuid.UUID, now time.Time) (int, error) {
	total := 0
	for key, hold := range f.holds {
		if key.entry == availabilityID && key.user != userID && hold.ExpiresAt.After(now) {
			total += hold.Qty
		}
	}
	return total, nil
}

func (f *fakeHoldsRepo) Delete(ctx context.Context, userID, availabilityID uuid.UUID) (bool, error) {
	key := holdKey{user: userID, entry: availabilityID}
	if _, ok := f.holds[key]; !ok {
		return false, nil
	}
	delete(f.holds, key)
	return true, nil
}

func (f *fakeHoldsRepo) DeleteForUser(ctx context.Context, userID uuid.UUID, availabilityIDs []uuid.UUID) error {
	for _, id := range availabilityIDs {
		delete(f.holds, holdKey{user: userID, entry: id})
	}
	return nil
}

func (f *fakeHoldsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	for key, hold := range f.holds {
		if !hold.ExpiresAt.After(now) {
			delete(f.holds, key)
			removed++
		}
	}
	return removed, nil
}

type fakeAvailabilityReader struct {
	entries map[uuid.UUID]*models.BasketAvailability
}

func (f *fakeAvailabilityReader) FindByID(ctx context.Context, id uuid.UUID) (*models.BasketAvailability, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *entry
	return &copied, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func testClock() (time.Time, func() time.Time) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return now, func() time.Time { return now }
}

func newHoldService(t *testing.T, repo Repository, reader AvailabilityReader, now func() time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repository:   repo,
		Availability: reader,
		Tx:           stubTxRunner{},
		Logger:       logger.New(logger.Options{ServiceName: "reservations-test", Output: io.Discard}),
		Now:          now,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func seedAvailability(available int, date time.Time) (*fakeAvailabilityReader, uuid.UUID) {
	id := uuid.New()
	reader := &fakeAvailabilityReader{entries: map[uuid.UUID]*models.BasketAvailability{
		id: {
			ID:               id,
			BasketTypeID:     uuid.New(),
			PickupLocationID: uuid.New(),
			DistributionDate: date,
			PublishedQty:     available,
			AvailableQty:     available,
		},
	}}
	return reader, id
}

func TestReserveSetsExpiry(t *testing.T) {
	now, clock := testClock()
	reader, availabilityID := seedAvailability(10, now.AddDate(0, 0, 4))
	repo := newFakeHoldsRepo()
	svc := newHoldService(t, repo, reader, clock)

	hold, err := svc.Reserve(context.Background(), ReserveInput{
		UserID:         uuid.New(),
		AvailabilityID: availabilityID,
		Qty:            2,
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !hold.ExpiresAt.Equal(now.Add(DefaultTTL)) {
		t.Fatalf("unexpected expiry: %v", hold.ExpiresAt)
	}
	if len(repo.holds) != 1 {
		t.Fatalf("expected one stored hold, got %d", len(repo.holds))
	}
}

func TestReserveReplaceDoesNotCountOwnHold(t *testing.T) {
	now, clock := testClock()
	reader, availabilityID := seedAvailability(5, now.AddDate(0, 0, 4))
	repo := newFakeHoldsRepo()
	svc := newHoldService(t, repo, reader, clock)
	userID := uuid.New()

	if _, err := svc.Reserve(context.Background(), ReserveInput{UserID: userID, AvailabilityID: availabilityID, Qty: 4}); err != nil {
		t.Fatalf("initial reserve: %v", err)
	}
	// Raising the same member's hold to 5 must succeed: the old hold of 4 is
	// replaced, not stacked.
	hold, err := svc.Reserve(context.Background(), ReserveInput{UserID: userID, AvailabilityID: availabilityID, Qty: 5})
	if err != nil {
		t.Fatalf("replacement reserve: %v", err)
	}
	if hold.Qty != 5 {
		t.Fatalf("unexpected quantity: %d", hold.Qty)
	}
}

func TestReserveRejectsWhenOthersHoldStock(t *testing.T) {
	now, clock := testClock()
	reader, availabilityID := seedAvailability(5, now.AddDate(0, 0, 4))
	repo := newFakeHoldsRepo()
	svc := newHoldService(t, repo, reader, clock)

	if _, err := svc.Reserve(context.Background(), ReserveInput{UserID: uuid.New(), AvailabilityID: availabilityID, Qty: 4}); err != nil {
		t.Fatalf("first member reserve: %v", err)
	}
	_, err := svc.Reserve(context.Background(), ReserveInput{UserID: uuid.New(), AvailabilityID: availabilityID, Qty: 2})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestReserveRejectsPastDistributionDate(t *testing.T) {
	now, clock := testClock()
	reader, availabilityID := seedAvailability(5, now.AddDate(0, 0, -1))
	svc := newHoldService(t, newFakeHoldsRepo(), reader, clock)

	_, err := svc.Reserve(context.Background(), ReserveInput{UserID: uuid.New(), AvailabilityID: availabilityID, Qty: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestReserveUnknownAvailability(t *testing.T) {
	_, clock := testClock()
	reader := &fakeAvailabilityReader{entries: map[uuid.UUID]*models.BasketAvailability{}}
	svc := newHoldService(t, newFakeHoldsRepo(), reader, clock)

	_, err := svc.Reserve(context.Background(), ReserveInput{UserID: uuid.New(), AvailabilityID: uuid.New(), Qty: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReleaseMissingHoldIsNoOp(t *testing.T) {
	_, clock := testClock()
	reader := &fakeAvailabilityReader{entries: map[uuid.UUID]*models.BasketAvailability{}}
	svc := newHoldService(t, newFakeHoldsRepo(), reader, clock)

	if err := svc.Release(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("release of absent hold must succeed: %v", err)
	}
}

func TestSweepExpiredRemovesOnlyExpired(t *testing.T) {
	now, clock := testClock()
	reader, availabilityID := seedAvailability(10, now.AddDate(0, 0, 4))
	repo := newFakeHoldsRepo()
	svc := newHoldService(t, repo, reader, clock)

	repo.holds[holdKey{user: uuid.New(), entry: availabilityID}] = &models.CartReservation{
		Qty: 2, ExpiresAt: now.Add(-time.Minute),
	}
	repo.holds[holdKey{user: uuid.New(), entry: availabilityID}] = &models.CartReservation{
		Qty: 1, ExpiresAt: now.Add(time.Minute),
	}

	removed, err := svc.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one expired hold removed, got %d", removed)
	}
	if len(repo.holds) != 1 {
		t.Fatalf("active hold must survive the sweep")
	}
}
