package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/pkg/db/models"
	"github.com/panierlocal/amap-backend/pkg/enums"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/outbox"
)

type fakeLedgerRepo struct {
	entries map[uuid.UUID]*models.BasketAvailability
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{entries: map[uuid.UUID]*models.BasketAvailability{}}
}

func (f *fakeLedgerRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeLedgerRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.BasketAvailability, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeLedgerRepo) FindBySlot(ctx context.Context, basketTypeID, locationID uuid.UUID, date time.Time) (*models.BasketAvailability, error) {
	for _, entry := range f.entries {
		if entry.BasketTypeID == basketTypeID && entry.PickupLocationID == locationID && entry.DistributionDate.Equal(date) {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLedgerRepo) ListUpcoming(ctx context.Context, from time.Time, locationID *uuid.UUID) ([]models.BasketAvailability, error) {
	var out []models.BasketAvailability
	for _, entry := range f.entries {
		if entry.DistributionDate.Before(from) {
			continue
		}
		if locationID != nil && entry.PickupLocationID != *locationID {
			continue
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (f *fakeLedgerRepo) Create(ctx context.Context, entry *models.BasketAvailability) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	copied := *entry
	f.entries[entry.ID] = &copied
	return nil
}

func (f *fakeLedgerRepo) Debit(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	entry, ok := f.entries[id]
	if !ok || entry.AvailableQty < qty {
		return false, nil
	}
	entry.AvailableQty -= qty
	return true, nil
}

func (f *fakeLedgerRepo) Credit(ctx context.Context, id uuid.UUID, qty int) error {
	entry, ok := f.entries[id]
	if !ok {
		return nil
	}
	entry.AvailableQty += qty
	if entry.AvailableQty > entry.PublishedQty {
		entry.AvailableQty = entry.PublishedQty
	}
	return nil
}

func (f *fakeLedgerRepo) AdjustPublished(ctx context.Context, id uuid.UUID, newPublished int) (bool, error) {
	entry, ok := f.entries[id]
	if !ok {
		return false, nil
	}
	next := entry.AvailableQty + newPublished - entry.PublishedQty
	if next < 0 {
		return false, nil
	}
	entry.AvailableQty = next
	entry.PublishedQty = newPublished
	return true, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

type stubCounter struct {
	held map[uuid.UUID]int
}

func (s stubCounter) ActiveQtyByAvailability(ctx context.Context, ids []uuid.UUID, now time.Time) (map[uuid.UUID]int, error) {
	if s.held == nil {
		return map[uuid.UUID]int{}, nil
	}
	return s.held, nil
}

func newLedgerService(t *testing.T, repo Repository, sink *recordingOutbox, counter ReservationCounter) Service {
	t.Helper()
	if counter == nil {
		counter = stubCounter{}
	}
	svc, err := NewService(ServiceParams{
		Repository:   repo,
		Tx:           stubTxRunner{},
		Outbox:       sink,
		Reservations: counter,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestPublishStockCreatesEntry(t *testing.T) {
	repo := newFakeLedgerRepo()
	sink := &recordingOutbox{}
	svc := newLedgerService(t, repo, sink, nil)

	input := PublishStockInput{
		BasketTypeID:     uuid.New(),
		PickupLocationID: uuid.New(),
		DistributionDate: time.Date(2026, 9, 5, 14, 30, 0, 0, time.UTC),
		Qty:              12,
		ActorUserID:      uuid.New(),
		ActorRole:        "admin",
	}
	entry, err := svc.PublishStock(context.Background(), input)
	if err != nil {
		t.Fatalf("publish stock: %v", err)
	}
	if entry.PublishedQty != 12 || entry.AvailableQty != 12 {
		t.Fatalf("unexpected quantities: %+v", entry)
	}
	if !entry.DistributionDate.Equal(time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("distribution date not truncated to day: %v", entry.DistributionDate)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(sink.events))
	}
	if sink.events[0].EventType != enums.EventStockPublished {
		t.Fatalf("unexpected event type: %s", sink.events[0].EventType)
	}
}

func TestPublishStockResizesExistingSlot(t *testing.T) {
	repo := newFakeLedgerRepo()
	sink := &recordingOutbox{}
	svc := newLedgerService(t, repo, sink, nil)

	date := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	entry := &models.BasketAvailability{
		BasketTypeID:     uuid.New(),
		PickupLocationID: uuid.New(),
		DistributionDate: date,
		PublishedQty:     10,
		AvailableQty:     4,
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	updated, err := svc.PublishStock(context.Background(), PublishStockInput{
		BasketTypeID:     entry.BasketTypeID,
		PickupLocationID: entry.PickupLocationID,
		DistributionDate: date,
		Qty:              14,
		ActorUserID:      uuid.New(),
		ActorRole:        "admin",
	})
	if err != nil {
		t.Fatalf("resize slot: %v", err)
	}
	if updated.PublishedQty != 14 || updated.AvailableQty != 8 {
		t.Fatalf("unexpected quantities after resize: %+v", updated)
	}
}

func TestPublishStockRejectsReductionBelowSold(t *testing.T) {
	repo := newFakeLedgerRepo()
	sink := &recordingOutbox{}
	svc := newLedgerService(t, repo, sink, nil)

	date := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	entry := &models.BasketAvailability{
		BasketTypeID:     uuid.New(),
		PickupLocationID: uuid.New(),
		DistributionDate: date,
		PublishedQty:     10,
		AvailableQty:     3,
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	_, err := svc.PublishStock(context.Background(), PublishStockInput{
		BasketTypeID:     entry.BasketTypeID,
		PickupLocationID: entry.PickupLocationID,
		DistributionDate: date,
		Qty:              5,
		ActorUserID:      uuid.New(),
		ActorRole:        "admin",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("rejected publication must not emit events")
	}
}

func TestPublishStockValidation(t *testing.T) {
	repo := newFakeLedgerRepo()
	svc := newLedgerService(t, repo, &recordingOutbox{}, nil)

	tests := []struct {
		name  string
		input PublishStockInput
	}{
		{name: "missing basket type", input: PublishStockInput{PickupLocationID: uuid.New(), DistributionDate: time.Now(), Qty: 1}},
		{name: "missing location", input: PublishStockInput{BasketTypeID: uuid.New(), DistributionDate: time.Now(), Qty: 1}},
		{name: "missing date", input: PublishStockInput{BasketTypeID: uuid.New(), PickupLocationID: uuid.New(), Qty: 1}},
		{name: "negative quantity", input: PublishStockInput{BasketTypeID: uuid.New(), PickupLocationID: uuid.New(), DistributionDate: time.Now(), Qty: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PublishStock(context.Background(), tc.input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGetAvailabilitySubtractsActiveHolds(t *testing.T) {
	repo := newFakeLedgerRepo()
	entry := &models.BasketAvailability{
		BasketTypeID:     uuid.New(),
		PickupLocationID: uuid.New(),
		DistributionDate: time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
		PublishedQty:     10,
		AvailableQty:     6,
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	svc := newLedgerService(t, repo, &recordingOutbox{}, stubCounter{held: map[uuid.UUID]int{entry.ID: 4}})

	view, err := svc.GetAvailability(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("get availability: %v", err)
	}
	if view.EffectiveQty != 2 {
		t.Fatalf("expected effective quantity 2, got %d", view.EffectiveQty)
	}
}

func TestGetAvailabilityClampsEffectiveQtyAtZero(t *testing.T) {
	repo := newFakeLedgerRepo()
	entry := &models.BasketAvailability{
		BasketTypeID:     uuid.New(),
		PickupLocationID: uuid.New(),
		DistributionDate: time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
		PublishedQty:     5,
		AvailableQty:     2,
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	svc := newLedgerService(t, repo, &recordingOutbox{}, stubCounter{held: map[uuid.UUID]int{entry.ID: 7}})

	view, err := svc.GetAvailability(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("get availability: %v", err)
	}
	if view.EffectiveQty != 0 {
		t.Fatalf("effective quantity must not go negative, got %d", view.EffectiveQty)
	}
}

func TestGetAvailabilityNotFound(t *testing.T) {
	svc := newLedgerService(t, newFakeLedgerRepo(), &recordingOutbox{}, nil)

	_, err := svc.GetAvailability(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
