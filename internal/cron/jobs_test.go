package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/panierlocal/amap-backend/internal/orders"
	"github.com/panierlocal/amap-backend/pkg/db/models"
	"github.com/panierlocal/amap-backend/pkg/enums"
	"github.com/panierlocal/amap-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type fakeSweeper struct {
	removed int64
	err     error
	calls   int
}

func (f *fakeSweeper) SweepExpired(ctx context.Context) (int64, error) {
	f.calls++
	return f.removed, f.err
}

func TestReservationSweepJob(t *testing.T) {
	sweeper := &fakeSweeper{removed: 3}
	job, err := NewReservationSweepJob(testLogger(), sweeper)
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if job.Name() != "reservation-sweep" {
		t.Fatalf("unexpected job name: %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
}

func TestReservationSweepJobSurfacesError(t *testing.T) {
	job, err := NewReservationSweepJob(testLogger(), &fakeSweeper{err: errors.New("database down")})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected sweep error to surface")
	}
}

type fakePendingReader struct {
	orders []models.Order
	err    error
	cutoff time.Time
}

func (f *fakePendingReader) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	f.cutoff = cutoff
	return f.orders, f.err
}

type cancelCall struct {
	orderID uuid.UUID
	actor   orders.Actor
	reason  string
}

type fakeOrderService struct {
	calls     []cancelCall
	failOrder uuid.UUID
}

func (f *fakeOrderService) Create(ctx context.Context, input orders.CreateInput) (*models.Order, error) {
	return nil, errors.New("not used by cron jobs")
}

func (f *fakeOrderService) Get(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	return nil, errors.New("not used by cron jobs")
}

func (f *fakeOrderService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return nil, errors.New("not used by cron jobs")
}

func (f *fakeOrderService) ListAdmin(ctx context.Context, filter orders.ListFilter) ([]models.Order, error) {
	return nil, errors.New("not used by cron jobs")
}

func (f *fakeOrderService) Cancel(ctx context.Context, input orders.CancelInput) (*models.Order, error) {
	f.calls = append(f.calls, cancelCall{orderID: input.OrderID, actor: input.Actor, reason: input.Reason})
	if input.OrderID == f.failOrder {
		return nil, errors.New("order was modified concurrently")
	}
	return &models.Order{ID: input.OrderID, Status: enums.OrderStatusCancelled}, nil
}

func (f *fakeOrderService) UpdateStatus(ctx context.Context, input orders.UpdateStatusInput) (*models.Order, error) {
	return nil, errors.New("not used by cron jobs")
}

func TestStaleOrderJobCancelsUnpaidOrders(t *testing.T) {
	now := time.Date(2026, 9, 10, 8, 30, 0, 0, time.UTC)
	stale := []models.Order{
		{ID: uuid.New(), OrderNumber: "AMAP-1", Status: enums.OrderStatusPending},
		{ID: uuid.New(), OrderNumber: "AMAP-2", Status: enums.OrderStatusPending},
	}
	reader := &fakePendingReader{orders: stale}
	svc := &fakeOrderService{}
	job, err := NewStaleOrderJob(StaleOrderJobParams{
		Logger: testLogger(),
		Reader: reader,
		Orders: svc,
		Now:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if job.Name() != "stale-order-cleanup" {
		t.Fatalf("unexpected job name: %s", job.Name())
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reader.cutoff.Equal(time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("cutoff must be the start of today, got %v", reader.cutoff)
	}
	if len(svc.calls) != 2 {
		t.Fatalf("expected two cancellations, got %d", len(svc.calls))
	}
	for _, call := range svc.calls {
		if call.reason != "unpaid past distribution date" {
			t.Fatalf("unexpected reason: %q", call.reason)
		}
		if !call.actor.Role.IsAdmin() {
			t.Fatalf("scheduler must cancel with the system admin actor")
		}
	}
}

func TestStaleOrderJobContinuesPastFailures(t *testing.T) {
	failing := uuid.New()
	stale := []models.Order{
		{ID: failing, OrderNumber: "AMAP-1", Status: enums.OrderStatusPending},
		{ID: uuid.New(), OrderNumber: "AMAP-2", Status: enums.OrderStatusPending},
	}
	svc := &fakeOrderService{failOrder: failing}
	job, err := NewStaleOrderJob(StaleOrderJobParams{
		Logger: testLogger(),
		Reader: &fakePendingReader{orders: stale},
		Orders: svc,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}

	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatalf("expected the failed cancellation to surface")
	}
	if len(svc.calls) != 2 {
		t.Fatalf("one failure must not stop the remaining cancellations, got %d calls", len(svc.calls))
	}
}

func TestStaleOrderJobNothingToDo(t *testing.T) {
	job, err := NewStaleOrderJob(StaleOrderJobParams{
		Logger: testLogger(),
		Reader: &fakePendingReader{},
		Orders: &fakeOrderService{},
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run with empty queue: %v", err)
	}
}
