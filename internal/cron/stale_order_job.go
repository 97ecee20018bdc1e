package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/panierlocal/amap-backend/internal/orders"
	"github.com/panierlocal/amap-backend/pkg/db/models"
	"github.com/panierlocal/amap-backend/pkg/enums"
	"github.com/panierlocal/amap-backend/pkg/logger"
)

// systemActorID marks lifecycle changes made by the scheduler rather than a
// member or admin.
var systemActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type pendingOrderReader interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

// StaleOrderJobParams configure the stale pending order cleanup.
type StaleOrderJobParams struct {
	Logger *logger.Logger
	Reader pendingOrderReader
	Orders orders.Service
	Now    func() time.Time
}

// NewStaleOrderJob builds the job that cancels unpaid orders whose
// distribution date has passed, returning their quantity to the ledger.
func NewStaleOrderJob(params StaleOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("pending order reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &staleOrderJob{
		logg:   params.Logger,
		reader: params.Reader,
		orders: params.Orders,
		now:    now,
	}, nil
}

type staleOrderJob struct {
	logg   *logger.Logger
	reader pendingOrderReader
	orders orders.Service
	now    func() time.Time
}

func (j *staleOrderJob) Name() string { return "stale-order-cleanup" }

func (j *staleOrderJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	stale, err := j.reader.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs []error
	canceled := 0
	for _, order := range stale {
		_, err := j.orders.Cancel(ctx, orders.CancelInput{
			OrderID: order.ID,
			Actor:   orders.Actor{UserID: systemActorID, Role: enums.MemberRoleAdmin},
			Reason:  "unpaid past distribution date",
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("cancel order %s: %w", order.OrderNumber, err))
			continue
		}
		canceled++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"examined": len(stale), "canceled": canceled})
	j.logg.Info(logCtx, "stale order cleanup complete")
	return multierr.Combine(errs...)
}
