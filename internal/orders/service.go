package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/internal/inventory"
	"github.com/panierlocal/amap-backend/internal/reservations"
	dbpkg "github.com/panierlocal/amap-backend/pkg/db"
	"github.com/panierlocal/amap-backend/pkg/db/models"
	"github.com/panierlocal/amap-backend/pkg/enums"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/outbox"
	"github.com/panierlocal/amap-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// LocationReader loads pickup locations for order validation.
type LocationReader interface {
	FindLocationByID(ctx context.Context, id uuid.UUID) (*models.PickupLocation, error)
}

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListAdmin(ctx context.Context, filter ListFilter) ([]models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
}

// Actor identifies the caller for ownership checks.
type Actor struct {
	UserID uuid.UUID
	Role   enums.MemberRole
}

// CreateItemInput is one requested line in a new order.
type CreateItemInput struct {
	AvailabilityID uuid.UUID
	Qty            int
}

// CreateInput carries everything needed to place an order.
type CreateInput struct {
	UserID           uuid.UUID
	UserEmail        string
	PickupLocationID uuid.UUID
	Items            []CreateItemInput
	ActorRole        enums.MemberRole
}

// CancelInput captures a cancellation request.
type CancelInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Reason  string
}

// UpdateStatusInput captures an admin status change.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Actor   Actor
}

type service struct {
	repo      Repository
	ledger    inventory.Repository
	holds     reservations.Repository
	locations LocationReader
	tx        txRunner
	outbox    outboxPublisher
	now       func() time.Time
}

// ServiceParams wires the order service dependencies.
type ServiceParams struct {
	Repository Repository
	Ledger     inventory.Repository
	Holds      reservations.Repository
	Locations  LocationReader
	Tx         txRunner
	Outbox     outboxPublisher
	Now        func() time.Time
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Holds == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if params.Locations == nil {
		return nil, fmt.Errorf("location reader required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repository,
		ledger:    params.Ledger,
		holds:     params.Holds,
		locations: params.Locations,
		tx:        params.Tx,
		outbox:    params.Outbox,
		now:       now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.UserEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user email required")
	}
	if input.PickupLocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup location id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for _, item := range input.Items {
		if item.AvailabilityID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "availability id required")
		}
		if item.Qty < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		if _, dup := seen[item.AvailabilityID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate availability in order")
		}
		seen[item.AvailabilityID] = struct{}{}
	}

	now := s.now()
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledger := s.ledger.WithTx(tx)
		holds := s.holds.WithTx(tx)

		location, err := s.locations.FindLocationByID(ctx, input.PickupLocationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "pickup location not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup location")
		}
		if !location.Active {
			return pkgerrors.New(pkgerrors.CodeNotFound, "pickup location not found")
		}

		var (
			pickupDate      time.Time
			totalCents      int
			items           []models.OrderItem
			availabilityIDs []uuid.UUID
		)
		for _, line := range input.Items {
			entry, err := ledger.FindByID(ctx, line.AvailabilityID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "availability not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load availability")
			}
			if !entry.BasketType.Active {
				return pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("basket %q is no longer offered", entry.BasketType.Label))
			}
			if entry.PickupLocationID != input.PickupLocationID {
				return pkgerrors.New(pkgerrors.CodeValidation, "availability does not belong to pickup location")
			}
			if entry.DistributionDate.Before(truncateToDay(now)) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "distribution date already passed")
			}
			if pickupDate.IsZero() {
				pickupDate = entry.DistributionDate
			} else if !pickupDate.Equal(entry.DistributionDate) {
				return pkgerrors.New(pkgerrors.CodeValidation, "order items must share a distribution date")
			}

			ok, err := ledger.Debit(ctx, entry.ID, line.Qty)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit availability")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock,
					fmt.Sprintf("not enough %q baskets available", entry.BasketType.Label))
			}

			totalCents += entry.BasketType.PriceCents * line.Qty
			items = append(items, models.OrderItem{
				AvailabilityID:    entry.ID,
				BasketLabel:       entry.BasketType.Label,
				Qty:               line.Qty,
				PriceCentsAtOrder: entry.BasketType.PriceCents,
			})
			availabilityIDs = append(availabilityIDs, entry.ID)
		}

		order := &models.Order{
			OrderNumber:      NewOrderNumber(now),
			UserID:           input.UserID,
			UserEmail:        input.UserEmail,
			Status:           enums.OrderStatusPending,
			TotalCents:       totalCents,
			PickupLocationID: input.PickupLocationID,
			PickupDate:       pickupDate,
		}
		if err := repo.Create(ctx, order); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_orders_order_number") {
				order.OrderNumber = NewOrderNumber(s.now())
				err = repo.Create(ctx, order)
			}
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = items

		// The order now owns the quantity, so the advisory holds that backed
		// it are consumed.
		if err := holds.DeleteForUser(ctx, input.UserID, availabilityIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume reservations")
		}

		created = order
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: string(input.ActorRole)},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      order.UserID,
				TotalCents:  order.TotalCents,
				PickupDate:  order.PickupDate,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !actor.Role.IsAdmin() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orders, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) ListAdmin(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	now := s.now()
	var canceled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.loadOwnedOrder(ctx, tx, input.Actor, input.OrderID)
		if err != nil {
			return err
		}
		updated, err := s.cancelLocked(ctx, tx, order, input.Actor, input.Reason, now)
		if err != nil {
			return err
		}
		canceled = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return canceled, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Actor.Role.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}
	if input.Target == enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paid status is set by payment settlement")
	}

	now := s.now()
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		// Cancellation and refund both return quantity to the ledger.
		if input.Target == enums.OrderStatusCancelled || input.Target == enums.OrderStatusRefunded {
			reason := ""
			if input.Target == enums.OrderStatusRefunded {
				reason = "refunded"
			}
			result, err := s.returnStock(ctx, tx, order, input.Actor, input.Target, reason, now)
			if err != nil {
				return err
			}
			updated = result
			return nil
		}

		if !order.Status.CanTransitionTo(input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Target))
		}
		ok, err := repo.UpdateStatus(ctx, order.ID, order.Status, input.Target, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
		}
		order.Status = input.Target
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) loadOwnedOrder(ctx context.Context, tx *gorm.DB, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !actor.Role.IsAdmin() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, reason string, now time.Time) (*models.Order, error) {
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already canceled")
	}
	if !order.Status.Cancellable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be canceled")
	}
	return s.returnStock(ctx, tx, order, actor, enums.OrderStatusCancelled, reason, now)
}

// returnStock flips the order into a terminal credited state and puts every
// item quantity back on the ledger exactly once. The conditional status
// update is what makes the credit exactly-once under concurrency.
func (s *service) returnStock(ctx context.Context, tx *gorm.DB, order *models.Order, actor Actor, target enums.OrderStatus, reason string, now time.Time) (*models.Order, error) {
	if order.Status == target {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order already %s", target))
	}
	if !order.Status.CanTransitionTo(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, target))
	}

	repo := s.repo.WithTx(tx)
	ledger := s.ledger.WithTx(tx)

	columns := map[string]any{}
	if target == enums.OrderStatusCancelled {
		columns["canceled_at"] = now
	}
	ok, err := repo.UpdateStatus(ctx, order.ID, order.Status, target, columns)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
	}

	for _, item := range order.Items {
		if err := ledger.Credit(ctx, item.AvailabilityID, item.Qty); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit availability")
		}
	}

	previous := order.Status
	order.Status = target
	if target == enums.OrderStatusCancelled {
		order.CanceledAt = &now
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCanceled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
		Data: payloads.OrderCanceledEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			PreviousStatus: previous,
			CanceledAt:     now,
			Reason:         reason,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	return order, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
