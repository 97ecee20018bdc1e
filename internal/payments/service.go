package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/internal/orders"
	"github.com/panierlocal/amap-backend/pkg/db/models"
	"github.com/panierlocal/amap-backend/pkg/enums"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/outbox"
	"github.com/panierlocal/amap-backend/pkg/outbox/payloads"
)

const intentCurrency = "eur"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service reconciles provider payment state with order state.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*IntentResult, error)
	Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
	SettleSucceeded(ctx context.Context, intentID string, amountCents int64, methodTypes []string) error
	SettleFailed(ctx context.Context, intentID, failureReason string) error
}

// CreateIntentInput identifies the order to collect payment for.
type CreateIntentInput struct {
	OrderID uuid.UUID
	Actor   orders.Actor
}

// IntentResult is handed to the client to drive the provider's payment flow.
type IntentResult struct {
	IntentID     string
	ClientSecret string
	AmountCents  int
}

// ConfirmInput identifies the order whose payment the client wants verified.
type ConfirmInput struct {
	OrderID uuid.UUID
	Actor   orders.Actor
}

// ConfirmResult reports the reconciled order and payment state.
type ConfirmResult struct {
	OrderStatus   enums.OrderStatus
	PaymentStatus enums.PaymentStatus
}

type service struct {
	repo       Repository
	ordersRepo orders.Repository
	provider   PaymentProvider
	tx         txRunner
	outbox     outboxPublisher
	now        func() time.Time
}

// ServiceParams wires the payment service dependencies.
type ServiceParams struct {
	Repository Repository
	OrdersRepo orders.Repository
	Provider   PaymentProvider
	Tx         txRunner
	Outbox     outboxPublisher
	Now        func() time.Time
}

// NewService builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("payment provider required")
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
		repo:       params.Repository,
		ordersRepo: params.OrdersRepo,
		provider:   params.Provider,
		tx:         params.Tx,
		outbox:     params.Outbox,
		now:        now,
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*IntentResult, error) {
	order, err := s.loadOwnedOrder(ctx, input.Actor, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
	}

	// The provider call happens outside the transaction; the persistence step
	// below re-checks the order state before committing.
	intent, err := s.resolveIntent(ctx, order)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		repo := s.repo.WithTx(tx)

		current, err := ordersRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if current.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
		}

		if current.PaymentIntentID == nil || *current.PaymentIntentID != intent.ID {
			if err := ordersRepo.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment intent id")
			}
		}

		if _, err := repo.FindByStripeID(ctx, intent.ID); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
			}
			payment := &models.Payment{
				OrderID:         order.ID,
				Status:          enums.PaymentStatusPending,
				StripePaymentID: intent.ID,
				PaymentMethod:   enums.PaymentMethodUnknown,
				AmountCents:     order.TotalCents,
			}
			if err := repo.Create(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &IntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  order.TotalCents,
	}, nil
}

// resolveIntent reuses the order's existing provider intent when it is still
// usable, so client retries never double-charge.
func (s *service) resolveIntent(ctx context.Context, order *models.Order) (*ProviderIntent, error) {
	if order.PaymentIntentID != nil {
		intent, err := s.provider.RetrieveIntent(ctx, *order.PaymentIntentID)
		if err == nil && intent.Status != stripe.PaymentIntentStatusCanceled {
			return intent, nil
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
		}
	}

	intent, err := s.provider.CreateIntent(ctx, CreateIntentParams{
		AmountCents:  int64(order.TotalCents),
		Currency:     intentCurrency,
		ReceiptEmail: order.UserEmail,
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	return intent, nil
}

func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	order, err := s.loadOwnedOrder(ctx, input.Actor, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusPaid {
		return &ConfirmResult{OrderStatus: order.Status, PaymentStatus: enums.PaymentStatusSucceeded}, nil
	}
	if order.PaymentIntentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no payment intent")
	}

	intent, err := s.provider.RetrieveIntent(ctx, *order.PaymentIntentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		if err := s.SettleSucceeded(ctx, intent.ID, intent.AmountCents, intent.PaymentMethodTypes); err != nil {
			return nil, err
		}
	case stripe.PaymentIntentStatusCanceled:
		if err := s.SettleFailed(ctx, intent.ID, "payment intent canceled"); err != nil {
			return nil, err
		}
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if intent.FailureMessage != "" {
			if err := s.SettleFailed(ctx, intent.ID, intent.FailureMessage); err != nil {
				return nil, err
			}
		}
	}

	current, err := s.ordersRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	payment, err := s.repo.FindByStripeID(ctx, intent.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return &ConfirmResult{OrderStatus: current.Status, PaymentStatus: payment.Status}, nil
}

// SettleSucceeded applies a successful provider charge exactly once. Replays
// fall through the conditional updates without effect.
func (s *service) SettleSucceeded(ctx context.Context, intentID string, amountCents int64, methodTypes []string) error {
	if intentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	now := s.now()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		repo := s.repo.WithTx(tx)

		order, err := ordersRepo.FindByPaymentIntentID(ctx, intentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no order for payment intent")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		method := normalizeMethod(methodTypes)
		changed, err := repo.UpdateStatusByStripeID(ctx, intentID,
			enums.PaymentStatusPending, enums.PaymentStatusSucceeded,
			map[string]any{"payment_method": method})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		if !changed {
			existing, err := repo.FindByStripeID(ctx, intentID)
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
				}
				payment := &models.Payment{
					OrderID:         order.ID,
					Status:          enums.PaymentStatusSucceeded,
					StripePaymentID: intentID,
					PaymentMethod:   method,
					AmountCents:     int(amountCents),
				}
				if err := repo.Create(ctx, payment); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
				}
			} else if existing.Status == enums.PaymentStatusSucceeded {
				// Duplicate delivery of an already settled charge.
				return nil
			}
		}

		switch order.Status {
		case enums.OrderStatusPending:
			ok, err := ordersRepo.UpdateStatus(ctx, order.ID,
				enums.OrderStatusPending, enums.OrderStatusPaid,
				map[string]any{"paid_at": now})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
			}
			if !ok {
				current, err := ordersRepo.FindByID(ctx, order.ID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
				}
				if current.Status == enums.OrderStatusPaid {
					return nil
				}
				return s.emitOrphaned(ctx, tx, current, intentID, int(amountCents))
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.OrderPaidEvent{
					OrderID:         order.ID,
					OrderNumber:     order.OrderNumber,
					PaymentIntentID: intentID,
					AmountCents:     order.TotalCents,
					PaidAt:          now,
				},
			})
		case enums.OrderStatusPaid:
			return nil
		default:
			// The charge landed on an order that is no longer payable. The
			// order state stays as is; support refunds the charge.
			return s.emitOrphaned(ctx, tx, order, intentID, int(amountCents))
		}
	})
}

// SettleFailed records a failed payment attempt. The order stays pending so
// the member can retry.
func (s *service) SettleFailed(ctx context.Context, intentID, failureReason string) error {
	if intentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		repo := s.repo.WithTx(tx)

		order, err := ordersRepo.FindByPaymentIntentID(ctx, intentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no order for payment intent")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		changed, err := repo.UpdateStatusByStripeID(ctx, intentID,
			enums.PaymentStatusPending, enums.PaymentStatusFailed,
			map[string]any{"failure_reason": failureReason})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		if !changed {
			return nil
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				OrderID:         order.ID,
				PaymentIntentID: intentID,
				FailureReason:   failureReason,
			},
		})
	})
}

func (s *service) emitOrphaned(ctx context.Context, tx *gorm.DB, order *models.Order, intentID string, amountCents int) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentOrphaned,
		AggregateType: enums.AggregatePayment,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.PaymentOrphanedEvent{
			OrderID:         order.ID,
			PaymentIntentID: intentID,
			OrderStatus:     order.Status,
			AmountCents:     amountCents,
		},
	})
}

func (s *service) loadOwnedOrder(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.ordersRepo.FindByID(ctx, orderID)
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

func normalizeMethod(methodTypes []string) enums.PaymentMethod {
	if len(methodTypes) == 0 {
		return enums.PaymentMethodUnknown
	}
	return enums.NormalizePaymentMethod(methodTypes[0])
}
