package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/panierlocal/amap-backend/internal/payments"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/logger"
)

type ServiceParams struct {
	Payments payments.Service
	Guard    *IdempotencyGuard
	Logger   *logger.Logger
}

// Service routes verified Stripe events into payment settlement.
type Service struct {
	payments payments.Service
	guard    *IdempotencyGuard
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		payments: params.Payments,
		guard:    params.Guard,
		logg:     params.Logger,
	}, nil
}

// HandleEvent settles the payment described by the event. Duplicate
// deliveries are dropped via the idempotency guard; a processing failure
// releases the guard so the provider's retry can land.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
	default:
		return nil
	}

	duplicate, err := s.guard.CheckAndMark(ctx, string(event.ID))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check")
	}
	if duplicate {
		s.logg.Info(s.logg.WithField(ctx, "event_id", event.ID), "duplicate stripe event dropped")
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":          event.ID,
		"event_type":        event.Type,
		"payment_intent_id": intent.ID,
	})

	var handleErr error
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		handleErr = s.payments.SettleSucceeded(ctx, intent.ID, intent.Amount, intent.PaymentMethodTypes)
	case stripe.EventTypePaymentIntentPaymentFailed:
		handleErr = s.payments.SettleFailed(ctx, intent.ID, failureReason(&intent))
	}
	if handleErr != nil {
		// An intent with no matching order is acked, never retried.
		if appErr := pkgerrors.As(handleErr); appErr != nil && appErr.Code() == pkgerrors.CodeNotFound {
			s.logg.Info(ctx, "stripe event matches no order, acknowledged without settlement")
			return nil
		}
		if delErr := s.guard.Delete(ctx, string(event.ID)); delErr != nil {
			s.logg.Error(ctx, "releasing idempotency key failed", delErr)
		}
		return handleErr
	}

	s.logg.Info(ctx, "stripe event settled")
	return nil
}

func failureReason(intent *stripe.PaymentIntent) string {
	if intent == nil || intent.LastPaymentError == nil {
		return "payment failed"
	}
	if intent.LastPaymentError.Msg != "" {
		return intent.LastPaymentError.Msg
	}
	return "payment failed"
}
