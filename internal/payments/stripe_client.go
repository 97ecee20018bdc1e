package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgstripe "github.com/panierlocal/amap-backend/pkg/stripe"
)

// ProviderIntent is the slice of a payment intent the service cares about.
type ProviderIntent struct {
	ID                 string
	ClientSecret       string
	Status             stripe.PaymentIntentStatus
	AmountCents        int64
	PaymentMethodTypes []string
	FailureMessage     string
}

// CreateIntentParams carries the data for a new provider intent.
type CreateIntentParams struct {
	AmountCents  int64
	Currency     string
	ReceiptEmail string
	Metadata     map[string]string
}

// PaymentProvider exposes the subset of Stripe operations required by the
// payment service.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*ProviderIntent, error)
	RetrieveIntent(ctx context.Context, id string) (*ProviderIntent, error)
}

type stripeProviderWrapper struct{}

// NewStripeProvider wraps the provided Stripe client so the payment service
// can be tested.
func NewStripeProvider(api *pkgstripe.Client) PaymentProvider {
	if api == nil {
		return nil
	}
	return &stripeProviderWrapper{}
}

func (w *stripeProviderWrapper) CreateIntent(ctx context.Context, params CreateIntentParams) (*ProviderIntent, error) {
	stripeParams := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(params.AmountCents),
		Currency:     stripe.String(params.Currency),
		ReceiptEmail: stripe.String(params.ReceiptEmail),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	stripeParams.Context = ctx
	for k, v := range params.Metadata {
		stripeParams.AddMetadata(k, v)
	}
	intent, err := paymentintent.New(stripeParams)
	if err != nil {
		return nil, err
	}
	return fromStripeIntent(intent), nil
}

func (w *stripeProviderWrapper) RetrieveIntent(ctx context.Context, id string) (*ProviderIntent, error) {
	stripeParams := &stripe.PaymentIntentParams{}
	stripeParams.Context = ctx
	intent, err := paymentintent.Get(id, stripeParams)
	if err != nil {
		return nil, err
	}
	return fromStripeIntent(intent), nil
}

func fromStripeIntent(intent *stripe.PaymentIntent) *ProviderIntent {
	if intent == nil {
		return nil
	}
	out := &ProviderIntent{
		ID:                 intent.ID,
		ClientSecret:       intent.ClientSecret,
		Status:             intent.Status,
		AmountCents:        intent.Amount,
		PaymentMethodTypes: intent.PaymentMethodTypes,
	}
	if intent.LastPaymentError != nil {
		out.FailureMessage = intent.LastPaymentError.Msg
	}
	return out
}
