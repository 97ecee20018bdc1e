package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/panierlocal/amap-backend/pkg/logger"
)

const testSigningSecret = "whsec_test"

type recordingWebhookService struct {
	calls int
}

func (s *recordingWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	s.calls++
	return nil
}

type staticSigningClient struct {
	secret string
}

func (c *staticSigningClient) SigningSecret() string {
	return c.secret
}

func testWebhookLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "webhook-controller-test", Output: io.Discard})
}

func signedIntentEvent(t *testing.T) ([]byte, string) {
	t.Helper()

	rawIntent, err := json.Marshal(&stripe.PaymentIntent{
		ID:     "pi_" + uuid.NewString(),
		Amount: 2650,
	})
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	payload, err := json.Marshal(&stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypePaymentIntentSucceeded,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: rawIntent},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload, signatureHeader(payload, testSigningSecret, time.Now().Unix())
}

func signatureHeader(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeWebhookProcessesSignedEvent(t *testing.T) {
	payload, header := signedIntentEvent(t)
	service := &recordingWebhookService{}
	handler := StripeWebhook(service, &staticSigningClient{secret: testSigningSecret}, testWebhookLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected the service called once, got %d", service.calls)
	}
}

func TestStripeWebhookRejectsInvalidSignature(t *testing.T) {
	payload, _ := signedIntentEvent(t)
	service := &recordingWebhookService{}
	handler := StripeWebhook(service, &staticSigningClient{secret: testSigningSecret}, testWebhookLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=invalid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service must not be invoked on an invalid signature")
	}
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	payload, _ := signedIntentEvent(t)
	service := &recordingWebhookService{}
	handler := StripeWebhook(service, &staticSigningClient{secret: testSigningSecret}, testWebhookLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a signature header, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service must not be invoked without a signature header")
	}
}
