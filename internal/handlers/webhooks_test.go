package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/templhub/api/internal/services"
)

type stubEventVerifier struct {
	event         stripe.Event
	err           error
	lastSignature string
	lastPayload   []byte
}

func (s *stubEventVerifier) Parse(payload []byte, signature string) (stripe.Event, error) {
	s.lastPayload = payload
	s.lastSignature = signature
	return s.event, s.err
}

func paymentIntentEvent(t *testing.T, eventType string, intent map[string]any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(intent)
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func webhookTestRouter(verifier stripeEventVerifier, checkout services.CheckoutService) chi.Router {
	r := chi.NewRouter()
	NewWebhookHandlers(
		WithStripeVerifier(verifier),
		WithWebhookCheckoutService(checkout),
	).RegisterRoutes(r)
	return r
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	verifier := &stubEventVerifier{err: webhook.ErrNoValidSignature}
	router := webhookTestRouter(verifier, &stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if verifier.lastSignature != "t=1,v1=bad" {
		t.Fatalf("expected signature header forwarded, got %q", verifier.lastSignature)
	}
}

func TestStripeWebhookIgnoresOtherEvents(t *testing.T) {
	verifier := &stubEventVerifier{event: paymentIntentEvent(t, "payment_intent.created", map[string]any{"id": "pi_1"})}
	checkout := &stubCheckoutService{}
	router := webhookTestRouter(verifier, checkout)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if checkout.lastEvent.IntentID != "" {
		t.Fatal("expected no checkout call for ignored event types")
	}
}

func TestStripeWebhookFinalisesPayment(t *testing.T) {
	verifier := &stubEventVerifier{event: paymentIntentEvent(t, "payment_intent.succeeded", map[string]any{
		"id":       "pi_123",
		"amount":   10948,
		"currency": "usd",
		"metadata": map[string]string{
			"userId":         "user-1",
			"email":          "buyer@example.com",
			"addressName":    "Dana K.",
			"addressLine1":   "1 Main St",
			"addressCity":    "Austin",
			"addressCountry": "US",
		},
	})}
	checkout := &stubCheckoutService{order: services.Order{OrderNumber: "ORD-20260520-AB12CD"}}
	router := webhookTestRouter(verifier, checkout)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if checkout.lastEvent.IntentID != "pi_123" {
		t.Fatalf("expected intent forwarded, got %q", checkout.lastEvent.IntentID)
	}
	if checkout.lastEvent.UserID != "user-1" || checkout.lastEvent.Email != "buyer@example.com" {
		t.Fatalf("expected buyer metadata extracted, got %+v", checkout.lastEvent)
	}
	if checkout.lastEvent.Amount != 10948 || checkout.lastEvent.Currency != "usd" {
		t.Fatalf("expected amount and currency forwarded, got %+v", checkout.lastEvent)
	}
	if checkout.lastEvent.Address.Name != "Dana K." || checkout.lastEvent.Address.Line1 != "1 Main St" {
		t.Fatalf("expected address rebuilt from metadata, got %+v", checkout.lastEvent.Address)
	}
	if checkout.lastEvent.Address.City != "Austin" || checkout.lastEvent.Address.Country != "US" {
		t.Fatalf("expected address rebuilt from metadata, got %+v", checkout.lastEvent.Address)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["orderNumber"] != "ORD-20260520-AB12CD" {
		t.Fatalf("expected order number in ack, got %v", payload["orderNumber"])
	}
}

func TestStripeWebhookMapsMissingMetadata(t *testing.T) {
	verifier := &stubEventVerifier{event: paymentIntentEvent(t, "payment_intent.succeeded", map[string]any{"id": "pi_9"})}
	checkout := &stubCheckoutService{err: services.ErrCheckoutInvalidInput}
	router := webhookTestRouter(verifier, checkout)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStripeWebhookMapsExhaustedRecording(t *testing.T) {
	verifier := &stubEventVerifier{event: paymentIntentEvent(t, "payment_intent.succeeded", map[string]any{
		"id":       "pi_5",
		"metadata": map[string]string{"userId": "user-1", "email": "buyer@example.com"},
	})}
	checkout := &stubCheckoutService{err: services.ErrOrderRecordingFailed}
	router := webhookTestRouter(verifier, checkout)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
