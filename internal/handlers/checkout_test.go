package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/templhub/api/internal/services"
)

type stubCheckoutService struct {
	intent      services.CheckoutIntent
	order       services.Order
	err         error
	lastCommand services.CreateCheckoutCommand
	lastEvent   services.PaymentSucceededEvent
}

func (s *stubCheckoutService) CreateIntent(_ context.Context, cmd services.CreateCheckoutCommand) (services.CheckoutIntent, error) {
	s.lastCommand = cmd
	return s.intent, s.err
}

func (s *stubCheckoutService) HandlePaymentSucceeded(_ context.Context, event services.PaymentSucceededEvent) (services.Order, error) {
	s.lastEvent = event
	return s.order, s.err
}

func checkoutTestRouter(svc services.CheckoutService) chi.Router {
	r := chi.NewRouter()
	NewCheckoutHandlers(WithCheckoutService(svc)).RegisterRoutes(r)
	return r
}

func TestCreateIntentRequiresIdentity(t *testing.T) {
	router := checkoutTestRouter(&stubCheckoutService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/intent", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateIntentUsesCallerIdentity(t *testing.T) {
	svc := &stubCheckoutService{intent: services.CheckoutIntent{
		IntentID:     "pi_123",
		ClientSecret: "pi_123_secret",
		Amount:       10948,
		Currency:     "USD",
		Status:       "requires_payment_method",
	}}
	router := checkoutTestRouter(svc)

	body := strings.NewReader(`{"address":{"name":"Ada","country":"DE"}}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/intent", body), "user-1", "buyer@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastCommand.UserID != "user-1" || svc.lastCommand.Email != "buyer@example.com" {
		t.Fatalf("unexpected command identity %+v", svc.lastCommand)
	}
	if svc.lastCommand.Address.Name != "Ada" || svc.lastCommand.Address.Country != "DE" {
		t.Fatalf("unexpected address %+v", svc.lastCommand.Address)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["clientSecret"] != "pi_123_secret" {
		t.Fatalf("expected client secret, got %v", payload["clientSecret"])
	}
}

func TestCreateIntentAllowsEmptyBody(t *testing.T) {
	svc := &stubCheckoutService{intent: services.CheckoutIntent{IntentID: "pi_1"}}
	router := checkoutTestRouter(svc)

	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/intent", nil), "user-1", "buyer@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestCreateIntentMapsEmptyCart(t *testing.T) {
	svc := &stubCheckoutService{err: services.ErrCheckoutEmptyCart}
	router := checkoutTestRouter(svc)

	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/intent", nil), "user-1", "buyer@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCreateIntentMapsBackendOutage(t *testing.T) {
	svc := &stubCheckoutService{err: unavailableError("store down")}
	router := checkoutTestRouter(svc)

	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/intent", nil), "user-1", "buyer@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
