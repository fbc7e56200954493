package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"

	"github.com/templhub/api/internal/platform/httpx"
	"github.com/templhub/api/internal/services"
)

const maxWebhookBodyBytes = 256 << 10

// stripeEventVerifier authenticates raw webhook deliveries.
type stripeEventVerifier interface {
	Parse(payload []byte, signature string) (stripe.Event, error)
}

// WebhookHandlers receives payment provider callbacks.
type WebhookHandlers struct {
	verifier stripeEventVerifier
	checkout services.CheckoutService
	logger   *zap.Logger
}

// WebhookOption customises construction of WebhookHandlers.
type WebhookOption func(*WebhookHandlers)

// WithStripeVerifier injects the webhook signature verifier.
func WithStripeVerifier(verifier stripeEventVerifier) WebhookOption {
	return func(h *WebhookHandlers) {
		h.verifier = verifier
	}
}

// WithWebhookCheckoutService injects the checkout service that finalises paid
// intents.
func WithWebhookCheckoutService(svc services.CheckoutService) WebhookOption {
	return func(h *WebhookHandlers) {
		h.checkout = svc
	}
}

// WithWebhookLogger injects the structured logger.
func WithWebhookLogger(logger *zap.Logger) WebhookOption {
	return func(h *WebhookHandlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewWebhookHandlers constructs handlers for provider callbacks.
func NewWebhookHandlers(opts ...WebhookOption) *WebhookHandlers {
	h := &WebhookHandlers{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RegisterRoutes mounts the webhook endpoints.
func (h *WebhookHandlers) RegisterRoutes(r chi.Router) {
	r.Post("/stripe", h.Stripe)
}

// Stripe verifies and dispatches one Stripe event. Only successful payment
// intents trigger order recording; every other event type is acknowledged
// and ignored.
func (h *WebhookHandlers) Stripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.verifier == nil || h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing is not configured", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "could not read request body", http.StatusBadRequest))
		return
	}

	event, err := h.verifier.Parse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("stripe webhook signature rejected", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	if event.Type != "payment_intent.succeeded" {
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.logger.Error("stripe webhook payload undecodable", zap.String("event_id", event.ID), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "event payload is not a payment intent", http.StatusBadRequest))
		return
	}

	order, err := h.checkout.HandlePaymentSucceeded(ctx, services.PaymentSucceededEvent{
		IntentID: intent.ID,
		UserID:   intent.Metadata["userId"],
		Email:    intent.Metadata["email"],
		Address:  services.AddressFromIntentMetadata(intent.Metadata),
		Amount:   intent.Amount,
		Currency: string(intent.Currency),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCheckoutInvalidInput):
			h.logger.Error("stripe webhook missing buyer metadata", zap.String("intent_id", intent.ID), zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment intent is missing buyer metadata", http.StatusBadRequest))
		case errors.Is(err, services.ErrOrderRecordingFailed):
			h.logger.Error("order recording exhausted retries", zap.String("intent_id", intent.ID), zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("order_recording_failed", "order could not be recorded", http.StatusInternalServerError))
		default:
			h.logger.Error("stripe webhook processing failed", zap.String("intent_id", intent.ID), zap.Error(err))
			writeRepositoryError(ctx, w, err, "order")
		}
		return
	}

	h.logger.Info("payment finalised",
		zap.String("intent_id", intent.ID),
		zap.String("order_number", order.OrderNumber),
	)
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"received":    true,
		"orderNumber": order.OrderNumber,
	})
}
