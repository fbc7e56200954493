package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/platform/auth"
	"github.com/templhub/api/internal/platform/httpx"
	"github.com/templhub/api/internal/services"
)

// CheckoutHandlers exposes the payment-intent creation endpoint.
type CheckoutHandlers struct {
	checkout services.CheckoutService
}

// CheckoutOption customises construction of CheckoutHandlers.
type CheckoutOption func(*CheckoutHandlers)

// WithCheckoutService injects the checkout service dependency.
func WithCheckoutService(svc services.CheckoutService) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.checkout = svc
	}
}

// NewCheckoutHandlers constructs the checkout endpoint handlers.
func NewCheckoutHandlers(opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RegisterRoutes mounts the checkout endpoints.
func (h *CheckoutHandlers) RegisterRoutes(r chi.Router) {
	r.Post("/intent", h.CreateIntent)
}

type checkoutAddressRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type checkoutIntentRequest struct {
	Address checkoutAddressRequest `json:"address"`
}

// CreateIntent starts a payment for the caller's current cart.
func (h *CheckoutHandlers) CreateIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || identity.UID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req checkoutIntentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommerceBodyBytes)).Decode(&req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	}

	intent, err := h.checkout.CreateIntent(ctx, services.CreateCheckoutCommand{
		UserID: identity.UID,
		Email:  identity.Email,
		Address: domain.OrderAddress{
			Name:       req.Address.Name,
			Email:      req.Address.Email,
			Phone:      req.Address.Phone,
			Line1:      req.Address.Line1,
			Line2:      req.Address.Line2,
			City:       req.Address.City,
			State:      req.Address.State,
			PostalCode: req.Address.PostalCode,
			Country:    req.Address.Country,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCheckoutEmptyCart):
			httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusConflict))
		case errors.Is(err, services.ErrCheckoutInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		default:
			writeRepositoryError(ctx, w, err, "checkout")
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"intentId":     intent.IntentID,
		"clientSecret": intent.ClientSecret,
		"amount":       intent.Amount,
		"currency":     intent.Currency,
		"status":       intent.Status,
	})
}
