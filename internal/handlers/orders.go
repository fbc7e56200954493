package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/templhub/api/internal/platform/auth"
	"github.com/templhub/api/internal/platform/httpx"
	"github.com/templhub/api/internal/platform/pagination"
	"github.com/templhub/api/internal/services"
)

// OrderHandlers exposes the caller's order history endpoints.
type OrderHandlers struct {
	orders   services.OrderService
	pageOpts pagination.Options
}

// OrderOption customises construction of OrderHandlers.
type OrderOption func(*OrderHandlers)

// WithOrderService injects the order service dependency.
func WithOrderService(svc services.OrderService) OrderOption {
	return func(h *OrderHandlers) {
		h.orders = svc
	}
}

// WithOrderPageOptions overrides the page-size clamping applied to list requests.
func WithOrderPageOptions(opts pagination.Options) OrderOption {
	return func(h *OrderHandlers) {
		h.pageOpts = opts
	}
}

// NewOrderHandlers constructs handlers for the order history endpoints.
func NewOrderHandlers(opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RegisterRoutes mounts the order endpoints.
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListOrders)
	r.Get("/{orderNumber}", h.GetOrder)
}

func (h *OrderHandlers) identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || identity.Email == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// ListOrders serves one page of the caller's recorded orders.
func (h *OrderHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	params, err := pagination.Parse(r.URL.Query(), h.pageOpts)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	orders, nextToken, err := h.orders.ListOrders(ctx, identity.Email, services.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		if errors.Is(err, services.ErrOrderInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		writeRepositoryError(ctx, w, err, "orders")
		return
	}

	payload := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, toOrderResponse(order))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"items":         payload,
		"nextPageToken": nextToken,
	})
}

// GetOrder serves a single order owned by the caller.
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	order, err := h.orders.GetOrder(ctx, identity.Email, chi.URLParam(r, "orderNumber"))
	if err != nil {
		if errors.Is(err, services.ErrOrderInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		writeRepositoryError(ctx, w, err, "order")
		return
	}
	writeJSONResponse(w, http.StatusOK, toOrderResponse(order))
}
