package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/platform/auth"
	"github.com/templhub/api/internal/platform/httpx"
	"github.com/templhub/api/internal/services"
)

const maxCommerceBodyBytes = 64 << 10

// CommerceHandlers exposes the signed-in cart, wishlist, and waitlist endpoints.
type CommerceHandlers struct {
	commerce  services.CommerceService
	heartbeat time.Duration
}

// CommerceOption customises construction of CommerceHandlers.
type CommerceOption func(*CommerceHandlers)

// WithCommerceService injects the commerce service dependency.
func WithCommerceService(svc services.CommerceService) CommerceOption {
	return func(h *CommerceHandlers) {
		h.commerce = svc
	}
}

// WithCartStreamHeartbeat overrides the SSE keep-alive interval.
func WithCartStreamHeartbeat(interval time.Duration) CommerceOption {
	return func(h *CommerceHandlers) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// NewCommerceHandlers constructs handlers for the commerce state endpoints.
func NewCommerceHandlers(opts ...CommerceOption) *CommerceHandlers {
	h := &CommerceHandlers{heartbeat: defaultSSEHeartbeat}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RegisterCartRoutes mounts the cart endpoints.
func (h *CommerceHandlers) RegisterCartRoutes(r chi.Router) {
	r.Get("/", h.GetCart)
	r.Delete("/", h.ClearCart)
	r.Get("/stream", h.StreamCart)
	r.Post("/items", h.AddCartItem)
	r.Patch("/items/{productID}", h.UpdateCartQuantity)
	r.Delete("/items/{productID}", h.RemoveCartItem)
}

// RegisterWishlistRoutes mounts the wishlist endpoints.
func (h *CommerceHandlers) RegisterWishlistRoutes(r chi.Router) {
	r.Get("/", h.GetWishlist)
	r.Post("/items", h.AddWishlistEntry)
	r.Delete("/items/{productID}", h.RemoveWishlistEntry)
}

// RegisterWaitlistRoutes mounts the waitlist endpoints.
func (h *CommerceHandlers) RegisterWaitlistRoutes(r chi.Router) {
	r.Get("/", h.GetWaitlist)
	r.Post("/items", h.JoinWaitlist)
	r.Delete("/items/{productID}", h.LeaveWaitlist)
}

func (h *CommerceHandlers) identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	ctx := r.Context()
	if h.commerce == nil {
		httpx.WriteError(ctx, w, httpx.NewError("commerce_unavailable", "commerce service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || identity.UID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeCommerceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrCommerceInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "cart item not found", http.StatusNotFound))
	default:
		writeRepositoryError(ctx, w, err, "commerce")
	}
}

// GetCart returns the caller's cart contents.
func (h *CommerceHandlers) GetCart(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	items, err := h.commerce.GetCart(r.Context(), identity.UID)
	if err != nil {
		writeCommerceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toCartResponse(items)})
}

type cartItemRequest struct {
	ProductID string  `json:"productId"`
	Kind      string  `json:"kind"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
}

// AddCartItem adds or merges one product into the caller's cart.
func (h *CommerceHandlers) AddCartItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommerceBodyBytes)).Decode(&req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	items, err := h.commerce.AddCartItem(r.Context(), identity.UID, services.CartItem{
		ProductID: req.ProductID,
		Kind:      domain.ProductKind(req.Kind),
		Title:     req.Title,
		Price:     req.Price,
		Image:     req.Image,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeCommerceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toCartResponse(items)})
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateCartQuantity sets the quantity of one cart line.
func (h *CommerceHandlers) UpdateCartQuantity(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req quantityRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommerceBodyBytes)).Decode(&req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	items, err := h.commerce.UpdateCartQuantity(r.Context(), identity.UID, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		writeCommerceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toCartResponse(items)})
}

// RemoveCartItem deletes one product from the caller's cart.
func (h *CommerceHandlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	items, err := h.commerce.RemoveCartItem(r.Context(), identity.UID, chi.URLParam(r, "productID"))
	if err != nil {
		writeCommerceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toCartResponse(items)})
}

// ClearCart empties the caller's cart.
func (h *CommerceHandlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := h.commerce.ClearCart(r.Context(), identity.UID); err != nil {
		writeCommerceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamCart pushes cart snapshots over server-sent events.
func (h *CommerceHandlers) StreamCart(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("streaming_unsupported", "response writer does not support streaming", http.StatusInternalServerError))
		return
	}

	snapshots, stop, err := h.commerce.WatchCart(ctx, identity.UID)
	if err != nil {
		writeCommerceError(w, r, err)
		return
	}
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case items, open := <-snapshots:
			if !open {
				return
			}
			writeSSE(w, "cart", map[string]any{"items": toCartResponse(items)})
			flusher.Flush()
		}
	}
}

type wishlistEntryRequest struct {
	ProductID string  `json:"productId"`
	Kind      string  `json:"kind"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
}

// GetWishlist returns the caller's wishlist.
func (h *CommerceHandlers) GetWishlist(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	entries, err := h.commerce.GetWishlist(r.Context(), identity.UID)
	if err != nil {
		writeCommerceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toWishlistResponse(entries)})
}

// AddWishlistEntry saves one product to the caller's wishlist.
func (h *CommerceHandlers) AddWishlistEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req wishlistEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommerceBodyBytes)).Decode(&req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	entries, err := h.commerce.AddWishlistEntry(r.Context(), identity.UID, services.WishlistEntry{
		ProductID: req.ProductID,
		Kind:      domain.ProductKind(req.Kind),
		Title:     req.Title,
		Price:     req.Price,
		Image:     req.Image,
	})
	if err != nil {
		writeCommerceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toWishlistResponse(entries)})
}

// RemoveWishlistEntry deletes one product from the caller's wishlist.
func (h *CommerceHandlers) RemoveWishlistEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	entries, err := h.commerce.RemoveWishlistEntry(r.Context(), identity.UID, chi.URLParam(r, "productID"))
	if err != nil {
		writeCommerceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toWishlistResponse(entries)})
}

type waitlistEntryRequest struct {
	ProductID string `json:"productId"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Email     string `json:"email"`
}

// GetWaitlist returns the caller's waitlist.
func (h *CommerceHandlers) GetWaitlist(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	entries, err := h.commerce.GetWaitlist(r.Context(), identity.UID)
	if err != nil {
		writeCommerceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toWaitlistResponse(entries)})
}

// JoinWaitlist registers interest in a not-yet-purchasable product.
func (h *CommerceHandlers) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req waitlistEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommerceBodyBytes)).Decode(&req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	email := req.Email
	if email == "" {
		email = identity.Email
	}

	entries, err := h.commerce.JoinWaitlist(r.Context(), identity.UID, services.WaitlistEntry{
		ProductID: req.ProductID,
		Kind:      domain.ProductKind(req.Kind),
		Title:     req.Title,
		Email:     email,
	})
	if err != nil {
		writeCommerceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toWaitlistResponse(entries)})
}

// LeaveWaitlist removes the caller's interest registration.
func (h *CommerceHandlers) LeaveWaitlist(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	entries, err := h.commerce.LeaveWaitlist(r.Context(), identity.UID, chi.URLParam(r, "productID"))
	if err != nil {
		writeCommerceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toWaitlistResponse(entries)})
}
