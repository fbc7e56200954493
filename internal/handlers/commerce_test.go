package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/services"
)

type stubCommerceService struct {
	cart     []services.CartItem
	wishlist []services.WishlistEntry
	waitlist []services.WaitlistEntry
	err      error

	lastUserID    string
	lastProductID string
	lastQuantity  int
	lastCartItem  services.CartItem
	lastWaitEntry services.WaitlistEntry
	cleared       bool
	snapshots     chan []services.CartItem
	stopped       bool
}

func (s *stubCommerceService) GetCart(_ context.Context, userID string) ([]services.CartItem, error) {
	s.lastUserID = userID
	return s.cart, s.err
}

func (s *stubCommerceService) AddCartItem(_ context.Context, userID string, item services.CartItem) ([]services.CartItem, error) {
	s.lastUserID = userID
	s.lastCartItem = item
	return s.cart, s.err
}

func (s *stubCommerceService) UpdateCartQuantity(_ context.Context, userID, productID string, quantity int) ([]services.CartItem, error) {
	s.lastUserID = userID
	s.lastProductID = productID
	s.lastQuantity = quantity
	return s.cart, s.err
}

func (s *stubCommerceService) RemoveCartItem(_ context.Context, userID, productID string) ([]services.CartItem, error) {
	s.lastUserID = userID
	s.lastProductID = productID
	return s.cart, s.err
}

func (s *stubCommerceService) ClearCart(_ context.Context, userID string) error {
	s.lastUserID = userID
	s.cleared = true
	return s.err
}

func (s *stubCommerceService) WatchCart(_ context.Context, userID string) (<-chan []services.CartItem, func(), error) {
	s.lastUserID = userID
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.snapshots, func() { s.stopped = true }, nil
}

func (s *stubCommerceService) GetWishlist(_ context.Context, userID string) ([]services.WishlistEntry, error) {
	s.lastUserID = userID
	return s.wishlist, s.err
}

func (s *stubCommerceService) AddWishlistEntry(_ context.Context, userID string, _ services.WishlistEntry) ([]services.WishlistEntry, error) {
	s.lastUserID = userID
	return s.wishlist, s.err
}

func (s *stubCommerceService) RemoveWishlistEntry(_ context.Context, userID, productID string) ([]services.WishlistEntry, error) {
	s.lastUserID = userID
	s.lastProductID = productID
	return s.wishlist, s.err
}

func (s *stubCommerceService) GetWaitlist(_ context.Context, userID string) ([]services.WaitlistEntry, error) {
	s.lastUserID = userID
	return s.waitlist, s.err
}

func (s *stubCommerceService) JoinWaitlist(_ context.Context, userID string, entry services.WaitlistEntry) ([]services.WaitlistEntry, error) {
	s.lastUserID = userID
	s.lastProductID = entry.ProductID
	s.lastWaitEntry = entry
	return s.waitlist, s.err
}

func (s *stubCommerceService) LeaveWaitlist(_ context.Context, userID, productID string) ([]services.WaitlistEntry, error) {
	s.lastUserID = userID
	s.lastProductID = productID
	return s.waitlist, s.err
}

func commerceTestRouter(svc services.CommerceService) chi.Router {
	handlers := NewCommerceHandlers(WithCommerceService(svc))
	r := chi.NewRouter()
	r.Route("/cart", handlers.RegisterCartRoutes)
	r.Route("/wishlist", handlers.RegisterWishlistRoutes)
	r.Route("/waitlist", handlers.RegisterWaitlistRoutes)
	return r
}

func TestGetCartRequiresIdentity(t *testing.T) {
	router := commerceTestRouter(&stubCommerceService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGetCartUsesCallerUID(t *testing.T) {
	svc := &stubCommerceService{cart: []services.CartItem{{ProductID: "tpl-1", Quantity: 2}}}
	router := commerceTestRouter(svc)

	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/cart/", nil), "user-1", "u@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastUserID != "user-1" {
		t.Fatalf("expected caller uid, got %q", svc.lastUserID)
	}
}

func TestAddCartItemDefaultsQuantity(t *testing.T) {
	svc := &stubCommerceService{}
	router := commerceTestRouter(svc)

	body := strings.NewReader(`{"productId":"tpl-1","kind":"website","title":"Portfolio","price":29.99}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/cart/items", body), "user-1", "u@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastCartItem.Quantity != 1 {
		t.Fatalf("expected quantity defaulted to 1, got %d", svc.lastCartItem.Quantity)
	}
	if svc.lastCartItem.Kind != domain.ProductKindWebsite {
		t.Fatalf("expected website kind, got %q", svc.lastCartItem.Kind)
	}
}

func TestUpdateCartQuantityMapsMissingItem(t *testing.T) {
	svc := &stubCommerceService{err: services.ErrCartItemNotFound}
	router := commerceTestRouter(svc)

	body := strings.NewReader(`{"quantity":3}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPatch, "/cart/items/tpl-9", body), "user-1", "u@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if svc.lastProductID != "tpl-9" {
		t.Fatalf("expected product id forwarded, got %q", svc.lastProductID)
	}
}

func TestUpdateCartQuantityMapsInvalidInput(t *testing.T) {
	svc := &stubCommerceService{err: services.ErrCommerceInvalidInput}
	router := commerceTestRouter(svc)

	body := strings.NewReader(`{"quantity":0}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPatch, "/cart/items/tpl-1", body), "user-1", "u@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestClearCartReturnsNoContent(t *testing.T) {
	svc := &stubCommerceService{}
	router := commerceTestRouter(svc)

	req := withTestIdentity(httptest.NewRequest(http.MethodDelete, "/cart/", nil), "user-1", "u@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if !svc.cleared {
		t.Fatal("expected clear to reach the service")
	}
}

func TestStreamCartEmitsSnapshots(t *testing.T) {
	snapshots := make(chan []services.CartItem, 1)
	snapshots <- []services.CartItem{{ProductID: "tpl-1", Title: "Portfolio", Quantity: 2}}
	close(snapshots)

	svc := &stubCommerceService{snapshots: snapshots}
	router := commerceTestRouter(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/cart/stream", nil).WithContext(ctx), "user-1", "u@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream content type, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: cart") {
		t.Fatalf("expected cart event in stream: %s", body)
	}
	if !strings.Contains(body, `"productId":"tpl-1"`) {
		t.Fatalf("expected cart payload in stream: %s", body)
	}
	if !svc.stopped {
		t.Fatal("expected watch to be stopped when the stream ends")
	}
}

func TestAddWishlistEntryForwardsProduct(t *testing.T) {
	svc := &stubCommerceService{wishlist: []services.WishlistEntry{{ProductID: "tpl-1"}}}
	router := commerceTestRouter(svc)

	body := strings.NewReader(`{"productId":"tpl-1","kind":"app","title":"CRM"}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/wishlist/items", body), "user-1", "u@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(payload.Items) != 1 {
		t.Fatalf("expected one wishlist entry, got %d", len(payload.Items))
	}
}

func TestJoinWaitlistFallsBackToIdentityEmail(t *testing.T) {
	svc := &stubCommerceService{}
	router := commerceTestRouter(svc)

	body := strings.NewReader(`{"productId":"tpl-5","kind":"combo","title":"Bundle"}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/waitlist/items", body), "user-1", "buyer@example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastProductID != "tpl-5" {
		t.Fatalf("expected product forwarded, got %q", svc.lastProductID)
	}
	if svc.lastWaitEntry.Email != "buyer@example.com" {
		t.Fatalf("expected identity email fallback, got %q", svc.lastWaitEntry.Email)
	}
}
