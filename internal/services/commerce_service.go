package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/templhub/api/internal/commerce"
	domain "github.com/templhub/api/internal/domain"
)

var (
	// ErrCommerceStoreMissing indicates the state store dependency is absent.
	ErrCommerceStoreMissing = errors.New("commerce service: store is not configured")
	// ErrCommerceInvalidInput indicates the caller supplied invalid commerce data.
	ErrCommerceInvalidInput = errors.New("commerce service: invalid input")
	// ErrCartItemNotFound indicates the referenced product is not in the cart.
	ErrCartItemNotFound = errors.New("commerce service: cart item not found")
)

// Stored state mirrors the JSON the storefront client reads and writes.
type cartItemState struct {
	ProductID string    `json:"productId"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Image     string    `json:"image,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

type wishlistEntryState struct {
	ProductID string    `json:"productId"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Image     string    `json:"image,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

type waitlistEntryState struct {
	ProductID string    `json:"productId"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Email     string    `json:"email,omitempty"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// CommerceServiceDeps bundles constructor inputs for the commerce service.
type CommerceServiceDeps struct {
	Store commerce.Store
	Clock func() time.Time
}

type commerceService struct {
	store commerce.Store
	clock func() time.Time
}

// NewCommerceService constructs the cart/wishlist/waitlist service.
func NewCommerceService(deps CommerceServiceDeps) (CommerceService, error) {
	if deps.Store == nil {
		return nil, ErrCommerceStoreMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &commerceService{
		store: deps.Store,
		clock: func() time.Time { return clock().UTC() },
	}, nil
}

func (s *commerceService) GetCart(ctx context.Context, userID string) ([]CartItem, error) {
	items, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toDomainCart(items), nil
}

// AddCartItem merges quantities when the product is already in the cart.
func (s *commerceService) AddCartItem(ctx context.Context, userID string, item CartItem) ([]CartItem, error) {
	item.ProductID = strings.TrimSpace(item.ProductID)
	if item.ProductID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrCommerceInvalidInput)
	}
	if item.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrCommerceInvalidInput)
	}

	items, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, cartItemState{
			ProductID: item.ProductID,
			Kind:      string(item.Kind),
			Title:     item.Title,
			Price:     item.Price,
			Image:     item.Image,
			Quantity:  item.Quantity,
			AddedAt:   s.clock(),
		})
	}

	if err := s.saveCart(ctx, userID, items); err != nil {
		return nil, err
	}
	return toDomainCart(items), nil
}

func (s *commerceService) UpdateCartQuantity(ctx context.Context, userID, productID string, quantity int) ([]CartItem, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrCommerceInvalidInput)
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrCommerceInvalidInput)
	}

	items, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		return nil, ErrCartItemNotFound
	}

	if err := s.saveCart(ctx, userID, items); err != nil {
		return nil, err
	}
	return toDomainCart(items), nil
}

// RemoveCartItem is idempotent; removing an absent product is not an error.
func (s *commerceService) RemoveCartItem(ctx context.Context, userID, productID string) ([]CartItem, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrCommerceInvalidInput)
	}

	items, err := s.loadCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := items[:0]
	for _, item := range items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}

	if err := s.saveCart(ctx, userID, kept); err != nil {
		return nil, err
	}
	return toDomainCart(kept), nil
}

func (s *commerceService) ClearCart(ctx context.Context, userID string) error {
	return s.saveCart(ctx, userID, []cartItemState{})
}

// WatchCart streams cart snapshots. Payloads that fail to decode are skipped
// so one corrupt write cannot wedge the stream.
func (s *commerceService) WatchCart(ctx context.Context, userID string) (<-chan []CartItem, func(), error) {
	key, err := commerce.CartKey(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCommerceInvalidInput, err)
	}

	payloads, cancel, err := s.store.Subscribe(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan []CartItem, 1)
	go func() {
		defer close(out)
		for payload := range payloads {
			var items []cartItemState
			if err := json.Unmarshal(payload, &items); err != nil {
				continue
			}
			select {
			case out <- toDomainCart(items):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, cancel, nil
}

func (s *commerceService) GetWishlist(ctx context.Context, userID string) ([]WishlistEntry, error) {
	entries, err := s.loadWishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toDomainWishlist(entries), nil
}

// AddWishlistEntry keeps the wishlist a unique set keyed by product id.
func (s *commerceService) AddWishlistEntry(ctx context.Context, userID string, entry WishlistEntry) ([]WishlistEntry, error) {
	entry.ProductID = strings.TrimSpace(entry.ProductID)
	if entry.ProductID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrCommerceInvalidInput)
	}

	entries, err := s.loadWishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, existing := range entries {
		if existing.ProductID == entry.ProductID {
			return toDomainWishlist(entries), nil
		}
	}
	entries = append(entries, wishlistEntryState{
		ProductID: entry.ProductID,
		Kind:      string(entry.Kind),
		Title:     entry.Title,
		Price:     entry.Price,
		Image:     entry.Image,
		AddedAt:   s.clock(),
	})

	if err := s.saveWishlist(ctx, userID, entries); err != nil {
		return nil, err
	}
	return toDomainWishlist(entries), nil
}

func (s *commerceService) RemoveWishlistEntry(ctx context.Context, userID, productID string) ([]WishlistEntry, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrCommerceInvalidInput)
	}

	entries, err := s.loadWishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	kept := entries[:0]
	for _, entry := range entries {
		if entry.ProductID != productID {
			kept = append(kept, entry)
		}
	}

	if err := s.saveWishlist(ctx, userID, kept); err != nil {
		return nil, err
	}
	return toDomainWishlist(kept), nil
}

func (s *commerceService) GetWaitlist(ctx context.Context, userID string) ([]WaitlistEntry, error) {
	entries, err := s.loadWaitlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toDomainWaitlist(entries), nil
}

// JoinWaitlist keeps the waitlist a unique set keyed by product id.
func (s *commerceService) JoinWaitlist(ctx context.Context, userID string, entry WaitlistEntry) ([]WaitlistEntry, error) {
	entry.ProductID = strings.TrimSpace(entry.ProductID)
	if entry.ProductID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrCommerceInvalidInput)
	}

	entries, err := s.loadWaitlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, existing := range entries {
		if existing.ProductID == entry.ProductID {
			return toDomainWaitlist(entries), nil
		}
	}
	entries = append(entries, waitlistEntryState{
		ProductID: entry.ProductID,
		Kind:      string(entry.Kind),
		Title:     entry.Title,
		Email:     strings.ToLower(strings.TrimSpace(entry.Email)),
		JoinedAt:  s.clock(),
	})

	if err := s.saveWaitlist(ctx, userID, entries); err != nil {
		return nil, err
	}
	return toDomainWaitlist(entries), nil
}

func (s *commerceService) LeaveWaitlist(ctx context.Context, userID, productID string) ([]WaitlistEntry, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrCommerceInvalidInput)
	}

	entries, err := s.loadWaitlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	kept := entries[:0]
	for _, entry := range entries {
		if entry.ProductID != productID {
			kept = append(kept, entry)
		}
	}

	if err := s.saveWaitlist(ctx, userID, kept); err != nil {
		return nil, err
	}
	return toDomainWaitlist(kept), nil
}

func (s *commerceService) loadCart(ctx context.Context, userID string) ([]cartItemState, error) {
	var items []cartItemState
	if err := s.loadState(ctx, commerce.CartKey, userID, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *commerceService) saveCart(ctx context.Context, userID string, items []cartItemState) error {
	return s.saveState(ctx, commerce.CartKey, userID, items)
}

func (s *commerceService) loadWishlist(ctx context.Context, userID string) ([]wishlistEntryState, error) {
	var entries []wishlistEntryState
	if err := s.loadState(ctx, commerce.WishlistKey, userID, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *commerceService) saveWishlist(ctx context.Context, userID string, entries []wishlistEntryState) error {
	return s.saveState(ctx, commerce.WishlistKey, userID, entries)
}

func (s *commerceService) loadWaitlist(ctx context.Context, userID string) ([]waitlistEntryState, error) {
	var entries []waitlistEntryState
	if err := s.loadState(ctx, commerce.WaitlistKey, userID, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *commerceService) saveWaitlist(ctx context.Context, userID string, entries []waitlistEntryState) error {
	return s.saveState(ctx, commerce.WaitlistKey, userID, entries)
}

func (s *commerceService) loadState(ctx context.Context, keyFn func(string) (string, error), userID string, target any) error {
	key, err := keyFn(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommerceInvalidInput, err)
	}
	payload, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("commerce service: decode state %s: %w", key, err)
	}
	return nil
}

func (s *commerceService) saveState(ctx context.Context, keyFn func(string) (string, error), userID string, state any) error {
	key, err := keyFn(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommerceInvalidInput, err)
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("commerce service: encode state %s: %w", key, err)
	}
	return s.store.Set(ctx, key, payload)
}

func toDomainCart(items []cartItemState) []CartItem {
	out := make([]CartItem, 0, len(items))
	for _, item := range items {
		out = append(out, CartItem{
			ProductID: item.ProductID,
			Kind:      domain.ProductKind(item.Kind),
			Title:     item.Title,
			Price:     item.Price,
			Image:     item.Image,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	return out
}

func toDomainWishlist(entries []wishlistEntryState) []WishlistEntry {
	out := make([]WishlistEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, WishlistEntry{
			ProductID: entry.ProductID,
			Kind:      domain.ProductKind(entry.Kind),
			Title:     entry.Title,
			Price:     entry.Price,
			Image:     entry.Image,
			AddedAt:   entry.AddedAt,
		})
	}
	return out
}

func toDomainWaitlist(entries []waitlistEntryState) []WaitlistEntry {
	out := make([]WaitlistEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, WaitlistEntry{
			ProductID: entry.ProductID,
			Kind:      domain.ProductKind(entry.Kind),
			Title:     entry.Title,
			Email:     entry.Email,
			JoinedAt:  entry.JoinedAt,
		})
	}
	return out
}
