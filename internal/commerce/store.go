// Package commerce provides the storage port backing cart, wishlist, and
// waitlist state. Entries are JSON arrays stored under a per-user key, with
// last-writer-wins semantics across concurrent writers.
package commerce

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey is returned for empty or malformed state keys.
var ErrInvalidKey = errors.New("commerce: invalid state key")

// Store is the injected storage port for per-user commerce state.
type Store interface {
	// Get returns the raw JSON payload stored under key, and whether any
	// value exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set replaces the payload stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Subscribe streams payloads written to key until cancel is called or
	// ctx ends. The current value, when present, is delivered first.
	Subscribe(ctx context.Context, key string) (<-chan []byte, func(), error)
}

// CartKey returns the state key holding a user's cart.
func CartKey(userID string) (string, error) { return stateKey("cart", userID) }

// WishlistKey returns the state key holding a user's wishlist.
func WishlistKey(userID string) (string, error) { return stateKey("wishlist", userID) }

// WaitlistKey returns the state key holding a user's waitlist.
func WaitlistKey(userID string) (string, error) { return stateKey("waitlist", userID) }

func stateKey(prefix, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.ContainsAny(userID, "/#") {
		return "", fmt.Errorf("%w: user id %q", ErrInvalidKey, userID)
	}
	return prefix + ":" + userID, nil
}
