package commerce

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "cart:user-1"); err != nil || ok {
		t.Fatalf("expected no value, got ok=%v err=%v", ok, err)
	}

	payload := []byte(`[{"productId":"tpl-1","quantity":2}]`)
	if err := store.Set(ctx, "cart:user-1", payload); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	value, ok, err := store.Get(ctx, "cart:user-1")
	if err != nil || !ok {
		t.Fatalf("expected stored value, got ok=%v err=%v", ok, err)
	}
	if string(value) != string(payload) {
		t.Fatalf("unexpected payload %s", value)
	}
}

func TestMemoryStoreRejectsEmptyKey(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Set(context.Background(), " ", []byte("x")); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestMemoryStoreSubscribeReceivesCurrentAndUpdates(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Set(ctx, "wishlist:user-1", []byte(`["tpl-1"]`)); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	updates, stop, err := store.Subscribe(ctx, "wishlist:user-1")
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer stop()

	select {
	case value := <-updates:
		if string(value) != `["tpl-1"]` {
			t.Fatalf("unexpected initial value %s", value)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial value")
	}

	if err := store.Set(ctx, "wishlist:user-1", []byte(`["tpl-1","tpl-2"]`)); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	select {
	case value := <-updates:
		if string(value) != `["tpl-1","tpl-2"]` {
			t.Fatalf("unexpected update %s", value)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
}

func TestMemoryStoreCancelClosesChannel(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	updates, stop, err := store.Subscribe(ctx, "cart:user-1")
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}

	stop()

	select {
	case _, ok := <-updates:
		if ok {
			t.Fatal("expected channel closed, got a value")
		}
	case <-time.After(time.Second):
		t.Fatal("channel still open after cancel")
	}

	// Writes after cancel must not panic on the closed channel.
	if err := store.Set(ctx, "cart:user-1", []byte(`["a"]`)); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	stop()
}

func TestMemoryStoreLastWriterWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "cart:user-1", []byte(`["a"]`)); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := store.Set(ctx, "cart:user-1", []byte(`["b"]`)); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	value, _, err := store.Get(ctx, "cart:user-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(value) != `["b"]` {
		t.Fatalf("expected last write to win, got %s", value)
	}
}

func TestStateKeys(t *testing.T) {
	key, err := CartKey("user-1")
	if err != nil {
		t.Fatalf("CartKey returned error: %v", err)
	}
	if key != "cart:user-1" {
		t.Fatalf("unexpected key %q", key)
	}

	if _, err := WishlistKey(""); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, err := WaitlistKey("a/b"); err == nil {
		t.Fatal("expected error for slash in user id")
	}
}
