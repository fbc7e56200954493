package commerce

import (
	"context"
	"errors"
	"strings"
	"time"

	pfirestore "github.com/templhub/api/internal/platform/firestore"
	"github.com/templhub/api/internal/repositories"
)

const stateCollection = "commerceState"

type stateDocument struct {
	Payload   string    `firestore:"payload"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// FirestoreStore persists commerce state documents keyed by the state key.
// Subscriptions ride on Firestore snapshot listeners, so cross-instance
// writes propagate to every storefront session.
type FirestoreStore struct {
	base *pfirestore.BaseRepository[stateDocument]
	now  func() time.Time
}

// FirestoreStoreOption customises the store.
type FirestoreStoreOption func(*FirestoreStore)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) FirestoreStoreOption {
	return func(s *FirestoreStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewFirestoreStore constructs a Firestore-backed commerce store.
func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreStoreOption) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("commerce: firestore provider is required")
	}
	store := &FirestoreStore{
		base: pfirestore.NewBaseRepository[stateDocument](provider, stateCollection, nil, nil),
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Get returns the payload stored under key.
func (s *FirestoreStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, ErrInvalidKey
	}
	doc, err := s.base.Get(ctx, documentID(key))
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(doc.Data.Payload), true, nil
}

// Set replaces the payload stored under key.
func (s *FirestoreStore) Set(ctx context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	_, err := s.base.Set(ctx, documentID(key), stateDocument{
		Payload:   string(value),
		UpdatedAt: s.now().UTC(),
	})
	return err
}

// Subscribe streams payloads written to key via a snapshot listener.
func (s *FirestoreStore) Subscribe(ctx context.Context, key string) (<-chan []byte, func(), error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil, ErrInvalidKey
	}

	ref, err := s.base.DocumentRef(ctx, documentID(key))
	if err != nil {
		return nil, nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	updates, _ := pfirestore.WatchDocument(watchCtx, ref, 1)

	out := make(chan []byte, 1)
	go func() {
		defer close(out)
		for update := range updates {
			if !update.Exists {
				continue
			}
			doc, err := s.base.DecodeSnapshot(watchCtx, update.Snapshot)
			if err != nil {
				continue
			}
			select {
			case out <- []byte(doc.Data.Payload):
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return out, cancel, nil
}

// documentID flattens the state key into a Firestore-safe document id.
func documentID(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}
