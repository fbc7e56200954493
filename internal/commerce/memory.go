package commerce

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps commerce state in process memory. Suitable for tests and
// single-instance local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	values      map[string][]byte
	subscribers map[string]map[int]chan []byte
	nextSubID   int
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:      make(map[string][]byte),
		subscribers: make(map[string]map[int]chan []byte),
	}
}

// Get returns the payload stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, ErrInvalidKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set replaces the payload stored under key and notifies subscribers. Sends
// happen under the lock so a concurrent cancel cannot close a channel
// mid-notify.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	stored := append([]byte(nil), value...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = stored

	for _, ch := range s.subscribers[key] {
		// Drop the stale value when the subscriber is not keeping up.
		select {
		case ch <- append([]byte(nil), stored...):
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- append([]byte(nil), stored...):
			default:
			}
		}
	}
	return nil
}

// Subscribe streams payloads written to key. The current value is delivered first.
func (s *MemoryStore) Subscribe(ctx context.Context, key string) (<-chan []byte, func(), error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil, ErrInvalidKey
	}

	ch := make(chan []byte, 1)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	if s.subscribers[key] == nil {
		s.subscribers[key] = make(map[int]chan []byte)
	}
	s.subscribers[key][id] = ch
	if current, ok := s.values[key]; ok {
		ch <- append([]byte(nil), current...)
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if subs, ok := s.subscribers[key]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(s.subscribers, key)
				}
			}
			// Closing under the lock ends the consumer's range loop; Set can
			// no longer reach this channel.
			close(ch)
			s.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}
