package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node runs
// without redis. Expired entries are dropped lazily on access.
type MemoryStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewMemoryStore creates an in-memory dedup store.
func NewMemoryStore(window time.Duration) *MemoryStore {
	if window <= 0 {
		window = time.Hour
	}
	return &MemoryStore{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

func (s *MemoryStore) Seen(ctx context.Context, deliveryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if at, ok := s.seen[deliveryID]; ok && now.Sub(at) < s.window {
		return false, nil
	}
	s.seen[deliveryID] = now
	// Opportunistic sweep keeps the map bounded.
	if len(s.seen) > 4096 {
		for id, at := range s.seen {
			if now.Sub(at) >= s.window {
				delete(s.seen, id)
			}
		}
	}
	return true, nil
}
