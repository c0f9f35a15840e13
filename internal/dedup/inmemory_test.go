package dedup

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreClaimsOnce(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	first, err := s.Seen(ctx, "Ev001")
	if err != nil || !first {
		t.Fatalf("first claim: first=%v err=%v", first, err)
	}
	again, err := s.Seen(ctx, "Ev001")
	if err != nil || again {
		t.Fatalf("replay must not claim: first=%v err=%v", again, err)
	}
}

func TestMemoryStoreExpiresAfterWindow(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }
	ctx := context.Background()

	if first, _ := s.Seen(ctx, "Ev001"); !first {
		t.Fatalf("expected first claim")
	}
	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	if first, _ := s.Seen(ctx, "Ev001"); !first {
		t.Fatalf("expected claim after window expiry")
	}
}

func TestMemoryStoreConcurrentClaims(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if first, _ := s.Seen(ctx, "Ev-race"); first {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)
	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", count)
	}
}
