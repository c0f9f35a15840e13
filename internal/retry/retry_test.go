package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesRetryableUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0}
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &Retryable{Err: errors.New("rate limited")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDoStopsOnFatalError(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Multiplier: 2.0}
	fatal := errors.New("invalid api key")
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("fatal error must not be retried, got %d attempts", calls)
	}
}

func TestDoExhaustionReturnsLastError(t *testing.T) {
	p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2.0}
	limited := errors.New("still limited")
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &Retryable{Err: limited}
	})
	if !errors.Is(err, limited) {
		t.Fatalf("expected last error after exhaustion, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestDoExhaustionKeepsRetryableMarker(t *testing.T) {
	p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2.0}
	err := p.Do(context.Background(), func(ctx context.Context) error {
		return &Retryable{Err: errors.New("rate limited")}
	})
	var re *Retryable
	if !errors.As(err, &re) {
		t.Fatalf("exhausted retryable error lost its marker: %v", err)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Minute, Multiplier: 2.0}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func(ctx context.Context) error {
		return &Retryable{Err: errors.New("rate limited")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDelayGrowsExponentially(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: time.Second, Multiplier: 2.0}
	if d := p.Delay(0); d != time.Second {
		t.Fatalf("attempt 0 delay = %v", d)
	}
	if d := p.Delay(2); d != 4*time.Second {
		t.Fatalf("attempt 2 delay = %v", d)
	}
}
