package retry

import (
	"context"
	"errors"
	"time"
)

// Policy is a bounded retry policy with exponential backoff. The same
// policy instance is shared by the summarizer and the reply publisher.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// Default mirrors the configuration defaults.
var Default = Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2.0}

// Retryable marks an error as transient. Wrap provider rate-limit
// responses in it; RetryAfter overrides the computed backoff when the
// server supplied a delay.
type Retryable struct {
	Err        error
	RetryAfter time.Duration
}

func (r *Retryable) Error() string { return r.Err.Error() }
func (r *Retryable) Unwrap() error { return r.Err }

// Delay returns the backoff before the given attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	return d
}

// Do invokes fn up to MaxAttempts times. Only errors wrapped in
// Retryable are retried; anything else is returned immediately. On
// exhaustion the last error is returned with its Retryable marker
// intact so callers can still classify it. The context cancels waits
// between attempts.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var re *Retryable
		if !errors.As(err, &re) {
			return err
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		delay := p.Delay(attempt)
		if re.RetryAfter > 0 {
			delay = re.RetryAfter
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
