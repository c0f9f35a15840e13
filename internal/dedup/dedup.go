// Package dedup remembers webhook delivery ids for a bounded window so
// platform redeliveries of the same event are dropped instead of
// reprocessed. This is keyed by the platform's delivery id and is
// independent of document-identity caching.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records delivery ids. Seen atomically claims an id: it returns
// true exactly once per id within the retention window.
type Store interface {
	Seen(ctx context.Context, deliveryID string) (first bool, err error)
}

const keyPrefix = "dedup:delivery:"

// RedisStore implements Store on redis with SET NX + TTL, so claims are
// atomic across processes and expire without a sweeper.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

// NewRedisStore creates a redis-backed dedup store.
func NewRedisStore(client *redis.Client, window time.Duration) *RedisStore {
	if window <= 0 {
		window = time.Hour
	}
	return &RedisStore{client: client, window: window}
}

func (s *RedisStore) Seen(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, fmt.Errorf("delivery id must be provided")
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+deliveryID, "1", s.window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return ok, nil
}
