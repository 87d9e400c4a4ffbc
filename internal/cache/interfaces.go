package cache

import (
	"context"
	"time"
)

// Cache holds resource snapshots. Snapshots only: counters cached here are
// never consulted for admission decisions, the store's conditional update
// is the source of truth.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// RateLimiter counts requests per client within a window.
type RateLimiter interface {
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// NullCache - no-op stand-in used when Redis is unavailable.
type NullCache struct{}

func NewNullCache() *NullCache {
	return &NullCache{}
}

func (n *NullCache) Set(ctx context.Context, key string, value interface{}) error {
	return nil
}

func (n *NullCache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (n *NullCache) Get(ctx context.Context, key string, dest interface{}) error {
	return ErrCacheMiss
}

func (n *NullCache) Delete(ctx context.Context, keys ...string) error {
	return nil
}

func (n *NullCache) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (n *NullCache) HealthCheck(ctx context.Context) error {
	return nil
}

func (n *NullCache) Close() error {
	return nil
}
