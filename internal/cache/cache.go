package cache

import (
	"context"
	"time"
)

// BytesCache is a best-effort key/value cache. Callers treat every error as a
// miss; the store stays the source of truth.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
