package cache

import (
	"context"
	"time"
)

// BytesCache is the minimal cache surface services need; rediscache is the
// production implementation.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
