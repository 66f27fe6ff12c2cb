package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss indicates the key was not found in the cache.
var ErrMiss = errors.New("cache miss")

// Cache is the read-through cache used by the public catalog endpoints.
// Memory is the default; Redis is used when configured. Cart and order
// paths never read through it: price and stock must stay authoritative.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
