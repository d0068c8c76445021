package cache

import (
	"context"
	"errors"
	"time"
)

// Provider is a byte-oriented key/value store with per-key expiry.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; a zero ttl keeps the key until Del.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// ErrCacheMiss is returned by Get for an absent or expired key.
var ErrCacheMiss = errors.New("cache miss")
