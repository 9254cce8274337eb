package contracts

import (
	"context"
	"time"
)

// Cache is a simple key/value cache. Values are opaque bytes so every backend
// stores the same representation; callers choose their own encoding.
//
// A ttl <= 0 means the backend's default expiration. Empty keys are rejected
// with sentinel.ErrInvalidArgument.
type Cache interface {
	// Get returns the value and true on a hit, nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// Clear removes every entry owned by this cache.
	Clear(ctx context.Context) error

	// GetMultiple returns the hits only; missing keys are omitted.
	GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMultiple(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	DeleteMultiple(ctx context.Context, keys []string) error
}
