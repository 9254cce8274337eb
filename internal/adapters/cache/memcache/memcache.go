// Package memcache is an in-process contracts.Cache backed by go-cache.
package memcache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jardisPsr/foundation/internal/adapters/cache"
	"github.com/jardisPsr/foundation/internal/platform/metrics"
	"github.com/jardisPsr/foundation/pkg/contracts"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
	backend                = "memory"
)

var _ contracts.Cache = (*Cache)(nil)

type Cache struct {
	cache *gocache.Cache
}

// New initializes the cache. Non-positive arguments fall back to the package
// defaults.
func New(defaultExpiration, cleanupInterval time.Duration) *Cache {
	if defaultExpiration <= 0 {
		defaultExpiration = DefaultExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Cache{cache: gocache.New(defaultExpiration, cleanupInterval)}
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.DefaultExpiration
	}
	return ttl
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := cache.ValidateKey(key); err != nil {
		return nil, false, err
	}
	value, found := c.cache.Get(key)
	metrics.ObserveCacheLookup(backend, found)
	if !found {
		return nil, false, nil
	}
	b, ok := value.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	c.cache.Set(key, append([]byte(nil), value...), ttlOrDefault(ttl))
	return nil
}

func (c *Cache) Has(_ context.Context, key string) (bool, error) {
	if err := cache.ValidateKey(key); err != nil {
		return false, err
	}
	_, found := c.cache.Get(key)
	return found, nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	c.cache.Delete(key)
	return nil
}

func (c *Cache) Clear(_ context.Context) error {
	c.cache.Flush()
	return nil
}

func (c *Cache) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := cache.ValidateKeys(keys); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		v, found, _ := c.Get(ctx, key)
		if found {
			out[key] = v
		}
	}
	return out, nil
}

func (c *Cache) SetMultiple(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	for key := range values {
		if err := cache.ValidateKey(key); err != nil {
			return err
		}
	}
	for key, v := range values {
		_ = c.Set(ctx, key, v, ttl)
	}
	return nil
}

func (c *Cache) DeleteMultiple(_ context.Context, keys []string) error {
	if err := cache.ValidateKeys(keys); err != nil {
		return err
	}
	for _, key := range keys {
		c.cache.Delete(key)
	}
	return nil
}

// ItemCount returns the number of entries, including expired ones not yet
// cleaned up.
func (c *Cache) ItemCount() int {
	return c.cache.ItemCount()
}
