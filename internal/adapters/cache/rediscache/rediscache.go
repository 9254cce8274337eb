// Package rediscache is a contracts.Cache backed by the Redis client
// registered under connection.redis.cache. Every key is namespaced with a
// prefix so Clear only touches this cache's entries.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jardisPsr/foundation/internal/adapters/cache"
	"github.com/jardisPsr/foundation/internal/platform/metrics"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/platform/sentinel"
)

const (
	backend   = "redis"
	scanBatch = 500
)

var _ contracts.Cache = (*Cache)(nil)

type Cache struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// New wraps client. The client lifecycle stays with the caller.
func New(client *redis.Client, prefix string, defaultTTL time.Duration) *Cache {
	return &Cache{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

func (c *Cache) ttl(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	if c.defaultTTL > 0 {
		return c.defaultTTL
	}
	return 0
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := cache.ValidateKey(key); err != nil {
		return nil, false, err
	}
	b, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveCacheLookup(backend, false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	metrics.ObserveCacheLookup(backend, true)
	return b, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(key), value, c.ttl(ttl)).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	if err := cache.ValidateKey(key); err != nil {
		return false, err
	}
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// matchPattern returns the SCAN pattern for every key under prefix.
func matchPattern(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}

// Clear deletes every key under the prefix using SCAN, never FLUSHDB. A
// cache without a prefix cannot tell its keys apart and refuses to clear.
func (c *Cache) Clear(ctx context.Context) error {
	if c.prefix == "" {
		return fmt.Errorf("clear redis cache without key prefix: %w", sentinel.ErrInvalidArgument)
	}
	iter := c.client.Scan(ctx, 0, matchPattern(c.prefix), scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

func (c *Cache) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := cache.ValidateKeys(keys); err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}
	values, err := c.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		metrics.ObserveCacheLookup(backend, ok)
		if ok {
			out[keys[i]] = []byte(s)
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
	if len(values) == 0 {
		return nil
	}
	expiry := c.ttl(ttl)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, v := range values {
			pipe.Set(ctx, c.key(key), v, expiry)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis pipeline set: %w", err)
	}
	return nil
}

func (c *Cache) DeleteMultiple(ctx context.Context, keys []string) error {
	if err := cache.ValidateKeys(keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}
	if err := c.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
