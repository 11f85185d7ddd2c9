package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	_ Backend = (*ResponseCache)(nil)
	_ Backend = (*RedisResponseCache)(nil)
)

// RedisResponseCache is a shared-process ResponseCache backend, grounded on
// vasic-digital-SuperAgent/internal/cache's RedisClient wrapper and tested
// the same way (github.com/alicebob/miniredis/v2). Use this instead of
// ResponseCache when multiple service instances must share a cache.
type RedisResponseCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisResponseCache wraps an already-configured *redis.Client.
func NewRedisResponseCache(client *redis.Client, keyPrefix string) *RedisResponseCache {
	if keyPrefix == "" {
		keyPrefix = "advisor:response:"
	}
	return &RedisResponseCache{client: client, keyPrefix: keyPrefix}
}

func (c *RedisResponseCache) prefixed(key string) string { return c.keyPrefix + key }

// Get returns the cached entry for key if present. Redis's own TTL does
// the expiry bookkeeping, so a miss here is indistinguishable from an
// expired entry (both return ok=false).
func (c *RedisResponseCache) Get(ctx context.Context, key string) (Entry, bool) {
	data, err := c.client.Get(ctx, c.prefixed(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// treated as a cache miss; the caller regenerates the answer
			// rather than failing the request over a cache backend hiccup.
			_ = err
		}
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false
	}
	return entry, true
}

// Set stores entry under key with the given TTL.
func (c *RedisResponseCache) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.prefixed(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}
