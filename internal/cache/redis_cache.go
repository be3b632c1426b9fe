package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the Redis-backed Cache (spec §4.O: "Redis, when the
// session store is redis-backed"), adapted from the teacher's
// RedisCache — same key-prefix/stats shape, generalized to store
// serialized chat responses instead of raw prompt completions.
type RedisCache struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration

	statsMu sync.RWMutex
	stats   Stats
}

// NewRedisCache builds a RedisCache over an already-constructed client
// (typically shared with the session store's KVStore so the gateway
// doesn't open two Redis connections for one backing instance).
func NewRedisCache(client redis.UniversalClient, prefix string, defaultTTL time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "runtime:cache"
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &RedisCache{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

func (c *RedisCache) makeKey(key string) string {
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.makeKey(key)).Result()
	if err == redis.Nil {
		c.statsMu.Lock()
		c.stats.Misses++
		c.statsMu.Unlock()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: redis get: %w", err)
	}
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.makeKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	c.statsMu.Lock()
	c.stats.TotalWrites++
	c.statsMu.Unlock()
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.makeKey(key)).Err(); err != nil {
		return fmt.Errorf("cache: redis del: %w", err)
	}
	return nil
}

// Clear scans and deletes every key under this cache's prefix. Safe
// for the modest key counts a single-instance gateway cache produces;
// not intended for large shared Redis deployments.
func (c *RedisCache) Clear(ctx context.Context) error {
	pattern := c.makeKey("*")
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache: redis clear: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: redis scan: %w", err)
	}
	c.statsMu.Lock()
	c.stats = Stats{}
	c.statsMu.Unlock()
	return nil
}

// Stats reports only the locally-tracked hit/miss/write counters —
// Redis itself is the source of truth for Size, which this in-process
// view cannot cheaply compute without a full SCAN.
func (c *RedisCache) Stats() Stats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}
