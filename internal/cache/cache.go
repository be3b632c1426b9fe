// Package cache implements the optional response cache (spec §4.O): a
// deterministic-request cache keyed on a hash of the normalized chat
// request, populated only for temperature==0, tool-free completions.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
	"github.com/acproject/local-ai-runtime/internal/sampling"
)

// Cache stores and retrieves serialized chat responses by key, adapted
// from the teacher's agent.Cache interface (Get/Set/Delete/Clear/Stats).
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats() Stats
}

// Stats mirrors the teacher's CacheStats.
type Stats struct {
	Hits        int64
	Misses      int64
	Size        int
	Evictions   int64
	TotalWrites int64
}

// Eligible reports whether a request may be cached at all (spec §4.O):
// temperature must be exactly 0 and the request must carry no tools.
// Planner repair and tool-bearing runs are never cached since their
// side effects aren't idempotent.
func Eligible(params sampling.Params, tools []chatapi.ToolDef) bool {
	return params.Temperature == 0 && len(tools) == 0
}

// Key hashes the normalized request into a deterministic cache key
// (spec §4.O: "keyed on sha256(normalized chat request)"), grounded on
// the teacher's GenerateCacheKey.
func Key(model string, messages []chatapi.Message, params sampling.Params) string {
	data := struct {
		Model    string
		Messages []chatapi.Message
		Sampling sampling.Params
	}{Model: model, Messages: messages, Sampling: params}

	blob, _ := json.Marshal(data)
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// entry is one cached item, adapted from the teacher's CacheEntry.
type entry struct {
	value      string
	expiresAt  time.Time
	accessedAt time.Time
}

// MemoryCache is an in-process LRU cache, adapted from the teacher's
// MemoryCache: same eviction/TTL/stats shape, generalized from
// caching raw prompt strings to caching serialized chat responses.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	maxSize    int
	defaultTTL time.Duration
	stats      Stats

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// NewMemoryCache builds a MemoryCache. maxSize<=0 defaults to 1000;
// defaultTTL<=0 defaults to 5 minutes.
func NewMemoryCache(maxSize int, defaultTTL time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	c := &MemoryCache{
		entries:     make(map[string]*entry),
		maxSize:     maxSize,
		defaultTTL:  defaultTTL,
		stopCleanup: make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return "", false, nil
	}
	if time.Now().After(e.expiresAt) {
		c.stats.Misses++
		return "", false, nil
	}
	e.accessedAt = time.Now()
	c.stats.Hits++
	return e.value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if len(c.entries) >= c.maxSize {
		c.evictLRU()
	}
	now := time.Now()
	c.entries[key] = &entry{value: value, expiresAt: now.Add(ttl), accessedAt: now}
	c.stats.TotalWrites++
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.stats = Stats{}
	return nil
}

func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := c.stats
	stats.Size = len(c.entries)
	return stats
}

// Close stops the background expiry sweep. Safe to call more than once.
func (c *MemoryCache) Close() {
	c.cleanupOnce.Do(func() { close(c.stopCleanup) })
}

func (c *MemoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.accessedAt.Before(oldestTime) {
			oldestKey, oldestTime = k, e.accessedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
