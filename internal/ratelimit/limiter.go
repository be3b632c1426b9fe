// Package ratelimit guards outbound backend calls with a per-key token
// bucket, adapted from the teacher's tokenBucketLimiter. MCP calls are not
// rate limited.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a Limiter. Disabled limiters let every call through.
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	KeyTimeout        time.Duration
	WaitTimeout       time.Duration
}

// DefaultConfig returns a sensible, disabled-by-default configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		RequestsPerSecond: 10,
		BurstSize:         20,
		KeyTimeout:        5 * time.Minute,
		WaitTimeout:       30 * time.Second,
	}
}

// Limiter applies a token bucket per key (typically a provider id), so one
// slow or saturated backend doesn't starve another's budget.
type Limiter struct {
	cfg Config

	mu       sync.RWMutex
	perKey   map[string]*rate.Limiter
	lastSeen map[string]time.Time

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// New validates cfg and builds a Limiter. A disabled config still returns a
// usable Limiter whose Wait calls always succeed immediately.
func New(cfg Config) (*Limiter, error) {
	if cfg.Enabled {
		if cfg.RequestsPerSecond <= 0 {
			return nil, fmt.Errorf("ratelimit: requests_per_second must be positive")
		}
		if cfg.BurstSize < 1 {
			return nil, fmt.Errorf("ratelimit: burst_size must be >= 1")
		}
	}
	if cfg.KeyTimeout == 0 {
		cfg.KeyTimeout = 5 * time.Minute
	}
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = 30 * time.Second
	}
	l := &Limiter{
		cfg:         cfg,
		perKey:      make(map[string]*rate.Limiter),
		lastSeen:    make(map[string]time.Time),
		stopCleanup: make(chan struct{}),
	}
	if cfg.Enabled {
		go l.cleanupLoop()
	}
	return l, nil
}

// Wait blocks until the key's bucket admits one request, bounded by
// WaitTimeout, or returns immediately if rate limiting is disabled.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if !l.cfg.Enabled {
		return nil
	}
	limiter := l.limiterFor(key)

	waitCtx := ctx
	if l.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.cfg.WaitTimeout)
		defer cancel()
	}
	return limiter.Wait(waitCtx)
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.perKey[key]
	l.mu.RUnlock()
	if ok {
		l.touch(key)
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.perKey[key]; ok {
		l.lastSeen[key] = time.Now()
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.BurstSize)
	l.perKey[key] = lim
	l.lastSeen[key] = time.Now()
	return lim
}

func (l *Limiter) touch(key string) {
	l.mu.Lock()
	l.lastSeen[key] = time.Now()
	l.mu.Unlock()
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.KeyTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) sweep() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, last := range l.lastSeen {
		if now.Sub(last) > l.cfg.KeyTimeout {
			delete(l.perKey, key)
			delete(l.lastSeen, key)
		}
	}
}

// Stop ends the cleanup goroutine; safe to call multiple times.
func (l *Limiter) Stop() {
	l.cleanupOnce.Do(func() { close(l.stopCleanup) })
}
