package ratelimit

import (
	"context"
	"time"
)

// BackoffConfig bounds the attempts and delays of Retry, grounded on the
// teacher's Retry/BackoffMultiplier config shape and its
// calculateRetryDelay helper. No backend or MCP call in the gateway is
// currently routed through Retry.
type BackoffConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultBackoffConfig mirrors the teacher's DefaultAgentConfig retry block.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Delay returns the exponential backoff delay for the given 0-indexed
// attempt, capped at MaxDelay.
func (c BackoffConfig) Delay(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		if d > c.MaxDelay {
			return c.MaxDelay
		}
	}
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Retry calls fn up to MaxAttempts times, sleeping Delay(attempt) between
// tries, stopping early if shouldRetry returns false or ctx is cancelled.
// It never retries a call whose side effects are not known to be
// idempotent — callers must only pass transport-level operations here
// (backend/MCP calls), never a tool invocation that already produced a
// result.
func Retry(ctx context.Context, cfg BackoffConfig, shouldRetry func(error) bool, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Delay(attempt)):
		}
	}
	return lastErr
}
