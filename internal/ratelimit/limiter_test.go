package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterDisabledNeverBlocks(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)
	defer l.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.Wait(ctx, "llama_cpp"))
}

func TestLimiterRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Enabled: true, RequestsPerSecond: 0})
	assert.Error(t, err)

	_, err = New(Config{Enabled: true, RequestsPerSecond: 1, BurstSize: 0})
	assert.Error(t, err)
}

func TestLimiterPerKeyIndependence(t *testing.T) {
	l, err := New(Config{Enabled: true, RequestsPerSecond: 0.1, BurstSize: 1, WaitTimeout: time.Second})
	require.NoError(t, err)
	defer l.Stop()

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "a"))
	require.NoError(t, l.Wait(ctx, "b"))
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 1 * time.Second, MaxDelay: 5 * time.Second, Multiplier: 2, MaxAttempts: 5}
	assert.Equal(t, 1*time.Second, cfg.Delay(0))
	assert.Equal(t, 2*time.Second, cfg.Delay(1))
	assert.Equal(t, 4*time.Second, cfg.Delay(2))
	assert.Equal(t, 5*time.Second, cfg.Delay(3))
}

func TestRetrySucceedsWithinBudget(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 3}
	attempts := 0
	err := Retry(context.Background(), cfg, nil, func() error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryStopsWhenShouldRetryFalse(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 5}
	attempts := 0
	err := Retry(context.Background(), cfg, func(error) bool { return false }, func() error {
		attempts++
		return errors.New("permanent")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 3}
	attempts := 0
	err := Retry(context.Background(), cfg, nil, func() error {
		attempts++
		return errors.New("still failing")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}
