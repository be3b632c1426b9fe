package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
	"github.com/acproject/local-ai-runtime/internal/sampling"
)

func TestEligibleRequiresZeroTemperatureAndNoTools(t *testing.T) {
	assert.True(t, Eligible(sampling.Params{Temperature: 0}, nil))
	assert.False(t, Eligible(sampling.Params{Temperature: 0.7}, nil))
	assert.False(t, Eligible(sampling.Params{Temperature: 0}, []chatapi.ToolDef{{}}))
}

func TestKeyIsDeterministicForEquivalentRequests(t *testing.T) {
	messages := []chatapi.Message{chatapi.Text(chatapi.RoleUser, "hi")}
	params := sampling.Params{Temperature: 0, TopP: 0.9}

	k1 := Key("mock-model", messages, params)
	k2 := Key("mock-model", messages, params)
	assert.Equal(t, k1, k2)
}

func TestKeyDiffersOnMessageChange(t *testing.T) {
	params := sampling.Params{Temperature: 0}
	k1 := Key("mock-model", []chatapi.Message{chatapi.Text(chatapi.RoleUser, "hi")}, params)
	k2 := Key("mock-model", []chatapi.Message{chatapi.Text(chatapi.RoleUser, "bye")}, params)
	assert.NotEqual(t, k1, k2)
}

func TestMemoryCacheMissThenSetThenHit(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	defer c.Close()

	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(context.Background(), "k", "cached response", 0))

	val, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cached response", val)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.TotalWrites)
}

func TestMemoryCacheExpiresEntryAfterTTL(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLRUWhenFull(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "a", "1", 0))
	require.NoError(t, c.Set(context.Background(), "b", "2", 0))
	// Touch "a" so "b" becomes the least-recently-used entry.
	_, _, _ = c.Get(context.Background(), "a")
	require.NoError(t, c.Set(context.Background(), "c", "3", 0))

	_, aOK, _ := c.Get(context.Background(), "a")
	_, bOK, _ := c.Get(context.Background(), "b")
	_, cOK, _ := c.Get(context.Background(), "c")
	assert.True(t, aOK)
	assert.False(t, bOK)
	assert.True(t, cOK)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryCacheClearResetsEverything(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "k", "v", 0))
	require.NoError(t, c.Clear(context.Background()))

	_, ok, _ := c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Equal(t, Stats{Misses: 1}, c.Stats())
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "k", "v", 0))
	require.NoError(t, c.Delete(context.Background(), "k"))

	_, ok, _ := c.Get(context.Background(), "k")
	assert.False(t, ok)
}
