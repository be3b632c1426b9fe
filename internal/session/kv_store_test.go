package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
)

func newTestKVStore(t *testing.T) *KVStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewKVStoreWithClient(client)
}

func TestKVStoreLoadMissingReturnsNilNil(t *testing.T) {
	s := newTestKVStore(t)
	got, err := s.Load(context.Background(), "ns", "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKVStoreSaveThenLoadRoundTrips(t *testing.T) {
	s := newTestKVStore(t)
	sess := &Session{
		SessionID: "sid-1",
		History:   []chatapi.Message{chatapi.Text(chatapi.RoleUser, "hi")},
	}
	require.NoError(t, s.Save(context.Background(), "regression_mm", "sid-1", sess))

	got, err := s.Load(context.Background(), "regression_mm", "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sid-1", got.SessionID)
	assert.Equal(t, "hi", got.History[0].Content.String())
}

func TestKVStoreUsesDocumentedKeyFormat(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewKVStoreWithClient(client)

	require.NoError(t, s.Save(context.Background(), "regression_mm", "sid-1", &Session{SessionID: "sid-1"}))
	assert.True(t, mr.Exists("session:regression_mm:sid-1"))
}

func TestKVStoreDeleteRemovesKey(t *testing.T) {
	s := newTestKVStore(t)
	require.NoError(t, s.Save(context.Background(), "ns", "sid-1", &Session{SessionID: "sid-1"}))
	require.NoError(t, s.Delete(context.Background(), "ns", "sid-1"))

	got, err := s.Load(context.Background(), "ns", "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
