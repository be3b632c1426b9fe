package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// KVStore is the networked key-value session back-end
// (RUNTIME_SESSION_STORE_TYPE = minimemory, spec §4.I/§9 "KV session
// key"). Adapted from the teacher's RedisBackend: one JSON value per
// session key `session:<ns>:<id>` rather than the teacher's flat
// `<prefix><memoryID>` scheme, and no TTL — spec §4.I's KV back-end has
// no documented expiry, unlike the teacher's 7-day conversation default.
type KVStore struct {
	client redis.UniversalClient
}

// NewKVStore builds a KVStore from connection details (spec's
// RUNTIME_SESSION_STORE_ENDPOINT/_PASSWORD/_DB), mirroring the teacher's
// NewRedisBackend smart-defaults constructor.
func NewKVStore(addr, password string, db int) *KVStore {
	return NewKVStoreWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

// NewKVStoreWithClient accepts a pre-built client, for tests (miniredis)
// or cluster/sentinel configurations, mirroring
// NewRedisBackendWithClient.
func NewKVStoreWithClient(client redis.UniversalClient) *KVStore {
	return &KVStore{client: client}
}

// Client exposes the underlying Redis connection so other components
// (the response cache, when also Redis-backed) can share one pool
// instead of opening a second one.
func (s *KVStore) Client() redis.UniversalClient {
	return s.client
}

func kvKey(ns, id string) string {
	return "session:" + ns + ":" + id
}

func (s *KVStore) Load(ctx context.Context, ns, id string) (*Session, error) {
	data, err := s.client.Get(ctx, kvKey(ns, id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: kv get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("session: kv parse: %w", err)
	}
	return &sess, nil
}

func (s *KVStore) Save(ctx context.Context, ns, id string, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: kv marshal: %w", err)
	}
	if err := s.client.Set(ctx, kvKey(ns, id), data, 0).Err(); err != nil {
		return fmt.Errorf("session: kv set: %w", err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, ns, id string) error {
	if err := s.client.Del(ctx, kvKey(ns, id)).Err(); err != nil {
		return fmt.Errorf("session: kv del: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *KVStore) Close() error {
	return s.client.Close()
}
