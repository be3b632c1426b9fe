package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process session back-end (RUNTIME_SESSION_STORE_TYPE
// = memory). Entries are evicted a fixed TTL after their last write, mirroring
// internal/ratelimit.Limiter's lastSeen-sweep idiom so one process never
// accumulates an unbounded number of abandoned sessions.
type MemoryStore struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	lastSeen map[string]time.Time

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// NewMemoryStore builds a MemoryStore. ttl<=0 disables eviction.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		ttl:         ttl,
		sessions:    make(map[string]*Session),
		lastSeen:    make(map[string]time.Time),
		stopCleanup: make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanupLoop()
	}
	return s
}

func (s *MemoryStore) Load(ctx context.Context, ns, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key(ns, id)]
	if !ok {
		return nil, nil
	}
	return sess.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, ns, id string, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(ns, id)
	s.sessions[k] = sess.Clone()
	s.lastSeen[k] = time.Now()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, ns, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(ns, id)
	delete(s.sessions, k)
	delete(s.lastSeen, k)
	return nil
}

// Close stops the background eviction loop. Safe to call more than once.
func (s *MemoryStore) Close() {
	s.cleanupOnce.Do(func() { close(s.stopCleanup) })
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, last := range s.lastSeen {
		if now.Sub(last) > s.ttl {
			delete(s.sessions, k)
			delete(s.lastSeen, k)
		}
	}
}
