package session

import "context"

// Store is the pluggable session-store interface (spec §4.I). Load
// returns (nil, nil) when the session doesn't exist yet — matching the
// teacher's MemoryBackend convention that a missing key is normal, not
// an error.
type Store interface {
	Load(ctx context.Context, ns, id string) (*Session, error)
	Save(ctx context.Context, ns, id string, sess *Session) error
	Delete(ctx context.Context, ns, id string) error
}

func key(ns, id string) string {
	return ns + ":" + id
}
