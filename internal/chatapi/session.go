package chatapi

import "time"

// Turn is a coarse round entry used for analytics; one per completion that
// touched the session (not one per message).
type Turn struct {
	Role      Role      `json:"role"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the durable per-conversation state keyed by SessionID.
type Session struct {
	SessionID string    `json:"session_id"`
	History   []Message `json:"history"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep-enough copy safe to mutate without aliasing the
// original's slices.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.History = append([]Message(nil), s.History...)
	out.Turns = append([]Turn(nil), s.Turns...)
	return &out
}
