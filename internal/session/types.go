// Package session implements the pluggable session store (spec §4.I):
// per-session turn history and derived summaries, backed by one of an
// in-memory, file-backed, or networked key-value store.
package session

import (
	"time"

	"github.com/acproject/local-ai-runtime/internal/chatapi"
)

// Turn is one coarse entry for analytics — either a round's user message
// or the assistant's final reply, each recorded as its own Turn,
// independent of the finer-grained History.
type Turn struct {
	Role      chatapi.Role `json:"role"`
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
}

// Session is the durable per-conversation state keyed by session id
// (spec §3 GLOSSARY "Session"). History holds the full normalized
// message list, including tool-call and tool-result turns; Turns holds
// the coarser round-level summary.
type Session struct {
	SessionID string             `json:"session_id"`
	History   []chatapi.Message  `json:"history"`
	Turns     []Turn             `json:"turns"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Clone deep-copies the slices so a caller can mutate the returned
// Session without racing a concurrent Store access to the original.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.History = append([]chatapi.Message(nil), s.History...)
	out.Turns = append([]Turn(nil), s.Turns...)
	return &out
}
