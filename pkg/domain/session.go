package domain

import (
	"fmt"
	"time"
)

// Session is the in-flight state of one multi-step flow for one
// (actor, chat) pair: which workflow, which step, and the fields collected
// so far. Sessions are ephemeral; losing them before the terminal step is
// safe because no side effect has been committed yet.
type Session struct {
	ActorID  int64  `json:"actor_id"`
	ChatID   int64  `json:"chat_id"`
	Workflow string `json:"workflow"`
	Step     string `json:"step"`

	// Fields accumulates validated step inputs, keyed by field name.
	// Values survive a JSON round trip, so binary inputs are stored encoded.
	Fields map[string]any `json:"fields"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession starts a session at the given workflow and step.
func NewSession(actorID, chatID int64, workflow, step string) *Session {
	now := time.Now()
	return &Session{
		ActorID:   actorID,
		ChatID:    chatID,
		Workflow:  workflow,
		Step:      step,
		Fields:    make(map[string]any),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Key returns the session key for this session's (actor, chat) pair.
func (s *Session) Key() string {
	return SessionKey(s.ActorID, s.ChatID)
}

// SessionKey builds the canonical key for an (actor, chat) pair.
func SessionKey(actorID, chatID int64) string {
	return fmt.Sprintf("%d:%d", actorID, chatID)
}

// String returns a string field, or "" when absent.
func (s *Session) String(name string) string {
	v, _ := s.Fields[name].(string)
	return v
}
