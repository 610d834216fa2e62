package ports

import (
	"context"

	"github.com/haleybot/haley/pkg/domain"
)

// SessionStore persists in-flight conversation sessions keyed by
// domain.SessionKey. Implementations may expire entries on their own (TTL);
// the session manager additionally reaps idle sessions by UpdatedAt.
type SessionStore interface {
	// Save persists the session under its key.
	Save(ctx context.Context, s *domain.Session) error

	// Load returns domain.ErrSessionNotFound when no session exists.
	Load(ctx context.Context, key string) (*domain.Session, error)

	// Delete removes the session. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the keys of all live sessions.
	Keys(ctx context.Context) ([]string, error)
}
