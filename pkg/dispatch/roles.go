package dispatch

import (
	"context"
	"errors"

	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/ports"
)

// MemberFunc answers whether an actor belongs to the sponsoring group.
// The transport bridge supplies a real check; nil means everyone passes.
type MemberFunc func(ctx context.Context, actorID int64) (bool, error)

// StoreRoles resolves roles from the entity store: an actor is a manager
// when their stored role says so.
type StoreRoles struct {
	store  ports.EntityStore
	member MemberFunc
}

// NewRoles creates a resolver over the store.
func NewRoles(store ports.EntityStore, member MemberFunc) *StoreRoles {
	return &StoreRoles{store: store, member: member}
}

// IsManager reports whether the actor is a registered manager. Unknown
// actors are not managers; that is not an error.
func (r *StoreRoles) IsManager(ctx context.Context, actorID int64) (bool, error) {
	actor, err := r.store.Actor(ctx, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return actor.Role == domain.RoleManager, nil
}

// IsMember delegates to the member check when one is configured.
func (r *StoreRoles) IsMember(ctx context.Context, actorID int64) (bool, error) {
	if r.member == nil {
		return true, nil
	}
	return r.member(ctx, actorID)
}
