package ports

import "context"

// RoleResolver answers the two authorization questions the dispatcher asks:
// is this actor a manager, and is this actor a member of the sponsoring
// group (checked once at first contact).
type RoleResolver interface {
	IsManager(ctx context.Context, actorID int64) (bool, error)
	IsMember(ctx context.Context, actorID int64) (bool, error)
}
