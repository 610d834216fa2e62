package ports

import (
	"context"
	"time"

	"github.com/haleybot/haley/pkg/domain"
)

// EntityStore persists the three durable entities. Implementations must make
// AdjustListingSlots, TransitionApplication, and SettleListing atomic with
// respect to each other on the same listing: that is the store-side half of
// the capacity and settlement guarantees.
type EntityStore interface {
	// CreateActor inserts a new actor. Returns domain.ErrStateConflict if
	// the id is already registered.
	CreateActor(ctx context.Context, a *domain.Actor) error

	// Actor returns domain.ErrNotFound for unknown ids.
	Actor(ctx context.Context, id int64) (*domain.Actor, error)

	// SetActorRole updates the role of an existing actor.
	SetActorRole(ctx context.Context, id int64, role domain.Role) error

	// CreateListing assigns and returns the listing id.
	CreateListing(ctx context.Context, l *domain.Listing) (int64, error)

	// Listing returns domain.ErrNotFound for unknown ids.
	Listing(ctx context.Context, id int64) (*domain.Listing, error)

	// ListingByChat returns the most recent listing owned by a group chat.
	ListingByChat(ctx context.Context, chatID int64) (*domain.Listing, error)

	// OpenListings returns open listings with slots left whose date falls in
	// [from, to], ordered by date.
	OpenListings(ctx context.Context, from, to time.Time) ([]*domain.Listing, error)

	// AdjustListingSlots atomically adds delta to the listing's remaining
	// slots. A negative delta that would take the count below zero fails
	// with domain.ErrNoCapacity and changes nothing; a positive delta is
	// capped at the original slot count. Returns the new remaining count.
	AdjustListingSlots(ctx context.Context, id int64, delta int) (int, error)

	// CreateApplication assigns and returns the application id.
	CreateApplication(ctx context.Context, app *domain.Application) (int64, error)

	// Application returns domain.ErrNotFound for unknown ids.
	Application(ctx context.Context, id int64) (*domain.Application, error)

	// ActiveApplication returns the pending or accepted application for the
	// (actor, listing) pair, or domain.ErrNotFound.
	ActiveApplication(ctx context.Context, actorID, listingID int64) (*domain.Application, error)

	// ApplicationsByActor returns the actor's applications, filtered to the
	// given statuses when any are supplied.
	ApplicationsByActor(ctx context.Context, actorID int64, statuses ...domain.AppStatus) ([]*domain.Application, error)

	// ApplicationsByListing returns a listing's applications, filtered to
	// the given statuses when any are supplied.
	ApplicationsByListing(ctx context.Context, listingID int64, statuses ...domain.AppStatus) ([]*domain.Application, error)

	// TransitionApplication moves an application from one status to another
	// only if it currently holds the from status. Returns false (and no
	// error) when the application is in any other state, so batch callers
	// can skip stale ids silently.
	TransitionApplication(ctx context.Context, id int64, from, to domain.AppStatus) (bool, error)

	// SettleListing atomically credits every accepted applicant the
	// listing's hours and closes the listing. A second call fails with
	// domain.ErrListingClosed. The credit and the status change commit
	// together or not at all.
	SettleListing(ctx context.Context, listingID int64) (*domain.Settlement, error)
}
