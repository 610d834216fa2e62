// Package memory provides in-memory implementations of the entity and
// session stores. Safe for concurrent use; used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/haleybot/haley/pkg/domain"
)

// Store implements ports.EntityStore in memory behind one mutex, which also
// makes the multi-row settlement trivially atomic.
type Store struct {
	mu sync.Mutex

	actors   map[int64]*domain.Actor
	listings map[int64]*domain.Listing
	apps     map[int64]*domain.Application

	nextListing int64
	nextApp     int64
}

// NewStore creates an empty in-memory entity store.
func NewStore() *Store {
	return &Store{
		actors:   make(map[int64]*domain.Actor),
		listings: make(map[int64]*domain.Listing),
		apps:     make(map[int64]*domain.Application),
	}
}

func (s *Store) CreateActor(ctx context.Context, a *domain.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.actors[a.ID]; exists {
		return domain.ErrStateConflict
	}
	cp := *a
	s.actors[a.ID] = &cp
	return nil
}

func (s *Store) Actor(ctx context.Context, id int64) (*domain.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) SetActorRole(ctx context.Context, id int64, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actors[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Role = role
	return nil
}

func (s *Store) CreateListing(ctx context.Context, l *domain.Listing) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextListing++
	cp := *l
	cp.ID = s.nextListing
	if cp.Status == "" {
		cp.Status = domain.ListingOpen
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.listings[cp.ID] = &cp
	return cp.ID, nil
}

func (s *Store) Listing(ctx context.Context, id int64) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listingLocked(id)
}

func (s *Store) listingLocked(id int64) (*domain.Listing, error) {
	l, ok := s.listings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) ListingByChat(ctx context.Context, chatID int64) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *domain.Listing
	for _, l := range s.listings {
		if l.ChatID != chatID {
			continue
		}
		if latest == nil || l.ID > latest.ID {
			latest = l
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) OpenListings(ctx context.Context, from, to time.Time) ([]*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Listing
	for _, l := range s.listings {
		if l.Status != domain.ListingOpen || l.SlotsLeft <= 0 {
			continue
		}
		if l.Date.Before(from) || l.Date.After(to) {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (s *Store) AdjustListingSlots(ctx context.Context, id int64, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	next := l.SlotsLeft + delta
	if next < 0 {
		return l.SlotsLeft, domain.ErrNoCapacity
	}
	if next > l.Slots {
		next = l.Slots
	}
	l.SlotsLeft = next
	return next, nil
}

func (s *Store) CreateApplication(ctx context.Context, app *domain.Application) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextApp++
	cp := *app
	cp.ID = s.nextApp
	if cp.Status == "" {
		cp.Status = domain.AppPending
	}
	if cp.AppliedAt.IsZero() {
		cp.AppliedAt = time.Now()
	}
	s.apps[cp.ID] = &cp
	return cp.ID, nil
}

func (s *Store) Application(ctx context.Context, id int64) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func (s *Store) ActiveApplication(ctx context.Context, actorID, listingID int64) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, app := range s.apps {
		if app.ActorID == actorID && app.ListingID == listingID && app.Status.Active() {
			cp := *app
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ApplicationsByActor(ctx context.Context, actorID int64, statuses ...domain.AppStatus) ([]*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Application
	for _, app := range s.apps {
		if app.ActorID == actorID && matchStatus(app.Status, statuses) {
			cp := *app
			out = append(out, &cp)
		}
	}
	sortApps(out)
	return out, nil
}

func (s *Store) ApplicationsByListing(ctx context.Context, listingID int64, statuses ...domain.AppStatus) ([]*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Application
	for _, app := range s.apps {
		if app.ListingID == listingID && matchStatus(app.Status, statuses) {
			cp := *app
			out = append(out, &cp)
		}
	}
	sortApps(out)
	return out, nil
}

func (s *Store) TransitionApplication(ctx context.Context, id int64, from, to domain.AppStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if app.Status != from {
		return false, nil
	}
	app.Status = to
	return true, nil
}

func (s *Store) SettleListing(ctx context.Context, listingID int64) (*domain.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[listingID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if l.Status == domain.ListingClosed {
		return nil, domain.ErrListingClosed
	}

	settlement := &domain.Settlement{ListingID: listingID, Hours: l.Hours}
	for _, app := range s.apps {
		if app.ListingID != listingID || app.Status != domain.AppAccepted {
			continue
		}
		if a, ok := s.actors[app.ActorID]; ok {
			a.CreditHours += l.Hours
		}
		settlement.Credited = append(settlement.Credited, app.ActorID)
	}
	sort.Slice(settlement.Credited, func(i, j int) bool {
		return settlement.Credited[i] < settlement.Credited[j]
	})
	l.Status = domain.ListingClosed
	return settlement, nil
}

func matchStatus(status domain.AppStatus, filter []domain.AppStatus) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if status == f {
			return true
		}
	}
	return false
}

func sortApps(apps []*domain.Application) {
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
}
