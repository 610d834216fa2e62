// Package capacity guards a listing's remaining-slot count. All slot
// arithmetic goes through the Ledger so the bounds invariant
// (0 <= remaining <= original) holds under concurrent triage and
// withdrawal against the same listing.
package capacity

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/ports"
)

// Ledger wraps the store's conditional slot primitive. Reserve and Release
// on the same listing are linearizable because the store applies each
// adjustment atomically.
type Ledger struct {
	store ports.EntityStore
	ops   *prometheus.CounterVec
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithOpCounter counts ledger operations by result
// (reserved, released, no_capacity, error).
func WithOpCounter(c *prometheus.CounterVec) Option {
	return func(l *Ledger) { l.ops = c }
}

// NewLedger creates a ledger over the given entity store.
func NewLedger(store ports.EntityStore, opts ...Option) *Ledger {
	l := &Ledger{store: store}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve takes n slots from the listing. Fails with domain.ErrNoCapacity
// (changing nothing) if fewer than n slots remain. Batch callers reserve
// one slot per accepted id so a partial batch never oversells.
func (l *Ledger) Reserve(ctx context.Context, listingID int64, n int) error {
	if n <= 0 {
		return fmt.Errorf("reserve count must be positive, got %d", n)
	}
	_, err := l.store.AdjustListingSlots(ctx, listingID, -n)
	switch {
	case err == nil:
		l.count("reserved")
	case errors.Is(err, domain.ErrNoCapacity):
		l.count("no_capacity")
	default:
		l.count("error")
	}
	return err
}

// Release returns n slots to the listing, capped at its original count.
// Invoked when a previously accepted applicant withdraws.
func (l *Ledger) Release(ctx context.Context, listingID int64, n int) error {
	if n <= 0 {
		return fmt.Errorf("release count must be positive, got %d", n)
	}
	_, err := l.store.AdjustListingSlots(ctx, listingID, n)
	if err != nil {
		l.count("error")
		return err
	}
	l.count("released")
	return nil
}

// Remaining reports the listing's current remaining slots.
func (l *Ledger) Remaining(ctx context.Context, listingID int64) (int, error) {
	listing, err := l.store.Listing(ctx, listingID)
	if err != nil {
		return 0, err
	}
	if listing.Status == domain.ListingClosed {
		return 0, domain.ErrListingClosed
	}
	return listing.SlotsLeft, nil
}

func (l *Ledger) count(result string) {
	if l.ops != nil {
		l.ops.WithLabelValues(result).Inc()
	}
}
