package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haleybot/haley/pkg/domain"
)

// RunSessionStoreContract verifies that a SessionStore implementation
// adheres to the interface contract. Adapters call it from their own tests.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		s := domain.NewSession(11, 22, "register", "first_name")
		s.Fields["first_name"] = "Ada"

		require.NoError(t, store.Save(ctx, s))

		loaded, err := store.Load(ctx, s.Key())
		require.NoError(t, err)
		assert.Equal(t, "register", loaded.Workflow)
		assert.Equal(t, "first_name", loaded.Step)
		assert.Equal(t, "Ada", loaded.String("first_name"))
	})

	t.Run("Load missing", func(t *testing.T) {
		_, err := store.Load(ctx, domain.SessionKey(99, 99))
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s := domain.NewSession(33, 44, "apply", "listing_id")
		require.NoError(t, store.Save(ctx, s))
		require.NoError(t, store.Delete(ctx, s.Key()))

		_, err := store.Load(ctx, s.Key())
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		// Deleting again is a no-op.
		assert.NoError(t, store.Delete(ctx, s.Key()))
	})

	t.Run("Keys", func(t *testing.T) {
		a := domain.NewSession(55, 66, "withdraw", "browse")
		b := domain.NewSession(77, 88, "triage", "collect_ids")
		require.NoError(t, store.Save(ctx, a))
		require.NoError(t, store.Save(ctx, b))
		defer func() {
			_ = store.Delete(ctx, a.Key())
			_ = store.Delete(ctx, b.Key())
		}()

		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, a.Key())
		assert.Contains(t, keys, b.Key())
	})
}

// RunEntityStoreContract verifies an EntityStore implementation against the
// documented semantics, including the conditional slot arithmetic and the
// settlement guarantees.
func RunEntityStoreContract(t *testing.T, store EntityStore) {
	ctx := context.Background()

	actor := &domain.Actor{
		ID:           1001,
		FirstName:    "Ada",
		LastName:     "Tan",
		Mobile:       "91234567",
		Postal:       "123456",
		Role:         domain.RoleStandard,
		RegisteredAt: time.Now(),
	}
	require.NoError(t, store.CreateActor(ctx, actor))

	t.Run("duplicate actor conflicts", func(t *testing.T) {
		err := store.CreateActor(ctx, actor)
		assert.ErrorIs(t, err, domain.ErrStateConflict)
	})

	t.Run("unknown actor not found", func(t *testing.T) {
		_, err := store.Actor(ctx, 424242)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	listing := &domain.Listing{
		ChatID:    -500,
		CreatedBy: 1001,
		Title:     "Leadership Camp",
		School:    "Harbour Secondary",
		Date:      time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		Hours:     3.5,
		Level:     "S3",
		Slots:     2,
		SlotsLeft: 2,
		Status:    domain.ListingOpen,
	}
	listingID, err := store.CreateListing(ctx, listing)
	require.NoError(t, err)
	require.NotZero(t, listingID)

	t.Run("slot adjust stays within bounds", func(t *testing.T) {
		left, err := store.AdjustListingSlots(ctx, listingID, -2)
		require.NoError(t, err)
		assert.Equal(t, 0, left)

		_, err = store.AdjustListingSlots(ctx, listingID, -1)
		assert.ErrorIs(t, err, domain.ErrNoCapacity)

		// Release is capped at the original count.
		left, err = store.AdjustListingSlots(ctx, listingID, 5)
		require.NoError(t, err)
		assert.Equal(t, 2, left)
	})

	t.Run("listing window query", func(t *testing.T) {
		from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 0, 7)
		open, err := store.OpenListings(ctx, from, to)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, listingID, open[0].ID)
	})

	app := &domain.Application{
		ActorID:   1001,
		ListingID: listingID,
		ChatID:    -500,
		FirstName: "Ada",
		LastName:  "Tan",
		Title:     "Leadership Camp",
		Hours:     3.5,
		Status:    domain.AppPending,
		AppliedAt: time.Now(),
	}
	appID, err := store.CreateApplication(ctx, app)
	require.NoError(t, err)

	t.Run("active application lookup", func(t *testing.T) {
		got, err := store.ActiveApplication(ctx, 1001, listingID)
		require.NoError(t, err)
		assert.Equal(t, appID, got.ID)

		_, err = store.ActiveApplication(ctx, 9999, listingID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("conditional transition", func(t *testing.T) {
		ok, err := store.TransitionApplication(ctx, appID, domain.AppPending, domain.AppAccepted)
		require.NoError(t, err)
		assert.True(t, ok)

		// Stale transition is skipped, not errored.
		ok, err = store.TransitionApplication(ctx, appID, domain.AppPending, domain.AppAccepted)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("settlement credits once and closes", func(t *testing.T) {
		settlement, err := store.SettleListing(ctx, listingID)
		require.NoError(t, err)
		assert.Equal(t, []int64{1001}, settlement.Credited)
		assert.InDelta(t, 3.5, settlement.Hours, 1e-9)

		credited, err := store.Actor(ctx, 1001)
		require.NoError(t, err)
		assert.InDelta(t, 3.5, credited.CreditHours, 1e-9)

		closed, err := store.Listing(ctx, listingID)
		require.NoError(t, err)
		assert.Equal(t, domain.ListingClosed, closed.Status)

		_, err = store.SettleListing(ctx, listingID)
		assert.ErrorIs(t, err, domain.ErrListingClosed)
	})
}
