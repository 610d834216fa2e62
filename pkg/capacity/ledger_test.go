package capacity_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haleybot/haley/pkg/adapters/memory"
	"github.com/haleybot/haley/pkg/capacity"
	"github.com/haleybot/haley/pkg/domain"
)

func newLedger(t *testing.T, slots int) (*capacity.Ledger, *memory.Store, int64) {
	t.Helper()
	store := memory.NewStore()
	id, err := store.CreateListing(context.Background(), &domain.Listing{
		ChatID:    -1,
		Title:     "Camp",
		Slots:     slots,
		SlotsLeft: slots,
		Status:    domain.ListingOpen,
	})
	require.NoError(t, err)
	return capacity.NewLedger(store), store, id
}

func TestReserveNeverOversells(t *testing.T) {
	const slots = 5
	const contenders = 20

	ledger, store, id := newLedger(t, slots)
	ctx := context.Background()

	var won, lost atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := ledger.Reserve(ctx, id, 1); {
			case err == nil:
				won.Add(1)
			case err == domain.ErrNoCapacity:
				lost.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(slots), won.Load())
	assert.Equal(t, int64(contenders-slots), lost.Load())

	listing, err := store.Listing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, listing.SlotsLeft)
}

func TestReleaseCappedAtOriginal(t *testing.T) {
	ledger, store, id := newLedger(t, 3)
	ctx := context.Background()

	require.NoError(t, ledger.Reserve(ctx, id, 2))
	require.NoError(t, ledger.Release(ctx, id, 5))

	listing, err := store.Listing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, listing.SlotsLeft)
}

func TestReserveRejectsNonPositive(t *testing.T) {
	ledger, _, id := newLedger(t, 3)
	assert.Error(t, ledger.Reserve(context.Background(), id, 0))
	assert.Error(t, ledger.Release(context.Background(), id, -1))
}

func TestRemaining(t *testing.T) {
	ledger, store, id := newLedger(t, 3)
	ctx := context.Background()

	left, err := ledger.Remaining(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, left)

	_, err = store.SettleListing(ctx, id)
	require.NoError(t, err)

	_, err = ledger.Remaining(ctx, id)
	assert.ErrorIs(t, err, domain.ErrListingClosed)
}
