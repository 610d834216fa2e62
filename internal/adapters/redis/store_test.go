package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "github.com/haleybot/haley/internal/adapters/redis"
	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/ports"
)

func newTestStore(t *testing.T) *redisadapter.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisadapter.NewFromClient(client)
}

func TestEntityStoreContract(t *testing.T) {
	ports.RunEntityStoreContract(t, newTestStore(t))
}

func TestListingByChatReturnsMostRecent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := &domain.Listing{ChatID: -9, Title: "First", Status: domain.ListingOpen, Slots: 1, SlotsLeft: 1}
	_, err := store.CreateListing(ctx, first)
	require.NoError(t, err)

	second := &domain.Listing{ChatID: -9, Title: "Second", Status: domain.ListingOpen, Slots: 1, SlotsLeft: 1}
	secondID, err := store.CreateListing(ctx, second)
	require.NoError(t, err)

	got, err := store.ListingByChat(ctx, -9)
	require.NoError(t, err)
	assert.Equal(t, secondID, got.ID)
	assert.Equal(t, "Second", got.Title)
}

func TestTransitionUnknownApplication(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.TransitionApplication(ctx, 12345, domain.AppPending, domain.AppAccepted)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
