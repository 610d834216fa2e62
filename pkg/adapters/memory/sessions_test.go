package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haleybot/haley/pkg/adapters/memory"
	"github.com/haleybot/haley/pkg/domain"
	"github.com/haleybot/haley/pkg/ports"
)

func TestSessionStoreContract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewSessionStore())
}

func TestSessionStoreCopiesFields(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	s := domain.NewSession(1, 2, "register", "first_name")
	s.Fields["first_name"] = "Ada"
	require.NoError(t, store.Save(ctx, s))

	// Mutating the caller's copy must not leak into the store.
	s.Fields["first_name"] = "Mallory"

	loaded, err := store.Load(ctx, s.Key())
	require.NoError(t, err)
	assert.Equal(t, "Ada", loaded.String("first_name"))
}
