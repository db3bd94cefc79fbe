package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavebot/internal/testutil"
)

func TestRegistryAddAndList(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(testutil.NewFakeKV())

	require.NoError(t, reg.Add(ctx, "@first"))
	require.NoError(t, reg.Add(ctx, "@second"))

	list, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"@first", "@second"}, list)
}

func TestRegistryAddDuplicate(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(testutil.NewFakeKV())

	require.NoError(t, reg.Add(ctx, "@news"))
	err := reg.Add(ctx, "@news")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	list, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1, "duplicate add must not grow the registry")
}

func TestRegistryAddInvalidHandle(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(testutil.NewFakeKV())

	for _, handle := range []string{"news", "", "@", "news@channel"} {
		err := reg.Add(ctx, handle)
		assert.ErrorIs(t, err, ErrInvalidHandle, "handle %q", handle)
	}

	list, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "rejected handles must not mutate the registry")
}

func TestRegistryRemove(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(testutil.NewFakeKV())

	require.NoError(t, reg.Add(ctx, "@a"))
	require.NoError(t, reg.Add(ctx, "@b"))
	require.NoError(t, reg.Add(ctx, "@c"))

	require.NoError(t, reg.Remove(ctx, "@b"))
	list, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"@a", "@c"}, list, "insertion order preserved after removal")

	err = reg.Remove(ctx, "@b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryListEmpty(t *testing.T) {
	reg := NewRegistry(testutil.NewFakeKV())
	list, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
