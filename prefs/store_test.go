// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package prefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRemove(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "greeting", "hello"))
	value, ok, err := store.Get(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", value)

	// Overwrite replaces in place.
	require.NoError(t, store.Set(ctx, "greeting", "goodbye"))
	value, _, err = store.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "goodbye", value)

	require.NoError(t, store.Remove(ctx, "greeting"))
	_, ok, err = store.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing an absent key is fine.
	require.NoError(t, store.Remove(ctx, "greeting"))
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "pendingUpdates", `[{"_id":"temp-1"}]`))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get(ctx, "pendingUpdates")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"_id":"temp-1"}]`, value)
}

func TestKeysByPrefix(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "item_1", "a"))
	require.NoError(t, store.Set(ctx, "item_2", "b"))
	require.NoError(t, store.Set(ctx, "albums", "c"))

	keys, err := store.Keys(ctx, "item_")
	require.NoError(t, err)
	assert.Equal(t, []string{"item_1", "item_2"}, keys)
}
