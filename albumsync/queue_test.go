// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumsync

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alejan28/albumsync/prefs"
)

func newTestQueue(t *testing.T) (*Queue, *prefs.Store) {
	t.Helper()
	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewQueue(store, logger), store
}

func TestEnqueueUpsertOverwritesByID(t *testing.T) {
	queue, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.EnqueueUpsert(ctx, Album{ID: "temp-1", Title: "first"}))
	require.NoError(t, queue.EnqueueUpsert(ctx, Album{ID: "2", Title: "other"}))
	require.NoError(t, queue.EnqueueUpsert(ctx, Album{ID: "temp-1", Title: "second"}))

	pending, err := queue.PendingUpserts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// The superseded entry is gone; the rewrite moved to the back.
	assert.Equal(t, "2", pending[0].ID)
	assert.Equal(t, "temp-1", pending[1].ID)
	assert.Equal(t, "second", pending[1].Title)
}

func TestEnqueueUpsertCachesItem(t *testing.T) {
	queue, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.EnqueueUpsert(ctx, Album{ID: "temp-1", Title: "draft"}))

	cached, err := queue.CachedItem(ctx, "temp-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "draft", cached.Title)
}

func TestEnqueueDeletePurgesMatchingUpsert(t *testing.T) {
	queue, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.EnqueueUpsert(ctx, Album{ID: "42", Title: "edited"}))
	require.NoError(t, queue.EnqueueDelete(ctx, "42"))

	pending, err := queue.PendingUpserts(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "queued edit must not survive a queued delete")

	deletes, err := queue.PendingDeletes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, deletes)

	cached, err := queue.CachedItem(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestEnqueueDeleteOfTempRecordQueuesNothing(t *testing.T) {
	queue, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.EnqueueUpsert(ctx, Album{ID: "temp-9", Title: "draft"}))
	require.NoError(t, queue.EnqueueDelete(ctx, "temp-9"))

	pending, err := queue.PendingUpserts(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// The server never saw temp-9; there is nothing to delete remotely.
	deletes, err := queue.PendingDeletes(ctx)
	require.NoError(t, err)
	assert.Empty(t, deletes)
}

func TestReplaceClearsKeyWhenEmpty(t *testing.T) {
	queue, store := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.EnqueueUpsert(ctx, Album{ID: "temp-1"}))
	require.NoError(t, queue.EnqueueDelete(ctx, "42"))

	require.NoError(t, queue.ReplaceUpserts(ctx, nil))
	require.NoError(t, queue.ReplaceDeletes(ctx, nil))

	_, ok, err := store.Get(ctx, "pendingUpdates")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Get(ctx, "pendingDeletes")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnparsableQueueIsTreatedAsEmpty(t *testing.T) {
	queue, store := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "pendingUpdates", "{not json"))
	require.NoError(t, store.Set(ctx, "pendingDeletes", "also not json"))

	pending, err := queue.PendingUpserts(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	deletes, err := queue.PendingDeletes(ctx)
	require.NoError(t, err)
	assert.Empty(t, deletes)

	// Enqueueing over a corrupt queue starts fresh instead of crashing.
	require.NoError(t, queue.EnqueueUpsert(ctx, Album{ID: "temp-1"}))
	pending, err = queue.PendingUpserts(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestOfflineCaches(t *testing.T) {
	queue, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.CacheAlbums(ctx, []Album{{ID: "1"}, {ID: "2"}}))
	albums, err := queue.CachedAlbums(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, albumIDs(albums))

	require.NoError(t, queue.CacheArtists(ctx, []string{"Kraftwerk"}))
	artists, err := queue.CachedArtists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kraftwerk"}, artists)
}
