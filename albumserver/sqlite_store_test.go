// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumserver

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alejan28/albumsync/albumsync"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "albums.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteCreateAssignsIdentifierAndDate(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, albumsync.Album{Title: "Autobahn", Artist: "Kraftwerk", NoTracks: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Date.IsZero())

	items, hasMore, err := store.List(ctx, 1, 10, "", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, hasMore)
	assert.Equal(t, created.ID, items[0].ID)
	assert.Equal(t, "Autobahn", items[0].Title)
	assert.Equal(t, 5, items[0].NoTracks)
}

func TestSQLiteListNewestFirstWithPagination(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Create(ctx, albumsync.Album{Title: fmt.Sprintf("t%d", i), Artist: "a"})
		require.NoError(t, err)
	}

	page1, hasMore, err := store.List(ctx, 1, 2, "", "")
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.True(t, hasMore)
	assert.Equal(t, "t4", page1[0].Title, "newest insert comes first")
	assert.Equal(t, "t3", page1[1].Title)

	page3, hasMore, err := store.List(ctx, 3, 2, "", "")
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.False(t, hasMore)
	assert.Equal(t, "t0", page3[0].Title)
}

func TestSQLiteListFilters(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, albumsync.Album{Title: "Autobahn", Artist: "Kraftwerk"})
	require.NoError(t, err)
	_, err = store.Create(ctx, albumsync.Album{Title: "Computer World", Artist: "Kraftwerk"})
	require.NoError(t, err)
	_, err = store.Create(ctx, albumsync.Album{Title: "Low", Artist: "Bowie"})
	require.NoError(t, err)

	byArtist, _, err := store.List(ctx, 1, 10, "Kraftwerk", "")
	require.NoError(t, err)
	assert.Len(t, byArtist, 2)

	byTitle, _, err := store.List(ctx, 1, 10, "", "uter")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "Computer World", byTitle[0].Title)

	both, _, err := store.List(ctx, 1, 10, "Bowie", "Low")
	require.NoError(t, err)
	assert.Len(t, both, 1)
}

func TestSQLiteUpdateAndNotFound(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, albumsync.Album{Title: "a", Artist: "x"})
	require.NoError(t, err)

	created.Title = "a2"
	updated, err := store.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "a2", updated.Title)

	items, _, err := store.List(ctx, 1, 10, "", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a2", items[0].Title)

	_, err = store.Update(ctx, albumsync.Album{ID: "missing", Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteDelete(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, albumsync.Album{Title: "a", Artist: "x"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))
	items, _, err := store.List(ctx, 1, 10, "", "")
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, store.Delete(ctx, created.ID), ErrNotFound)
}

func TestSQLiteArtistsDistinctSorted(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	for _, artist := range []string{"Kraftwerk", "Bowie", "Kraftwerk"} {
		_, err := store.Create(ctx, albumsync.Album{Title: "t", Artist: artist})
		require.NoError(t, err)
	}

	artists, err := store.Artists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bowie", "Kraftwerk"}, artists)
}

func TestSQLiteOptionalColumnsRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	release := time.Date(1974, 11, 1, 0, 0, 0, 0, time.UTC)
	created, err := store.Create(ctx, albumsync.Album{
		Title:       "Autobahn",
		Artist:      "Kraftwerk",
		ReleaseDate: &release,
		Location:    &albumsync.LatLng{Lat: 50.94, Lng: 6.96},
		Photo:       &albumsync.Photo{Filepath: "cover.jpg", WebviewPath: "data:image/jpeg;base64,xx"},
	})
	require.NoError(t, err)

	items, _, err := store.List(ctx, 1, 10, "", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	got := items[0]
	require.NotNil(t, got.ReleaseDate)
	assert.True(t, got.ReleaseDate.Equal(release))
	require.NotNil(t, got.Location)
	assert.InDelta(t, 50.94, got.Location.Lat, 1e-9)
	require.NotNil(t, got.Photo)
	assert.Equal(t, "cover.jpg", got.Photo.Filepath)
	assert.Equal(t, created.ID, got.ID)
}
