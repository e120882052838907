// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumsync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func albumIDs(items []Album) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func TestFetchReplacesPageOneAndAppendsLater(t *testing.T) {
	store := NewStore()

	store.Dispatch(FetchStarted{})
	assert.True(t, store.State().Fetching)

	store.Dispatch(FetchSucceeded{
		Items:   []Album{{ID: "1"}, {ID: "2"}},
		Page:    1,
		HasMore: true,
	})
	state := store.State()
	assert.False(t, state.Fetching)
	assert.Equal(t, []string{"1", "2"}, albumIDs(state.Items))
	assert.Equal(t, 1, state.Page)
	assert.True(t, state.HasMore)

	// Page 2 accumulates.
	store.Dispatch(FetchSucceeded{Items: []Album{{ID: "3"}}, Page: 2})
	state = store.State()
	assert.Equal(t, []string{"1", "2", "3"}, albumIDs(state.Items))
	assert.Equal(t, 2, state.Page)
	assert.False(t, state.HasMore)

	// A page 1 refetch replaces everything.
	store.Dispatch(FetchSucceeded{Items: []Album{{ID: "9"}}, Page: 1})
	assert.Equal(t, []string{"9"}, albumIDs(store.State().Items))
}

func TestFetchFailedRecordsError(t *testing.T) {
	store := NewStore()
	fetchErr := errors.New("boom")

	store.Dispatch(FetchStarted{})
	store.Dispatch(FetchFailed{Err: fetchErr})

	state := store.State()
	assert.False(t, state.Fetching)
	assert.Equal(t, fetchErr, state.FetchingError)

	// The next fetch clears the error.
	store.Dispatch(FetchStarted{})
	assert.Nil(t, store.State().FetchingError)
}

func TestSaveSucceededPrependsUnknownAndReplacesInPlace(t *testing.T) {
	store := NewStore()
	store.Dispatch(FetchSucceeded{Items: []Album{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}}, Page: 1})

	// Unknown identifier is prepended.
	store.Dispatch(SaveSucceeded{Item: Album{ID: "3", Title: "c"}})
	assert.Equal(t, []string{"3", "1", "2"}, albumIDs(store.State().Items))

	// Known identifier is replaced in place, preserving position.
	store.Dispatch(SaveSucceeded{Item: Album{ID: "1", Title: "a2"}})
	state := store.State()
	assert.Equal(t, []string{"3", "1", "2"}, albumIDs(state.Items))
	assert.Equal(t, "a2", state.Items[1].Title)
}

func TestDeleteLifecycle(t *testing.T) {
	store := NewStore()
	store.Dispatch(FetchSucceeded{Items: []Album{{ID: "1"}, {ID: "2"}}, Page: 1})

	store.Dispatch(DeleteStarted{})
	assert.True(t, store.State().Deleting)

	store.Dispatch(DeleteSucceeded{ID: "1"})
	state := store.State()
	assert.False(t, state.Deleting)
	assert.Equal(t, []string{"2"}, albumIDs(state.Items))

	deleteErr := errors.New("boom")
	store.Dispatch(DeleteStarted{})
	store.Dispatch(DeleteFailed{Err: deleteErr})
	state = store.State()
	assert.False(t, state.Deleting)
	assert.Equal(t, deleteErr, state.DeletingError)
}

func TestUpdateLocallyTombstoneRemovesOutright(t *testing.T) {
	store := NewStore()
	store.Dispatch(FetchSucceeded{Items: []Album{{ID: "1"}, {ID: "2"}}, Page: 1})

	store.Dispatch(UpdateLocally{Item: Album{ID: "1", Deleted: true}})
	assert.Equal(t, []string{"2"}, albumIDs(store.State().Items))

	// Non-tombstone upserts exactly like SaveSucceeded.
	store.Dispatch(UpdateLocally{Item: Album{ID: "temp-7", Title: "draft"}})
	assert.Equal(t, []string{"temp-7", "2"}, albumIDs(store.State().Items))
	store.Dispatch(UpdateLocally{Item: Album{ID: "2", Title: "edited"}})
	assert.Equal(t, "edited", store.State().Items[1].Title)
}

func TestArtistsLifecycle(t *testing.T) {
	store := NewStore()

	store.Dispatch(ArtistsFetchStarted{})
	assert.True(t, store.State().FetchingArtists)

	store.Dispatch(ArtistsFetchSucceeded{Artists: []string{"Kraftwerk", "Nina Simone"}})
	state := store.State()
	assert.False(t, state.FetchingArtists)
	assert.Equal(t, []string{"Kraftwerk", "Nina Simone"}, state.Artists)
}

func TestSubscribersObserveEveryTransition(t *testing.T) {
	store := NewStore()

	var seen []int
	cancel := store.Subscribe(func(s State) {
		seen = append(seen, len(s.Items))
	})

	store.Dispatch(SaveSucceeded{Item: Album{ID: "1"}})
	store.Dispatch(SaveSucceeded{Item: Album{ID: "2"}})
	require.Equal(t, []int{1, 2}, seen)

	cancel()
	store.Dispatch(SaveSucceeded{Item: Album{ID: "3"}})
	assert.Equal(t, []int{1, 2}, seen)
}

func TestSnapshotsAreImmutable(t *testing.T) {
	store := NewStore()
	store.Dispatch(FetchSucceeded{Items: []Album{{ID: "1", Title: "a"}}, Page: 1})

	snap := store.State()
	snap.Items[0].Title = "mutated"

	assert.Equal(t, "a", store.State().Items[0].Title)
}
