// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumsync

import (
	"slices"
	"sync"
)

// State is the authoritative in-memory projection of records visible to
// collaborators, plus the busy flags and last errors per operation class.
type State struct {
	Items []Album

	Fetching      bool
	FetchingError error

	Saving      bool
	SavingError error

	Deleting      bool
	DeletingError error

	Page    int
	HasMore bool

	Artists              []string
	FetchingArtists      bool
	FetchingArtistsError error
}

// Action is a state transition applied through Store.Dispatch. Each
// reduction is atomic with respect to observers; no intermediate state
// is ever visible.
type Action interface{ isAction() }

// FetchStarted marks a page fetch in flight and clears the fetch error.
type FetchStarted struct{}

// FetchSucceeded replaces Items when Page is 1 and appends otherwise
// (pagination accumulation).
type FetchSucceeded struct {
	Items   []Album
	Page    int
	HasMore bool
}

// FetchFailed records the fetch error.
type FetchFailed struct{ Err error }

// SaveStarted marks a remote save in flight.
type SaveStarted struct{}

// SaveSucceeded upserts by identifier: prepend when absent, replace in
// place when present. This is the single path used for a caller's own
// successful save, for reconciled queue entries and for live pushes;
// all three mean "the server now has this version".
type SaveSucceeded struct{ Item Album }

// SaveFailed records the save error.
type SaveFailed struct{ Err error }

// DeleteStarted marks a remote delete in flight.
type DeleteStarted struct{}

// DeleteSucceeded removes the record with the given identifier.
type DeleteSucceeded struct{ ID string }

// DeleteFailed records the delete error.
type DeleteFailed struct{ Err error }

// ArtistsFetchStarted marks the distinct-artist fetch in flight.
type ArtistsFetchStarted struct{}

// ArtistsFetchSucceeded replaces the artist list.
type ArtistsFetchSucceeded struct{ Artists []string }

// ArtistsFetchFailed records the artist fetch error.
type ArtistsFetchFailed struct{ Err error }

// UpdateLocally is the offline-optimistic path: a tombstoned item is
// removed outright, anything else is upserted exactly as SaveSucceeded.
type UpdateLocally struct{ Item Album }

func (FetchStarted) isAction()          {}
func (FetchSucceeded) isAction()        {}
func (FetchFailed) isAction()           {}
func (SaveStarted) isAction()           {}
func (SaveSucceeded) isAction()         {}
func (SaveFailed) isAction()            {}
func (DeleteStarted) isAction()         {}
func (DeleteSucceeded) isAction()       {}
func (DeleteFailed) isAction()          {}
func (ArtistsFetchStarted) isAction()   {}
func (ArtistsFetchSucceeded) isAction() {}
func (ArtistsFetchFailed) isAction()    {}
func (UpdateLocally) isAction()         {}

// reduce maps (current state, action) to the next state. It never
// mutates its input; slices are copied on write.
func reduce(s State, action Action) State {
	switch a := action.(type) {
	case FetchStarted:
		s.Fetching = true
		s.FetchingError = nil
	case FetchSucceeded:
		if a.Page <= 1 {
			s.Items = slices.Clone(a.Items)
		} else {
			s.Items = append(slices.Clone(s.Items), a.Items...)
		}
		s.Page = a.Page
		s.HasMore = a.HasMore
		s.Fetching = false
	case FetchFailed:
		s.FetchingError = a.Err
		s.Fetching = false
	case SaveStarted:
		s.Saving = true
		s.SavingError = nil
	case SaveSucceeded:
		s.Items = upsertItem(s.Items, a.Item)
		s.Saving = false
	case SaveFailed:
		s.SavingError = a.Err
		s.Saving = false
	case DeleteStarted:
		s.Deleting = true
		s.DeletingError = nil
	case DeleteSucceeded:
		s.Items = removeItem(s.Items, a.ID)
		s.Deleting = false
	case DeleteFailed:
		s.DeletingError = a.Err
		s.Deleting = false
	case ArtistsFetchStarted:
		s.FetchingArtists = true
		s.FetchingArtistsError = nil
	case ArtistsFetchSucceeded:
		s.Artists = slices.Clone(a.Artists)
		s.FetchingArtists = false
	case ArtistsFetchFailed:
		s.FetchingArtistsError = a.Err
		s.FetchingArtists = false
	case UpdateLocally:
		if a.Item.Deleted {
			s.Items = removeItem(s.Items, a.Item.ID)
		} else {
			s.Items = upsertItem(s.Items, a.Item)
		}
	}
	return s
}

// upsertItem replaces the record with a matching identifier in place,
// preserving list position, or prepends when no match exists.
func upsertItem(items []Album, item Album) []Album {
	for i := range items {
		if items[i].ID == item.ID {
			out := slices.Clone(items)
			out[i] = item
			return out
		}
	}
	out := make([]Album, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}

func removeItem(items []Album, id string) []Album {
	out := make([]Album, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

// Store serializes reductions over State and notifies subscribers after
// each transition with an immutable snapshot.
type Store struct {
	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewStore returns a store holding the initial state.
func NewStore() *Store {
	return &Store{
		state: State{Page: 1, HasMore: true},
		subs:  make(map[int]func(State)),
	}
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Dispatch applies one reduction and notifies subscribers. Subscriber
// callbacks run outside the store lock and must not re-enter Dispatch
// synchronously if they need ordered notifications.
func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	s.state = reduce(s.state, action)
	snap := s.snapshotLocked()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Subscribe registers fn to observe every state transition. The returned
// cancel function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotLocked() State {
	snap := s.state
	snap.Items = slices.Clone(s.state.Items)
	snap.Artists = slices.Clone(s.state.Artists)
	return snap
}
