// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumsync

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Alejan28/albumsync/prefs"
)

// Durable store keys. The queues are the only durable record of offline
// intent; losing the store loses unsynced work.
const (
	keyPendingUpdates = "pendingUpdates"
	keyPendingDeletes = "pendingDeletes"
	keyAlbums         = "albums"
	keyArtists        = "artists"
	itemKeyPrefix     = "item_"
)

func itemKey(id string) string { return itemKeyPrefix + id }

// Queue is the durable, ordered-by-arrival log of create/update
// operations performed while disconnected, plus the independent set of
// queued deletions and the offline caches.
type Queue struct {
	prefs  *prefs.Store
	logger *slog.Logger
}

// NewQueue creates a queue over the given durable store. A nil logger
// falls back to slog.Default().
func NewQueue(p *prefs.Store, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{prefs: p, logger: logger}
}

// EnqueueUpsert records an offline create/update. A later entry for the
// same identifier supersedes an earlier one by overwrite, not append, so
// the queue holds at most one entry per identifier. The record is also
// cached under its item-scoped key for direct offline lookup.
func (q *Queue) EnqueueUpsert(ctx context.Context, album Album) error {
	pending, err := q.PendingUpserts(ctx)
	if err != nil {
		return err
	}

	out := make([]Album, 0, len(pending)+1)
	for _, it := range pending {
		if it.ID != album.ID {
			out = append(out, it)
		}
	}
	out = append(out, album)

	if err := q.writeJSON(ctx, keyPendingUpdates, out); err != nil {
		return err
	}
	return q.CacheItem(ctx, album)
}

// EnqueueDelete records an offline deletion. Any queued upsert for the
// same identifier is purged first so a later reconciliation cannot
// resurrect a record the caller meant to delete. When the purged entry
// carried a temp identifier the server has never seen the record and
// nothing is queued at all.
func (q *Queue) EnqueueDelete(ctx context.Context, id string) error {
	pending, err := q.PendingUpserts(ctx)
	if err != nil {
		return err
	}
	kept := make([]Album, 0, len(pending))
	for _, it := range pending {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) != len(pending) {
		if err := q.ReplaceUpserts(ctx, kept); err != nil {
			return err
		}
	}
	if err := q.RemoveItem(ctx, id); err != nil {
		return err
	}

	if IsTempID(id) {
		q.logger.Debug("dropped offline-only record, nothing to delete remotely", "id", id)
		return nil
	}

	deletes, err := q.PendingDeletes(ctx)
	if err != nil {
		return err
	}
	return q.writeJSON(ctx, keyPendingDeletes, append(deletes, id))
}

// PendingUpserts returns the queued create/update entries in arrival
// order. An unparsable persisted queue is treated as empty.
func (q *Queue) PendingUpserts(ctx context.Context) ([]Album, error) {
	var pending []Album
	if err := q.readJSON(ctx, keyPendingUpdates, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// PendingDeletes returns the queued deletion identifiers.
func (q *Queue) PendingDeletes(ctx context.Context) ([]string, error) {
	var pending []string
	if err := q.readJSON(ctx, keyPendingDeletes, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// ReplaceUpserts persists the still-pending upsert list after a
// reconciliation pass, clearing the key when the list is empty.
func (q *Queue) ReplaceUpserts(ctx context.Context, pending []Album) error {
	if len(pending) == 0 {
		return q.prefs.Remove(ctx, keyPendingUpdates)
	}
	return q.writeJSON(ctx, keyPendingUpdates, pending)
}

// ReplaceDeletes persists the still-pending delete list, clearing the
// key when the list is empty.
func (q *Queue) ReplaceDeletes(ctx context.Context, pending []string) error {
	if len(pending) == 0 {
		return q.prefs.Remove(ctx, keyPendingDeletes)
	}
	return q.writeJSON(ctx, keyPendingDeletes, pending)
}

// CacheItem stores one record under its item-scoped key so a single
// record can be reloaded offline without materializing the full list.
func (q *Queue) CacheItem(ctx context.Context, album Album) error {
	return q.writeJSON(ctx, itemKey(album.ID), album)
}

// CachedItem loads one record from its item-scoped key. It returns nil
// when the key is absent or unparsable.
func (q *Queue) CachedItem(ctx context.Context, id string) (*Album, error) {
	var album Album
	value, ok, err := q.prefs.Get(ctx, itemKey(id))
	if err != nil || !ok {
		return nil, err
	}
	if err := json.Unmarshal([]byte(value), &album); err != nil {
		q.logger.Warn("discarding unparsable cached record", "id", id, "error", err)
		return nil, nil
	}
	return &album, nil
}

// RemoveItem drops the item-scoped cache key for id.
func (q *Queue) RemoveItem(ctx context.Context, id string) error {
	return q.prefs.Remove(ctx, itemKey(id))
}

// CacheAlbums replaces the full offline list cache.
func (q *Queue) CacheAlbums(ctx context.Context, albums []Album) error {
	return q.writeJSON(ctx, keyAlbums, albums)
}

// CachedAlbums loads the full offline list cache.
func (q *Queue) CachedAlbums(ctx context.Context) ([]Album, error) {
	var albums []Album
	if err := q.readJSON(ctx, keyAlbums, &albums); err != nil {
		return nil, err
	}
	return albums, nil
}

// CacheArtists replaces the offline artist list cache.
func (q *Queue) CacheArtists(ctx context.Context, artists []string) error {
	return q.writeJSON(ctx, keyArtists, artists)
}

// CachedArtists loads the offline artist list cache.
func (q *Queue) CachedArtists(ctx context.Context) ([]string, error) {
	var artists []string
	if err := q.readJSON(ctx, keyArtists, &artists); err != nil {
		return nil, err
	}
	return artists, nil
}

// readJSON decodes the value under key into out. A missing key leaves
// out untouched. Malformed persisted JSON is logged and treated as
// absent rather than crashing the engine.
func (q *Queue) readJSON(ctx context.Context, key string, out any) error {
	value, ok, err := q.prefs.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		q.logger.Warn("discarding unparsable persisted value", "key", key, "error", err)
	}
	return nil
}

func (q *Queue) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return q.prefs.Set(ctx, key, string(data))
}
