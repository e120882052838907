// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumsync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds configuration for the sync engine.
type Config struct {
	// BaseURL of the remote record service, e.g. "http://localhost:8080".
	BaseURL string
	// LiveReconnect enables bounded exponential-backoff reconnection of
	// the live update channel after a transport-level drop. When false
	// (the default) a dropped channel stays down until the next token
	// change; the reconciler remains the correctness backstop either way.
	LiveReconnect bool
	// BackoffMin and BackoffMax bound the live channel redial backoff.
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// DefaultConfig returns the default engine configuration for baseURL.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:    baseURL,
		BackoffMin: 1 * time.Second,
		BackoffMax: 60 * time.Second,
	}
}

// Engine composes the record state store, the pending mutation queue,
// the reconciler and the live update channel behind the narrow contract
// collaborators call into.
//
// The store applies one reduction at a time; network calls never hold
// engine locks while in flight, and their completions are discarded
// once the engine is closed.
type Engine struct {
	api    *API
	store  *Store
	queue  *Queue
	net    Monitor
	cfg    *Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	// queueMu serializes the durable queue's read-modify-write cycles.
	queueMu sync.Mutex

	syncRunning atomic.Bool
	syncAgain   atomic.Bool

	liveMu     sync.Mutex
	liveToken  string
	liveGen    int
	liveCancel context.CancelFunc
	liveDone   chan struct{}

	netCancel func()
}

// New creates an engine over the given remote client, durable queue and
// connectivity monitor, and subscribes to connectivity transitions: a
// disconnected-to-connected transition triggers reconciliation. A nil
// logger falls back to slog.Default().
func New(api *API, queue *Queue, net Monitor, cfg *Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig(api.BaseURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		api:    api,
		store:  NewStore(),
		queue:  queue,
		net:    net,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	e.netCancel = net.Subscribe(func(connected bool) {
		if !connected || e.closed.Load() {
			return
		}
		go func() {
			if err := e.Reconcile(e.ctx); err != nil {
				e.logger.Warn("reconciliation failed", "error", err)
			}
		}()
	})
	return e
}

// Store returns the record state store for direct subscription.
func (e *Engine) Store() *Store { return e.store }

// State returns a snapshot of the current record state.
func (e *Engine) State() State { return e.store.State() }

// Subscribe registers fn to observe every state transition.
func (e *Engine) Subscribe(fn func(State)) (cancel func()) {
	return e.store.Subscribe(fn)
}

// FetchPage loads one page of records from the remote service, replacing
// the projection for page 1 and appending otherwise. When disconnected
// it falls back to the offline cache via LoadOffline.
func (e *Engine) FetchPage(ctx context.Context, page, limit int, artist, title string) error {
	if !e.net.Connected() {
		return e.LoadOffline(ctx)
	}

	e.store.Dispatch(FetchStarted{})
	result, err := e.api.List(ctx, page, limit, artist, title)
	if e.closed.Load() {
		return nil
	}
	if err != nil {
		e.store.Dispatch(FetchFailed{Err: err})
		return err
	}
	e.store.Dispatch(FetchSucceeded{Items: result.Items, Page: page, HasMore: result.HasMore})

	// Page 1 is the full freshest view; keep the offline cache warm.
	if page <= 1 {
		if err := e.queue.CacheAlbums(ctx, result.Items); err != nil {
			e.logger.Warn("failed to refresh offline album cache", "error", err)
		}
	}
	return nil
}

// FetchArtists loads the distinct artist list, from the remote service
// when connected and from the offline cache otherwise.
func (e *Engine) FetchArtists(ctx context.Context) error {
	if !e.net.Connected() {
		artists, err := e.queue.CachedArtists(ctx)
		if err != nil {
			return err
		}
		e.store.Dispatch(ArtistsFetchSucceeded{Artists: artists})
		return nil
	}

	e.store.Dispatch(ArtistsFetchStarted{})
	artists, err := e.api.Artists(ctx)
	if e.closed.Load() {
		return nil
	}
	if err != nil {
		e.store.Dispatch(ArtistsFetchFailed{Err: err})
		return err
	}
	e.store.Dispatch(ArtistsFetchSucceeded{Artists: artists})
	if err := e.queue.CacheArtists(ctx, artists); err != nil {
		e.logger.Warn("failed to refresh offline artist cache", "error", err)
	}
	return nil
}

// SaveAlbum persists a record. Connected: create or update remotely by
// identifier presence, with the saving flag held for the duration of the
// call and released on every exit path. Disconnected, or when the remote
// service is unreachable: assign a temp identifier if absent, upsert
// optimistically and enqueue for reconciliation.
func (e *Engine) SaveAlbum(ctx context.Context, album Album) error {
	if !e.net.Connected() {
		return e.saveOffline(ctx, album)
	}

	e.store.Dispatch(SaveStarted{})
	var saved *Album
	var err error
	if album.ID == "" {
		saved, err = e.api.Create(ctx, album)
	} else {
		saved, err = e.api.Update(ctx, album)
	}
	if e.closed.Load() {
		return nil
	}
	if err != nil {
		if IsUnreachable(err) {
			e.store.Dispatch(SaveFailed{})
			e.logger.Warn("remote save unreachable, keeping record locally", "id", album.ID, "error", err)
			return e.saveOffline(ctx, album)
		}
		// The server was reached and rejected the request; queueing it
		// would replay the same rejection forever, so surface it.
		e.store.Dispatch(SaveFailed{Err: err})
		return err
	}
	e.store.Dispatch(SaveSucceeded{Item: *saved})
	return nil
}

func (e *Engine) saveOffline(ctx context.Context, album Album) error {
	if album.ID == "" {
		album.ID = NewTempID()
	}
	e.store.Dispatch(UpdateLocally{Item: album})

	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	if err := e.queue.EnqueueUpsert(ctx, album); err != nil {
		e.store.Dispatch(SaveFailed{Err: err})
		return err
	}
	e.logger.Info("album saved locally, will sync when online", "id", album.ID)
	return nil
}

// DeleteAlbum removes a record. Connected: delete remotely with the
// deleting flag held and released on every exit path. Disconnected or
// unreachable: tombstone the record out of the projection and enqueue
// the deletion.
func (e *Engine) DeleteAlbum(ctx context.Context, id string) error {
	if !e.net.Connected() {
		return e.deleteOffline(ctx, id)
	}

	e.store.Dispatch(DeleteStarted{})
	err := e.api.Delete(ctx, id)
	if e.closed.Load() {
		return nil
	}
	if err != nil {
		if IsUnreachable(err) {
			e.store.Dispatch(DeleteFailed{})
			e.logger.Warn("remote delete unreachable, queueing locally", "id", id, "error", err)
			return e.deleteOffline(ctx, id)
		}
		e.store.Dispatch(DeleteFailed{Err: err})
		return err
	}
	e.store.Dispatch(DeleteSucceeded{ID: id})
	if err := e.queue.RemoveItem(ctx, id); err != nil {
		e.logger.Warn("failed to drop cached record", "id", id, "error", err)
	}
	return nil
}

func (e *Engine) deleteOffline(ctx context.Context, id string) error {
	e.store.Dispatch(UpdateLocally{Item: Album{ID: id, Deleted: true}})

	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	if err := e.queue.EnqueueDelete(ctx, id); err != nil {
		e.store.Dispatch(DeleteFailed{Err: err})
		return err
	}
	e.logger.Info("album deletion stored locally, will sync when online", "id", id)
	return nil
}

// UpdateLocally applies a trusted record copy directly to the store,
// bypassing the network: tombstoned records are removed, anything else
// is upserted. Non-tombstone records are also cached under their
// item-scoped key for offline reload.
func (e *Engine) UpdateLocally(album Album) {
	e.store.Dispatch(UpdateLocally{Item: album})
	if !album.Deleted && album.ID != "" {
		if err := e.queue.CacheItem(e.ctx, album); err != nil {
			e.logger.Warn("failed to cache record", "id", album.ID, "error", err)
		}
	}
}

// LoadItem returns the record with the given identifier from the current
// projection, falling back to the item-scoped offline cache when it is
// not materialized.
func (e *Engine) LoadItem(ctx context.Context, id string) (*Album, error) {
	for _, it := range e.store.State().Items {
		if it.ID == id {
			return &it, nil
		}
	}
	return e.queue.CachedItem(ctx, id)
}

// LoadOffline hydrates the projection from the offline caches: records
// known only to the pending queue first, then cached records with local
// queued edits applied in place. Records with a queued deletion are
// hidden.
func (e *Engine) LoadOffline(ctx context.Context) error {
	albums, err := e.queue.CachedAlbums(ctx)
	if err != nil {
		return err
	}
	pending, err := e.queue.PendingUpserts(ctx)
	if err != nil {
		return err
	}
	deletes, err := e.queue.PendingDeletes(ctx)
	if err != nil {
		return err
	}

	deleted := make(map[string]bool, len(deletes))
	for _, id := range deletes {
		deleted[id] = true
	}
	edits := make(map[string]Album, len(pending))
	for _, it := range pending {
		edits[it.ID] = it
	}

	merged := make([]Album, 0, len(albums)+len(pending))
	known := make(map[string]bool, len(albums))
	for _, a := range albums {
		known[a.ID] = true
	}
	for _, it := range pending {
		if !known[it.ID] && !deleted[it.ID] {
			merged = append(merged, it)
		}
	}
	for _, a := range albums {
		if deleted[a.ID] {
			continue
		}
		if edit, ok := edits[a.ID]; ok {
			merged = append(merged, edit)
		} else {
			merged = append(merged, a)
		}
	}

	e.store.Dispatch(FetchSucceeded{Items: merged, Page: 1, HasMore: false})

	artists, err := e.queue.CachedArtists(ctx)
	if err != nil {
		return err
	}
	if len(artists) > 0 {
		e.store.Dispatch(ArtistsFetchSucceeded{Artists: artists})
	}
	return nil
}

// Close tears down the live channel, unsubscribes from connectivity and
// cancels all background work. In-flight completions observed after
// Close are discarded.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if e.netCancel != nil {
		e.netCancel()
	}
	e.liveMu.Lock()
	e.liveToken = ""
	e.liveGen++
	e.teardownLiveLocked()
	e.liveMu.Unlock()
	e.cancel()
	return nil
}
