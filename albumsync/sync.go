// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumsync

import (
	"context"
	"errors"
	"net/http"
)

// Reconcile drains the pending mutation queue against the remote
// service. It is a no-op while disconnected. At most one pass runs at a
// time; a trigger arriving during an active pass is collapsed into a
// single follow-up pass once the current one finishes, so a
// connectivity-transition storm never overlaps passes.
//
// Queued upserts replay before queued deletes. A failing entry is
// retained for the next pass and never blocks the entries after it.
// Per-entry errors are logged, not returned; the returned error covers
// only queue persistence itself.
func (e *Engine) Reconcile(ctx context.Context) error {
	if !e.net.Connected() {
		return nil
	}
	if !e.syncRunning.CompareAndSwap(false, true) {
		e.syncAgain.Store(true)
		return nil
	}
	defer e.syncRunning.Store(false)

	for {
		if err := e.reconcileOnce(ctx); err != nil {
			return err
		}
		if !e.syncAgain.CompareAndSwap(true, false) {
			return nil
		}
		if !e.net.Connected() {
			return nil
		}
	}
}

func (e *Engine) reconcileOnce(ctx context.Context) error {
	// Holding queueMu for the pass keeps enqueues and the still-pending
	// replacement from interleaving. New offline work arriving mid-pass
	// waits; we are online, so the facade's mutating paths go remote.
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	pending, err := e.queue.PendingUpserts(ctx)
	if err != nil {
		return err
	}
	var stillPending []Album
	replayed := 0
	for _, item := range pending {
		if e.closed.Load() || ctx.Err() != nil {
			stillPending = append(stillPending, item)
			continue
		}
		saved, err := e.replayUpsert(ctx, item)
		if err != nil {
			e.logger.Warn("failed to replay queued change, keeping it pending",
				"id", item.ID, "error", err)
			stillPending = append(stillPending, item)
			continue
		}
		if IsTempID(item.ID) {
			// The server assigned a real identifier; retire the temp one
			// from the projection and the item cache before upserting the
			// confirmed record.
			e.store.Dispatch(UpdateLocally{Item: Album{ID: item.ID, Deleted: true}})
			if err := e.queue.RemoveItem(ctx, item.ID); err != nil {
				e.logger.Warn("failed to drop temp record cache", "id", item.ID, "error", err)
			}
		}
		e.store.Dispatch(SaveSucceeded{Item: *saved})
		if err := e.queue.CacheItem(ctx, *saved); err != nil {
			e.logger.Warn("failed to refresh record cache", "id", saved.ID, "error", err)
		}
		replayed++
	}
	if err := e.queue.ReplaceUpserts(ctx, stillPending); err != nil {
		return err
	}

	deletes, err := e.queue.PendingDeletes(ctx)
	if err != nil {
		return err
	}
	var stillDeletes []string
	dropped := 0
	for _, id := range deletes {
		if e.closed.Load() || ctx.Err() != nil {
			stillDeletes = append(stillDeletes, id)
			continue
		}
		if err := e.api.Delete(ctx, id); err != nil && !isGone(err) {
			e.logger.Warn("failed to replay queued deletion, keeping it pending",
				"id", id, "error", err)
			stillDeletes = append(stillDeletes, id)
			continue
		}
		e.store.Dispatch(DeleteSucceeded{ID: id})
		if err := e.queue.RemoveItem(ctx, id); err != nil {
			e.logger.Warn("failed to drop cached record", "id", id, "error", err)
		}
		dropped++
	}
	if err := e.queue.ReplaceDeletes(ctx, stillDeletes); err != nil {
		return err
	}

	if replayed > 0 || dropped > 0 {
		e.logger.Info("offline changes reconciled",
			"replayed", replayed, "deleted", dropped,
			"pending", len(stillPending)+len(stillDeletes))
	}
	return nil
}

// replayUpsert replays one queued entry: a temp identifier means the
// server has never seen the record, so the identifier is stripped and
// the create path assigns a real one; anything else is an update.
func (e *Engine) replayUpsert(ctx context.Context, item Album) (*Album, error) {
	if IsTempID(item.ID) {
		created := item
		created.ID = ""
		return e.api.Create(ctx, created)
	}
	return e.api.Update(ctx, item)
}

// isGone treats a 404 on a queued deletion as success: the record is
// already absent remotely, so retrying forever would only pin the queue.
func isGone(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
