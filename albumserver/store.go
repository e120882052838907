// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

// Package albumserver is a reference implementation of the remote record
// service the sync engine reconciles against: a bearer-authenticated
// REST API over a pluggable storage backend, plus a WebSocket hub that
// pushes created/updated notifications to every connected client.
package albumserver

import (
	"context"
	"errors"

	"github.com/Alejan28/albumsync/albumsync"
)

// ErrNotFound is returned by Store operations addressing an identifier
// the backend does not hold.
var ErrNotFound = errors.New("album not found")

// Store is the storage backend behind the record service. List returns
// one page in authoritative order (newest first) along with a has-more
// flag; Create assigns the server identifier.
type Store interface {
	List(ctx context.Context, page, limit int, artist, title string) ([]albumsync.Album, bool, error)
	Create(ctx context.Context, album albumsync.Album) (albumsync.Album, error)
	Update(ctx context.Context, album albumsync.Album) (albumsync.Album, error)
	Delete(ctx context.Context, id string) error
	Artists(ctx context.Context) ([]string, error)
	Close() error
}
