// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

// Package albumsync implements an offline-first synchronization engine
// for a collection of album records held against an intermittently
// reachable remote service.
//
// The engine keeps a single in-memory projection of the records (Store),
// a durable queue of mutations made while disconnected (Queue), replays
// that queue against the remote service when connectivity returns
// (Reconcile), and merges server-pushed live updates into local state
// over a WebSocket channel.
package albumsync

import (
	"fmt"
	"strings"
	"time"
)

// tempIDPrefix marks records created while offline that have not yet
// been assigned a server identifier. The prefix is the sole signal the
// reconciler uses to choose create vs update semantics during replay.
const tempIDPrefix = "temp-"

// LatLng is a geographic coordinate pair attached to an album.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Photo references a locally captured photo, optionally with an inline
// displayable representation.
type Photo struct {
	Filepath    string `json:"filepath"`
	WebviewPath string `json:"webviewPath,omitempty"`
}

// Album is the record being tracked and synchronized.
//
// ID is empty for records that have never been saved anywhere, and
// carries the temp- prefix for records created offline. Deleted is a
// transient in-flight tombstone used to hide a record from the local
// projection until its queued deletion drains; it is never a persisted
// server field.
type Album struct {
	ID          string     `json:"_id,omitempty"`
	Title       string     `json:"title"`
	Artist      string     `json:"artist"`
	NoTracks    int        `json:"noTracks"`
	ReleaseDate *time.Time `json:"releaseDate,omitempty"`
	Date        time.Time  `json:"date"`
	Version     string     `json:"version,omitempty"`
	Location    *LatLng    `json:"location,omitempty"`
	Photo       *Photo     `json:"photo,omitempty"`
	Deleted     bool       `json:"_deleted,omitempty"`
}

// NewTempID returns a locally generated placeholder identifier for a
// record created while disconnected.
func NewTempID() string {
	return fmt.Sprintf("%s%d", tempIDPrefix, time.Now().UnixNano())
}

// IsTempID reports whether id is a locally generated placeholder that
// the server has never seen.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}
