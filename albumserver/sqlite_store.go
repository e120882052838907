// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Alejan28/albumsync/albumsync"
)

// sqliteStore is the self-contained backend: one SQLite file, schema
// initialized inline. Use ":memory:" in tests.
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) a SQLite-backed record store.
func OpenSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open album store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS albums (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			artist       TEXT NOT NULL,
			no_tracks    INTEGER NOT NULL DEFAULT 0,
			release_date TEXT,
			date         TEXT NOT NULL,
			version      TEXT NOT NULL DEFAULT '',
			lat          REAL,
			lng          REAL,
			photo        TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_albums_artist ON albums(artist);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize album store: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) List(ctx context.Context, page, limit int, artist, title string) ([]albumsync.Album, bool, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	query := `
		SELECT id, title, artist, no_tracks, release_date, date, version, lat, lng, photo
		FROM albums WHERE 1=1`
	var args []any
	if artist != "" {
		query += ` AND artist = ?`
		args = append(args, artist)
	}
	if title != "" {
		query += ` AND title LIKE ?`
		args = append(args, "%"+title+"%")
	}
	// Newest first is the authoritative order; one extra row decides hasMore.
	query += ` ORDER BY rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit+1, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list albums: %w", err)
	}
	defer rows.Close()

	var albums []albumsync.Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, false, err
		}
		albums = append(albums, album)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to scan albums: %w", err)
	}

	hasMore := len(albums) > limit
	if hasMore {
		albums = albums[:limit]
	}
	return albums, hasMore, nil
}

func (s *sqliteStore) Create(ctx context.Context, album albumsync.Album) (albumsync.Album, error) {
	album.ID = uuid.NewString()
	if album.Date.IsZero() {
		album.Date = time.Now().UTC()
	}

	lat, lng := locationColumns(album.Location)
	photo, err := photoColumn(album.Photo)
	if err != nil {
		return albumsync.Album{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO albums (id, title, artist, no_tracks, release_date, date, version, lat, lng, photo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, album.ID, album.Title, album.Artist, album.NoTracks,
		timeColumn(album.ReleaseDate), album.Date.Format(time.RFC3339), album.Version, lat, lng, photo)
	if err != nil {
		return albumsync.Album{}, fmt.Errorf("failed to insert album: %w", err)
	}
	return album, nil
}

func (s *sqliteStore) Update(ctx context.Context, album albumsync.Album) (albumsync.Album, error) {
	if album.Date.IsZero() {
		album.Date = time.Now().UTC()
	}
	lat, lng := locationColumns(album.Location)
	photo, err := photoColumn(album.Photo)
	if err != nil {
		return albumsync.Album{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE albums
		SET title = ?, artist = ?, no_tracks = ?, release_date = ?, date = ?, version = ?, lat = ?, lng = ?, photo = ?
		WHERE id = ?
	`, album.Title, album.Artist, album.NoTracks, timeColumn(album.ReleaseDate),
		album.Date.Format(time.RFC3339), album.Version, lat, lng, photo, album.ID)
	if err != nil {
		return albumsync.Album{}, fmt.Errorf("failed to update album %s: %w", album.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return albumsync.Album{}, fmt.Errorf("failed to update album %s: %w", album.ID, err)
	}
	if affected == 0 {
		return albumsync.Album{}, ErrNotFound
	}
	return album, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM albums WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete album %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete album %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) Artists(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT artist FROM albums ORDER BY artist`)
	if err != nil {
		return nil, fmt.Errorf("failed to list artists: %w", err)
	}
	defer rows.Close()

	var artists []string
	for rows.Next() {
		var artist string
		if err := rows.Scan(&artist); err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		artists = append(artists, artist)
	}
	return artists, rows.Err()
}

func (s *sqliteStore) Close() error { return s.db.Close() }

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAlbum(row scanner) (albumsync.Album, error) {
	var (
		album       albumsync.Album
		releaseDate sql.NullString
		date        string
		lat, lng    sql.NullFloat64
		photo       sql.NullString
	)
	if err := row.Scan(&album.ID, &album.Title, &album.Artist, &album.NoTracks,
		&releaseDate, &date, &album.Version, &lat, &lng, &photo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return album, ErrNotFound
		}
		return album, fmt.Errorf("failed to scan album: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return album, fmt.Errorf("failed to parse album date: %w", err)
	}
	album.Date = parsed

	if releaseDate.Valid {
		rd, err := time.Parse(time.RFC3339, releaseDate.String)
		if err != nil {
			return album, fmt.Errorf("failed to parse release date: %w", err)
		}
		album.ReleaseDate = &rd
	}
	if lat.Valid && lng.Valid {
		album.Location = &albumsync.LatLng{Lat: lat.Float64, Lng: lng.Float64}
	}
	if photo.Valid && photo.String != "" {
		var p albumsync.Photo
		if err := json.Unmarshal([]byte(photo.String), &p); err != nil {
			return album, fmt.Errorf("failed to parse photo column: %w", err)
		}
		album.Photo = &p
	}
	return album, nil
}

func timeColumn(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func locationColumns(loc *albumsync.LatLng) (any, any) {
	if loc == nil {
		return nil, nil
	}
	return loc.Lat, loc.Lng
}

func photoColumn(p *albumsync.Photo) (any, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal photo column: %w", err)
	}
	return string(data), nil
}
