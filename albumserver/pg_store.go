// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Alejan28/albumsync/albumsync"
)

// pgStore is the shared-deployment backend over PostgreSQL.
type pgStore struct {
	pool *pgxpool.Pool
}

// OpenPGStore connects to PostgreSQL and initializes the schema.
func OpenPGStore(ctx context.Context, dsn string) (Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS albums (
				id           UUID PRIMARY KEY,
				title        TEXT NOT NULL,
				artist       TEXT NOT NULL,
				no_tracks    INTEGER NOT NULL DEFAULT 0,
				release_date TIMESTAMPTZ,
				date         TIMESTAMPTZ NOT NULL,
				version      TEXT NOT NULL DEFAULT '',
				lat          DOUBLE PRECISION,
				lng          DOUBLE PRECISION,
				photo        JSONB,
				seq          BIGSERIAL
			)
		`)
		if err != nil {
			return fmt.Errorf("failed to create albums table: %w", err)
		}
		_, err = tx.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_albums_artist ON albums(artist)`)
		if err != nil {
			return fmt.Errorf("failed to create artist index: %w", err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) List(ctx context.Context, page, limit int, artist, title string) ([]albumsync.Album, bool, error) {
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
		args = append(args, artist)
		query += fmt.Sprintf(` AND artist = $%d`, len(args))
	}
	if title != "" {
		args = append(args, "%"+title+"%")
		query += fmt.Sprintf(` AND title ILIKE $%d`, len(args))
	}
	args = append(args, limit+1, (page-1)*limit)
	query += fmt.Sprintf(` ORDER BY seq DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list albums: %w", err)
	}
	defer rows.Close()

	var albums []albumsync.Album
	for rows.Next() {
		album, err := scanPGAlbum(rows)
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

func (s *pgStore) Create(ctx context.Context, album albumsync.Album) (albumsync.Album, error) {
	album.ID = uuid.NewString()
	if album.Date.IsZero() {
		album.Date = time.Now().UTC()
	}
	photo, err := photoColumn(album.Photo)
	if err != nil {
		return albumsync.Album{}, err
	}
	lat, lng := locationColumns(album.Location)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO albums (id, title, artist, no_tracks, release_date, date, version, lat, lng, photo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, album.ID, album.Title, album.Artist, album.NoTracks,
		album.ReleaseDate, album.Date, album.Version, lat, lng, photo)
	if err != nil {
		return albumsync.Album{}, fmt.Errorf("failed to insert album: %w", err)
	}
	return album, nil
}

func (s *pgStore) Update(ctx context.Context, album albumsync.Album) (albumsync.Album, error) {
	if album.Date.IsZero() {
		album.Date = time.Now().UTC()
	}
	photo, err := photoColumn(album.Photo)
	if err != nil {
		return albumsync.Album{}, err
	}
	lat, lng := locationColumns(album.Location)

	tag, err := s.pool.Exec(ctx, `
		UPDATE albums
		SET title = $1, artist = $2, no_tracks = $3, release_date = $4, date = $5, version = $6, lat = $7, lng = $8, photo = $9
		WHERE id = $10
	`, album.Title, album.Artist, album.NoTracks, album.ReleaseDate,
		album.Date, album.Version, lat, lng, photo, album.ID)
	if err != nil {
		return albumsync.Album{}, fmt.Errorf("failed to update album %s: %w", album.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return albumsync.Album{}, ErrNotFound
	}
	return album, nil
}

func (s *pgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM albums WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete album %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) Artists(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT artist FROM albums ORDER BY artist`)
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

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPGAlbum(rows pgx.Rows) (albumsync.Album, error) {
	var (
		album       albumsync.Album
		id          uuid.UUID
		releaseDate *time.Time
		lat, lng    *float64
		photo       []byte
	)
	if err := rows.Scan(&id, &album.Title, &album.Artist, &album.NoTracks,
		&releaseDate, &album.Date, &album.Version, &lat, &lng, &photo); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return album, ErrNotFound
		}
		return album, fmt.Errorf("failed to scan album: %w", err)
	}
	album.ID = id.String()
	album.ReleaseDate = releaseDate
	if lat != nil && lng != nil {
		album.Location = &albumsync.LatLng{Lat: *lat, Lng: *lng}
	}
	if len(photo) > 0 {
		var p albumsync.Photo
		if err := json.Unmarshal(photo, &p); err != nil {
			return album, fmt.Errorf("failed to parse photo column: %w", err)
		}
		album.Photo = &p
	}
	return album, nil
}
