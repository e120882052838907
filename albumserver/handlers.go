// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Alejan28/albumsync/albumsync"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	password, ok := s.users[req.Username]
	if !ok || password != req.Password {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.auth.GenerateToken(req.Username)
	if err != nil {
		s.logger.Error("failed to sign token", "user", req.Username, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	artist := r.URL.Query().Get("artist")
	title := r.URL.Query().Get("title")

	items, hasMore, err := s.store.List(r.Context(), page, limit, artist, title)
	if err != nil {
		s.logger.Error("failed to list albums", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []albumsync.Album{}
	}
	writeJSON(w, http.StatusOK, albumsync.Page{Items: items, HasMore: hasMore})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var album albumsync.Album
	if err := json.NewDecoder(r.Body).Decode(&album); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if album.NoTracks < 0 {
		http.Error(w, "noTracks must be non-negative", http.StatusBadRequest)
		return
	}

	created, err := s.store.Create(r.Context(), album)
	if err != nil {
		s.logger.Error("failed to create album", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
	s.hub.Broadcast("created", created)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var album albumsync.Album
	if err := json.NewDecoder(r.Body).Decode(&album); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if album.NoTracks < 0 {
		http.Error(w, "noTracks must be non-negative", http.StatusBadRequest)
		return
	}
	album.ID = id

	updated, err := s.store.Update(r.Context(), album)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "album not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to update album", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
	s.hub.Broadcast("updated", updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "album not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to delete album", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := s.store.Artists(r.Context())
	if err != nil {
		s.logger.Error("failed to list artists", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if artists == nil {
		artists = []string{}
	}
	writeJSON(w, http.StatusOK, artists)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
