// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumserver

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config holds reference server configuration.
type Config struct {
	// JWTSecret signs the bearer tokens.
	JWTSecret string
	// Users maps accepted usernames to passwords.
	Users map[string]string
	// TokenTTL bounds token lifetime; zero means 24h.
	TokenTTL time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the reference remote record service: REST API, login
// endpoint and live update hub over a Store.
type Server struct {
	store  Store
	auth   *Auth
	hub    *Hub
	users  map[string]string
	logger *slog.Logger
}

// New creates a server over the given store.
func New(store Store, cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	auth := NewAuth(cfg.JWTSecret, ttl)
	return &Server{
		store:  store,
		auth:   auth,
		hub:    NewHub(auth, logger),
		users:  cfg.Users,
		logger: logger,
	}
}

// Handler returns the HTTP handler for the whole service.
func (s *Server) Handler() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/api/auth/login", s.handleLogin)
	r.Get("/ws", s.hub.Handle)

	r.Route("/api/item", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Get("/artists", s.handleArtists)
		r.Put("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDelete)
	})
	return r
}

// Hub exposes the live update hub, mainly for shutdown and tests.
func (s *Server) Hub() *Hub { return s.hub }

// Auth exposes the token authority, mainly for tests.
func (s *Server) Auth() *Auth { return s.auth }
