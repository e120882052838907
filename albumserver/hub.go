// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Alejan28/albumsync/albumsync"
)

// handshakeTimeout bounds how long a freshly accepted connection may
// take to present its authorization frame.
const handshakeTimeout = 10 * time.Second

// wireMessage mirrors the live channel frame: an authorization
// handshake inbound, a created/updated push outbound.
type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub accepts live channel connections, gates them on a token handshake
// and broadcasts record change notifications to every client.
type Hub struct {
	auth   *Auth
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub creates a hub validating handshakes against auth.
func NewHub(auth *Auth, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		auth:    auth,
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
	}
}

// Handle upgrades the request to a WebSocket connection. The first
// inbound frame must be `{"type":"authorization","payload":{"token":..}}`
// with a valid token; anything else closes the connection.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // clients are native apps, not browsers
	})
	if err != nil {
		h.logger.Warn("failed to accept live connection", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handshakeTimeout)
	_, data, err := conn.Read(ctx)
	cancel()
	if err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "authorization required")
		return
	}

	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "authorization" {
		_ = conn.Close(websocket.StatusPolicyViolation, "authorization required")
		return
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "authorization required")
		return
	}
	user, err := h.auth.ValidateToken(payload.Token)
	if err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "invalid token")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("live client connected", "user", user, "clients", count)

	h.readLoop(r.Context(), conn)
}

// readLoop drains inbound frames until the connection drops; clients
// only ever send the handshake, so everything here is discarded.
func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer h.removeClient(conn)
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// Broadcast pushes a created/updated notification to every client.
// Clients that cannot be written to are dropped.
func (h *Hub) Broadcast(msgType string, album albumsync.Album) {
	payload, err := json.Marshal(album)
	if err != nil {
		h.logger.Warn("failed to marshal broadcast payload", "error", err)
		return
	}
	data, err := json.Marshal(wireMessage{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Warn("failed to marshal broadcast frame", "error", err)
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.logger.Debug("dropping unresponsive live client", "error", err)
			h.removeClient(conn)
			_ = conn.Close(websocket.StatusGoingAway, "write failed")
		}
	}
}

// ClientCount returns the number of authenticated live clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every client; used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}
