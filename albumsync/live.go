// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumsync

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// liveMessage is the wire frame of the live update channel. Outbound it
// carries the authorization handshake; inbound it tags a pushed record
// as created or updated.
type liveMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SetToken installs the auth token for the live update channel. Exactly
// one connection exists per non-empty token: changing the token tears
// down the previous connection and, when the new token is non-empty,
// opens a new one. An empty token just closes the channel.
func (e *Engine) SetToken(token string) {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	if token == e.liveToken {
		return
	}
	e.liveToken = token
	e.liveGen++
	e.teardownLiveLocked()

	if token == "" || e.closed.Load() {
		return
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.liveCancel = cancel
	done := make(chan struct{})
	e.liveDone = done
	go e.runLive(ctx, token, e.liveGen, done)
}

// teardownLiveLocked cancels the current live connection, if any. It
// does not wait for the read loop to exit; the generation check keeps a
// lingering loop from dispatching stale messages.
func (e *Engine) teardownLiveLocked() {
	if e.liveCancel != nil {
		e.liveCancel()
		e.liveCancel = nil
		e.liveDone = nil
	}
}

func (e *Engine) runLive(ctx context.Context, token string, gen int, done chan struct{}) {
	defer close(done)

	backoff := e.cfg.BackoffMin
	for {
		err := e.liveSession(ctx, token, gen)
		if ctx.Err() != nil {
			return
		}
		if !e.cfg.LiveReconnect {
			if err != nil {
				e.logger.Warn("live channel closed; live data stale until next token change", "error", err)
			}
			return
		}

		// Bounded backoff with jitter before redialing.
		sleep := backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))
		e.logger.Warn("live channel dropped, reconnecting", "backoff", sleep, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
		backoff *= 2
		if backoff > e.cfg.BackoffMax {
			backoff = e.cfg.BackoffMax
		}
	}
}

// liveSession opens one connection, sends the authorization handshake
// and dispatches created/updated pushes into the store until the
// connection drops or the context is canceled.
func (e *Engine) liveSession(ctx context.Context, token string, gen int) error {
	conn, _, err := websocket.Dial(ctx, e.liveURL(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial live channel: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	authPayload, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return fmt.Errorf("failed to marshal handshake: %w", err)
	}
	handshake, err := json.Marshal(liveMessage{Type: "authorization", Payload: authPayload})
	if err != nil {
		return fmt.Errorf("failed to marshal handshake: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, handshake); err != nil {
		return fmt.Errorf("failed to send handshake: %w", err)
	}
	e.logger.Debug("live channel connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var msg liveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			e.logger.Warn("ignoring malformed live message", "error", err)
			continue
		}
		if msg.Type != "created" && msg.Type != "updated" {
			continue
		}
		var album Album
		if err := json.Unmarshal(msg.Payload, &album); err != nil {
			e.logger.Warn("ignoring malformed live payload", "type", msg.Type, "error", err)
			continue
		}
		if !e.liveCurrent(gen) {
			// Token changed or engine closed while this frame was in
			// flight; the connection is no longer interested.
			return nil
		}
		e.store.Dispatch(SaveSucceeded{Item: album})
	}
}

// liveCurrent reports whether the connection generation is still the
// active one.
func (e *Engine) liveCurrent(gen int) bool {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	return gen == e.liveGen && !e.closed.Load()
}

// liveURL derives the live channel endpoint from the service base URL.
func (e *Engine) liveURL() string {
	u := e.cfg.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}
