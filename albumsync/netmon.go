// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package albumsync

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Monitor exposes current connectivity and notifies on transitions. The
// engine only reads the state and reacts to transitions; it never owns
// connectivity itself.
type Monitor interface {
	Connected() bool
	Subscribe(fn func(connected bool)) (cancel func())
}

// ManualMonitor is a Monitor whose state is flipped by the caller. It is
// the building block for probing monitors and the natural choice in
// tests and demos.
type ManualMonitor struct {
	mu        sync.Mutex
	connected bool
	subs      map[int]func(bool)
	nextSub   int
}

// NewManualMonitor returns a monitor in the given initial state.
func NewManualMonitor(connected bool) *ManualMonitor {
	return &ManualMonitor{
		connected: connected,
		subs:      make(map[int]func(bool)),
	}
}

// Connected reports the current state.
func (m *ManualMonitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetConnected flips the state. Subscribers are notified only on an
// actual transition.
func (m *ManualMonitor) SetConnected(connected bool) {
	m.mu.Lock()
	if m.connected == connected {
		m.mu.Unlock()
		return
	}
	m.connected = connected
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(connected)
	}
}

// Subscribe registers fn for transition notifications.
func (m *ManualMonitor) Subscribe(fn func(bool)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Prober is a Monitor that derives connectivity from periodic HTTP
// probes of a health endpoint.
type Prober struct {
	*ManualMonitor

	url      string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewProber creates a prober for the given health URL. Probing does not
// start until Start is called; until then the prober reports
// disconnected.
func NewProber(url string, interval time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		ManualMonitor: NewManualMonitor(false),
		url:           url,
		interval:      interval,
		client:        &http.Client{Timeout: interval},
		logger:        logger,
	}
}

// Start begins probing until Stop is called or ctx is canceled. The
// first probe runs immediately.
func (p *Prober) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			p.probe(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends probing and waits for the probe loop to exit.
func (p *Prober) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Prober) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.logger.Warn("connectivity probe misconfigured", "url", p.url, "error", err)
		return
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.SetConnected(false)
		return
	}
	_ = resp.Body.Close()
	p.SetConnected(resp.StatusCode >= 200 && resp.StatusCode < 300)
}
