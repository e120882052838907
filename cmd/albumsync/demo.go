// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alejan28/albumsync/albumserver"
	"github.com/Alejan28/albumsync/albumsync"
	"github.com/Alejan28/albumsync/prefs"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk the offline-first sync flow against an in-process service",
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := albumserver.OpenSQLiteStore(":memory:")
	if err != nil {
		return err
	}
	defer store.Close()

	server := albumserver.New(store, &albumserver.Config{
		JWTSecret: "demo-secret",
		Users:     map[string]string{"demo": "demo"},
		Logger:    logger,
	})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	httpServer := &http.Server{Handler: server.Handler()}
	go func() { _ = httpServer.Serve(listener) }()
	defer httpServer.Close()
	baseURL := "http://" + listener.Addr().String()

	token, err := albumsync.Login(ctx, nil, baseURL, "demo", "demo")
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "albumsync-demo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	p, err := prefs.Open(filepath.Join(dir, "prefs.db"))
	if err != nil {
		return err
	}
	defer p.Close()

	mon := albumsync.NewManualMonitor(true)
	api := albumsync.NewAPI(baseURL, func(context.Context) (string, error) { return token, nil }, logger)
	engine := albumsync.New(api, albumsync.NewQueue(p, logger), mon, nil, logger)
	defer engine.Close()
	engine.SetToken(token)

	// Online: create a record the regular way.
	if err := engine.SaveAlbum(ctx, albumsync.Album{Title: "Abbey Road", Artist: "The Beatles", NoTracks: 17}); err != nil {
		return err
	}
	fmt.Printf("online save:  %d record(s) in state\n", len(engine.State().Items))

	// Offline: the save is optimistic and queued.
	mon.SetConnected(false)
	if err := engine.SaveAlbum(ctx, albumsync.Album{Title: "Revolver", Artist: "The Beatles", NoTracks: 14}); err != nil {
		return err
	}
	state := engine.State()
	fmt.Printf("offline save: %d record(s), newest id %q\n", len(state.Items), state.Items[0].ID)

	// Reconnect: the transition drains the queue against the service.
	mon.SetConnected(true)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if id := engine.State().Items[0].ID; !albumsync.IsTempID(id) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	state = engine.State()
	fmt.Printf("reconciled:   %d record(s), newest id %q\n", len(state.Items), state.Items[0].ID)

	if err := engine.FetchPage(ctx, 1, 10, "", ""); err != nil {
		return err
	}
	fmt.Printf("refetched:    %d record(s) from the service\n", len(engine.State().Items))
	return nil
}
