// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Alejan28/albumsync/albumserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference album service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("driver", "sqlite", "storage driver (sqlite or postgres)")
	serveCmd.Flags().String("db", "albums.db", "sqlite path or postgres DSN")
	serveCmd.Flags().String("jwt-secret", "", "secret signing bearer tokens (required)")
	serveCmd.Flags().StringSlice("user", []string{"admin:secret"}, "accepted user:password pairs")
	for _, flag := range []string{"addr", "driver", "db", "jwt-secret", "user"} {
		_ = viper.BindPFlag(flag, serveCmd.Flags().Lookup(flag))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	secret := viper.GetString("jwt-secret")
	if secret == "" {
		return fmt.Errorf("--jwt-secret is required")
	}
	users, err := parseUsers(viper.GetStringSlice("user"))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	var store albumserver.Store
	switch driver := viper.GetString("driver"); driver {
	case "sqlite":
		store, err = albumserver.OpenSQLiteStore(viper.GetString("db"))
	case "postgres":
		store, err = albumserver.OpenPGStore(ctx, viper.GetString("db"))
	default:
		return fmt.Errorf("unknown storage driver %q", driver)
	}
	if err != nil {
		return err
	}
	defer store.Close()

	server := albumserver.New(store, &albumserver.Config{
		JWTSecret: secret,
		Users:     users,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:    viper.GetString("addr"),
		Handler: server.Handler(),
	}
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		server.Hub().CloseAll()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("album service listening", "addr", httpServer.Addr, "driver", viper.GetString("driver"))
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func parseUsers(pairs []string) (map[string]string, error) {
	users := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, password, ok := strings.Cut(pair, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed user %q, want user:password", pair)
		}
		users[name] = password
	}
	return users, nil
}
