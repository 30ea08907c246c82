// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/encore/internal/api"
	"github.com/tomtom215/encore/internal/broadcast"
	"github.com/tomtom215/encore/internal/config"
	"github.com/tomtom215/encore/internal/database"
	"github.com/tomtom215/encore/internal/logging"
	"github.com/tomtom215/encore/internal/provider"
	"github.com/tomtom215/encore/internal/supervisor"
	"github.com/tomtom215/encore/internal/sync"
	ws "github.com/tomtom215/encore/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().Str("version", version).Str("config", cfg.String()).Msg("Starting Encore")

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Encore stopped with error")
	}
	logging.Info().Msg("Encore stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	hub := ws.NewHub(ws.DefaultBroadcastBuffer)
	broadcaster, err := newBroadcaster(ctx, cfg.Broadcast, hub)
	if err != nil {
		return err
	}
	defer func() {
		if err := broadcaster.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing broadcast sinks")
		}
	}()

	watcher := sync.NewWatcher(cfg.Watcher, sync.Dependencies{
		Tenants:  db,
		Requests: db,
		Provider: provider.NewClient(provider.ClientConfig{
			BaseURL:   cfg.Provider.APIBaseURL,
			Timeout:   cfg.Provider.RequestTimeout,
			RateLimit: cfg.Provider.RateLimit,
			RateBurst: cfg.Provider.RateBurst,
		}),
		Credentials: provider.NewOAuthCredentials(provider.OAuthConfig{
			ClientID:     cfg.Provider.ClientID,
			ClientSecret: cfg.Provider.ClientSecret,
			TokenURL:     cfg.Provider.TokenURL,
		}, db),
		Publisher: broadcaster,
	})

	handler := api.NewHandler(api.HandlerOptions{
		Watcher:        watcher,
		Tenants:        db,
		DB:             db,
		Hub:            hub,
		AllowedOrigins: cfg.Server.CORSOrigins,
		Version:        version,
		WatcherContext: ctx,
	})
	router := api.NewRouter(handler, api.MiddlewareConfigFromServer(cfg.Server))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.Wire(supervisor.Services{
		Watcher:     watcher,
		Hub:         hub,
		Broadcaster: broadcaster,
		HTTP:        server,
	})

	logging.Info().Str("addr", server.Addr).Msg("Supervisor tree starting")
	err = tree.Serve(ctx)

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
	return err
}

// newBroadcaster builds the broadcaster with the hub sink and whichever of
// NATS and Redis are enabled. A sink that cannot connect at boot is fatal.
func newBroadcaster(ctx context.Context, cfg config.BroadcastConfig, hub *ws.Hub) (*broadcast.Broadcaster, error) {
	sinks := []broadcast.Sink{broadcast.NewHubSink(hub)}

	if cfg.NATS.Enabled {
		natsSink, err := broadcast.NewNATSSink(cfg.NATS)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, natsSink)
		logging.Info().Str("url", cfg.NATS.URL).Str("subject_prefix", cfg.NATS.SubjectPrefix).Msg("NATS sink enabled")
	}

	if cfg.Redis.Enabled {
		redisSink, err := broadcast.NewRedisSink(ctx, cfg.Redis)
		if err != nil {
			_ = broadcast.New(0, sinks...).Close() //nolint:errcheck // already failing
			return nil, err
		}
		sinks = append(sinks, redisSink)
		logging.Info().Str("addr", cfg.Redis.Addr).Str("channel_prefix", cfg.Redis.ChannelPrefix).Msg("Redis sink enabled")
	}

	return broadcast.New(cfg.QueueSize, sinks...), nil
}
