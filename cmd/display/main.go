// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tomtom215/encore/internal/client"
	"github.com/tomtom215/encore/internal/logging"
	"github.com/tomtom215/encore/internal/progress"
)

var version = "dev"

func main() {
	app := &cli.Command{
		Name:    "encore-display",
		Usage:   "Show a tenant's now-playing state with live progress",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Encore server base URL",
				Value:   "http://localhost:3860",
				Sources: cli.EnvVars("ENCORE_SERVER_URL"),
			},
			&cli.StringFlag{
				Name:     "tenant",
				Aliases:  []string{"t"},
				Usage:    "Tenant (DJ account) to display",
				Required: true,
				Sources:  cli.EnvVars("ENCORE_TENANT_ID"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Snapshot polling cadence while the websocket is down",
				Value:   client.DefaultPollInterval,
				Sources: cli.EnvVars("ENCORE_POLL_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "push-retry",
				Usage:   "How long to poll before retrying the websocket",
				Value:   client.DefaultPushRetry,
				Sources: cli.EnvVars("ENCORE_PUSH_RETRY"),
			},
			&cli.BoolFlag{
				Name:    "no-push",
				Usage:   "Poll only, never open a websocket",
				Sources: cli.EnvVars("ENCORE_NO_PUSH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "encore-display:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logging.Init(logging.Config{Level: cmd.String("log-level"), Format: "console", Timestamp: true, Output: os.Stderr})

	server, tenantID := cmd.String("server"), cmd.String("tenant")

	poll, err := client.NewPollSource(server, tenantID, cmd.Duration("poll-interval"), nil)
	if err != nil {
		return err
	}
	opts := client.Options{TenantID: tenantID, Poll: poll, PushRetry: cmd.Duration("push-retry")}
	if !cmd.Bool("no-push") {
		push, err := client.NewPushSource(server, tenantID)
		if err != nil {
			return err
		}
		opts.Push = push
	}

	screen := NewScreen(os.Stdout)
	interp := progress.NewInterpolator(time.Now)
	animator := progress.NewAnimator(interp, progress.DefaultFrameInterval, screen.Frame)
	defer animator.Stop()

	reconciler := client.NewReconciler(opts)
	reconciler.Subscribe(screen.SetView)
	reconciler.Subscribe(animator.SyncView)

	logging.Info().Str("server", server).Str("tenant_id", tenantID).Msg("Display starting")
	err = reconciler.Run(ctx)
	screen.Close()
	return err
}
