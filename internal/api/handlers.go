// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package api

import (
	"context"
	"time"

	"github.com/tomtom215/encore/internal/models"
	ws "github.com/tomtom215/encore/internal/websocket"
)

// WatcherControl is the watcher surface exposed over HTTP.
type WatcherControl interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
	Reconfigure(interval, queueInterval time.Duration) error
	Stats() models.WatcherStatus
	Snapshot(ctx context.Context, tenantID string) (*models.ClientViewState, error)
	DisconnectProvider() bool
	ReconnectProvider() bool
	ReconnectTenant(tenantID string)
}

// TenantLookup resolves tenants for the snapshot and websocket endpoints.
type TenantLookup interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the HTTP handlers' dependencies.
type Handler struct {
	watcher        WatcherControl
	tenants        TenantLookup
	db             Pinger
	hub            *ws.Hub
	allowedOrigins []string
	version        string
	startTime      time.Time

	// watcherCtx bounds watcher loops started over HTTP, which must outlive
	// the request that started them.
	watcherCtx context.Context
}

// HandlerOptions configure NewHandler. Zero fields disable the matching feature.
type HandlerOptions struct {
	Watcher        WatcherControl
	Tenants        TenantLookup
	DB             Pinger
	Hub            *ws.Hub
	AllowedOrigins []string
	Version        string
	WatcherContext context.Context
}

// NewHandler creates a Handler.
func NewHandler(opts HandlerOptions) *Handler {
	watcherCtx := opts.WatcherContext
	if watcherCtx == nil {
		watcherCtx = context.Background()
	}
	return &Handler{
		watcher:        opts.Watcher,
		tenants:        opts.Tenants,
		db:             opts.DB,
		hub:            opts.Hub,
		allowedOrigins: opts.AllowedOrigins,
		version:        opts.Version,
		startTime:      time.Now(),
		watcherCtx:     watcherCtx,
	}
}
