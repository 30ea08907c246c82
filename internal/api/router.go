// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/encore/internal/middleware"
)

// Router builds the HTTP handler tree.
type Router struct {
	handler *Handler
	mw      *ChiMiddleware
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, mwConfig *ChiMiddlewareConfig) *Router {
	return &Router{handler: handler, mw: NewChiMiddleware(mwConfig)}
}

// Setup returns the configured chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.mw.CORS())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived subscription: no rate limit, no request metrics.
		r.Get("/ws", router.handler.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(router.mw.RateLimit())
			r.Use(middleware.PrometheusMetrics)

			r.Get("/health", router.handler.Health)
			r.Get("/health/live", router.handler.HealthLive)

			r.Get("/tenants/{tenantID}/snapshot", router.handler.TenantSnapshot)
			r.Post("/tenants/{tenantID}/reconnect", router.handler.TenantReconnect)

			r.Get("/watcher", router.handler.WatcherStatus)
			r.Post("/watcher/start", router.handler.WatcherStart)
			r.Post("/watcher/stop", router.handler.WatcherStop)

			r.Post("/provider/disconnect", router.handler.ProviderDisconnect)
			r.Post("/provider/reconnect", router.handler.ProviderReconnect)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	return r
}
