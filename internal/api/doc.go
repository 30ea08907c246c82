// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
Package api exposes the watcher control surface, the REST snapshot fallback
and the websocket subscription endpoint over a chi router.

Routes:

	GET  /api/v1/health                          liveness plus dependency status
	GET  /api/v1/tenants/{tenantID}/snapshot     ClientViewState for polling clients
	POST /api/v1/tenants/{tenantID}/reconnect    clear auth-expired and breaker state
	GET  /api/v1/ws?tenant_id=                   websocket subscription
	GET  /api/v1/watcher                         WatcherStatus
	POST /api/v1/watcher/start                   start, optionally with new cadences
	POST /api/v1/watcher/stop
	POST /api/v1/provider/disconnect             suppress all provider calls
	POST /api/v1/provider/reconnect
	GET  /metrics                                Prometheus

Every JSON response uses the models.APIResponse envelope. Requests are rate
limited per IP with go-chi/httprate; the websocket route is exempt since a
display holds one long-lived connection.
*/
package api
