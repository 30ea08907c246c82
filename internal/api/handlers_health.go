// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/encore/internal/models"
)

// Health reports process status. It always answers 200; Status is "degraded"
// when storage is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	dbConnected := false
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		dbConnected = h.db.Ping(ctx) == nil
		cancel()
	}

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	}

	health := models.HealthResponse{
		Status:            status,
		Version:           h.version,
		WatcherRunning:    h.watcher != nil && h.watcher.IsRunning(),
		DatabaseConnected: dbConnected,
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		health.WSClients = h.hub.GetClientCount()
	}
	respondSuccess(w, health, start)
}

// HealthLive answers 200 while the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, map[string]string{"status": "alive"}, time.Now())
}
