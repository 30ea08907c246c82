// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/encore/internal/logging"
	"github.com/tomtom215/encore/internal/models"
	"github.com/tomtom215/encore/internal/sync"
	"github.com/tomtom215/encore/internal/validation"
)

const maxControlBody = 4 << 10

// WatcherStatus returns the watcher's state and counters.
func (h *Handler) WatcherStatus(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, h.watcher.Stats(), time.Now())
}

// WatcherStart starts the watcher. A body with non-zero cadences reconfigures
// it first; a running watcher is restarted with the new cadences.
func (h *Handler) WatcherStart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.WatcherStartRequest
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, maxControlBody)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, ErrCodeValidation, "Invalid JSON body", nil)
			return
		}
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondAPIError(w, http.StatusBadRequest, verr.ToAPIError())
		return
	}

	if req.IntervalMS > 0 || req.QueueIntervalMS > 0 {
		current := h.watcher.Stats()
		interval := time.Duration(current.IntervalMS) * time.Millisecond
		queueInterval := time.Duration(current.QueueIntervalMS) * time.Millisecond
		if req.IntervalMS > 0 {
			interval = time.Duration(req.IntervalMS) * time.Millisecond
		}
		if req.QueueIntervalMS > 0 {
			queueInterval = time.Duration(req.QueueIntervalMS) * time.Millisecond
		}
		if err := h.watcher.Reconfigure(interval, queueInterval); err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
			return
		}
	}

	if err := h.watcher.Start(h.watcherCtx); err != nil && !errors.Is(err, sync.ErrWatcherRunning) {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to start watcher", err)
		return
	}
	logging.Ctx(r.Context()).Info().Msg("Watcher started via API")
	respondSuccess(w, h.watcher.Stats(), start)
}

// WatcherStop stops the watcher. Stopping a stopped watcher succeeds.
func (h *Handler) WatcherStop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.watcher.Stop()
	logging.Ctx(r.Context()).Info().Msg("Watcher stopped via API")
	respondSuccess(w, h.watcher.Stats(), start)
}

// ProviderDisconnect suppresses provider calls for every tenant.
func (h *Handler) ProviderDisconnect(w http.ResponseWriter, _ *http.Request) {
	changed := h.watcher.DisconnectProvider()
	respondSuccess(w, map[string]bool{"disconnected": true, "changed": changed}, time.Now())
}

// ProviderReconnect lifts the process-wide disconnect.
func (h *Handler) ProviderReconnect(w http.ResponseWriter, _ *http.Request) {
	changed := h.watcher.ReconnectProvider()
	respondSuccess(w, map[string]bool{"disconnected": false, "changed": changed}, time.Now())
}
