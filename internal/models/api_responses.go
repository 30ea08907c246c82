// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package models

import "time"

// APIResponse is the envelope returned by every HTTP endpoint.
//
// Status is "success" (see Data) or "error" (see Error).
//
//	{
//	  "status": "success",
//	  "data": {"running": true, "interval_ms": 5000},
//	  "metadata": {"timestamp": "2026-10-16T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError carries a machine-readable code and a human-readable message.
//
// Codes: VALIDATION_ERROR, NOT_FOUND, CONFLICT, INTERNAL_ERROR, RATE_LIMIT_EXCEEDED.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	WatcherRunning    bool    `json:"watcher_running"`
	DatabaseConnected bool    `json:"database_connected"`
	WSClients         int     `json:"ws_clients"`
	Uptime            float64 `json:"uptime_seconds"`
}

// WatcherStatus is returned by the watcher control endpoints.
type WatcherStatus struct {
	Running              bool   `json:"running"`
	IntervalMS           int64  `json:"interval_ms"`
	QueueIntervalMS      int64  `json:"queue_interval_ms"`
	StatsIntervalMS      int64  `json:"stats_interval_ms"`
	TrackedTenants       int    `json:"tracked_tenants"`
	Cycles               uint64 `json:"cycles"`
	PlaybackPolls        uint64 `json:"playback_polls"`
	QueuePolls           uint64 `json:"queue_polls"`
	PollFailures         uint64 `json:"poll_failures"`
	EventsEmitted        uint64 `json:"events_emitted"`
	ProviderDisconnected bool   `json:"provider_disconnected"`
}

// WatcherStartRequest is the body of POST /api/v1/watcher/start. Zero values keep
// the current cadence.
type WatcherStartRequest struct {
	IntervalMS      int64 `json:"interval_ms" validate:"omitempty,min=1000,max=600000"`
	QueueIntervalMS int64 `json:"queue_interval_ms" validate:"omitempty,min=1000,max=3600000"`
}
