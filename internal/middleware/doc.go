// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

// Package middleware provides HTTP middleware shared by the API router.
//
//   - RequestID: honours or generates X-Request-ID and uses it as the logging
//     correlation ID, so API log lines and the watcher calls they trigger
//     can be grouped
//   - PrometheusMetrics: records request count and latency labelled by the
//     chi route pattern, which keeps tenant IDs out of label values
package middleware
