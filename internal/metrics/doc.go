// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
Package metrics registers Encore's Prometheus instrumentation with promauto.

Metric families:

  - encore_watcher_*: loop state, cycle latency, tracked and evicted tenants
  - encore_provider_*: provider call outcomes and latency
  - encore_tenant_polls_skipped_total: polls gated by breaker, backoff or in-flight marker
  - encore_events_emitted_total, encore_storage_join_failures_total
  - encore_broadcast_*, encore_publish_failures_total: fan-out queue and sink health
  - encore_circuit_breaker_*: per-tenant breaker state and transitions
  - encore_websocket_*: hub connections and deliveries
  - encore_api_*: HTTP request counters and latency

All metrics are exposed on GET /metrics through promhttp.Handler().
*/
package metrics
