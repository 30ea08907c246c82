// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Watcher Metrics
	WatcherRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "encore_watcher_running",
			Help: "Whether the playback watcher loop is running (1) or stopped (0)",
		},
	)

	WatcherCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "encore_watcher_cycle_duration_seconds",
			Help:    "Duration of one watcher cycle across all tenants",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"cadence"}, // "playback", "stats"
	)

	TrackedTenants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "encore_watcher_tracked_tenants",
			Help: "Number of tenants with state held by the watcher",
		},
	)

	TenantsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encore_watcher_tenants_evicted_total",
			Help: "Tenant state entries evicted from the state store",
		},
		[]string{"reason"}, // "stale", "capacity"
	)

	// Provider Metrics
	ProviderPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encore_provider_polls_total",
			Help: "Provider calls by endpoint and outcome",
		},
		[]string{"endpoint", "result"}, // endpoint: playback, queue; result: ok, stopped, unreachable, auth_expired, rate_limited
	)

	ProviderPollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "encore_provider_poll_duration_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	TenantPollsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encore_tenant_polls_skipped_total",
			Help: "Tenant polls skipped before calling the provider",
		},
		[]string{"reason"}, // breaker_open, disconnected, auth_expired, no_credential, in_flight, backoff
	)

	// Emission Metrics
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encore_events_emitted_total",
			Help: "Events handed to the broadcaster by type",
		},
		[]string{"type"},
	)

	StorageJoinFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "encore_storage_join_failures_total",
			Help: "Emissions that proceeded without requester nicknames because listing requests failed",
		},
	)

	// Broadcast Metrics
	BroadcastQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "encore_broadcast_queue_depth",
			Help: "Events waiting in the broadcaster queue",
		},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "encore_broadcast_dropped_total",
			Help: "Events dropped because the broadcaster queue was full",
		},
	)

	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encore_publish_failures_total",
			Help: "Failed sink publishes by sink",
		},
		[]string{"sink"}, // hub, nats, redis
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "encore_circuit_breaker_state",
			Help: "Circuit breaker state per tenant (0=closed, 1=half-open, 2=open)",
		},
		[]string{"tenant"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encore_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"tenant", "from_state", "to_state"},
	)

	ProviderDisconnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "encore_provider_disconnected",
			Help: "Whether the process-level provider disconnect flag is set",
		},
	)

	// WebSocket Metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "encore_websocket_connections_active",
			Help: "Current number of subscribed websocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "encore_websocket_messages_sent_total",
			Help: "Total number of websocket frames delivered to clients",
		},
	)

	WSSlowClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "encore_websocket_slow_clients_dropped_total",
			Help: "Clients disconnected because their send buffer was full",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encore_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "encore_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordProviderPoll records one provider call.
func RecordProviderPoll(endpoint, result string, duration time.Duration) {
	ProviderPolls.WithLabelValues(endpoint, result).Inc()
	ProviderPollDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordPollSkipped records a tenant poll that never reached the provider.
func RecordPollSkipped(reason string) {
	TenantPollsSkipped.WithLabelValues(reason).Inc()
}

// RecordCycle records the duration of one watcher cycle.
func RecordCycle(cadence string, duration time.Duration) {
	WatcherCycleDuration.WithLabelValues(cadence).Observe(duration.Seconds())
}

// RecordEmission records an event handed to the broadcaster.
func RecordEmission(eventType string) {
	EventsEmitted.WithLabelValues(eventType).Inc()
}

// RecordPublishFailure records a failed write to one sink.
func RecordPublishFailure(sink string) {
	PublishFailures.WithLabelValues(sink).Inc()
}

// RecordBreakerTransition updates the per-tenant breaker gauge and transition counter.
// States are "closed", "half-open" and "open" as reported by gobreaker.
func RecordBreakerTransition(tenant, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(tenant, from, to).Inc()
	CircuitBreakerState.WithLabelValues(tenant).Set(breakerStateValue(to))
}

// ForgetTenant removes per-tenant series once the tenant is evicted so label
// cardinality follows the tracked set.
func ForgetTenant(tenant string) {
	CircuitBreakerState.DeleteLabelValues(tenant)
	CircuitBreakerTransitions.DeletePartialMatch(prometheus.Labels{"tenant": tenant})
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetWatcherRunning flips the watcher running gauge.
func SetWatcherRunning(running bool) {
	if running {
		WatcherRunning.Set(1)
		return
	}
	WatcherRunning.Set(0)
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
