// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
Package sync watches the playback provider on behalf of every tenant and turns
provider snapshots into change events.

Key Components:

  - Watcher: dual-cadence polling loop (playback every Interval, queue every
    QueueInterval, stats every StatsInterval) over a bounded worker pool
  - TenantBreaker: two-tier circuit breaker (process disconnect flag plus one
    gobreaker.TwoStepCircuitBreaker per tenant, with a sticky auth-expired mark)
  - DetectPlaybackChange / DetectQueueChange: structural comparison of a
    normalized projection that ignores position and capture time
  - StateStore: per-tenant last-known state with per-entry locks, an in-flight
    marker and stale/capacity eviction

Failure Handling:

A failed poll never clears last-known playback or queue. Consecutive failures
open the tenant's breaker and emit exactly one provider-status event with
Connected=false; the first successful poll afterwards emits one with
Reason "recovered". 429 responses additionally defer the tenant until the
provider's Retry-After has elapsed. A rejected credential disconnects the
tenant until ReconnectTenant is called.

Tenant Isolation:

Requests are loaded per tenant and filtered again in memory before the
requester nickname join, so an event never carries another tenant's data even
when two tenants queue the same track URI.

Thread Safety:

All exported Watcher methods are safe for concurrent use. Snapshot observes
either the state before a commit or the state and its event together.
*/
package sync
