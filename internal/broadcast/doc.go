// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

// Package broadcast fans watcher events out to the configured sinks.
//
// The watcher calls Publish from its poll goroutines. Publish only enqueues, so
// a slow or failing transport can never stall a poll cycle or roll back tenant
// state. A single Serve goroutine drains the queue in order and writes each
// envelope to every sink:
//
//   - HubSink: the websocket hub (always present)
//   - NATSSink: subject "<prefix>.<tenant_id>"
//   - RedisSink: pub/sub channel "<prefix>:<tenant_id>"
//
// Sink failures are wrapped in ErrTransportPublish, logged, and counted per sink.
package broadcast
