// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
Package websocket pushes playback, stats and provider-status envelopes to
connected display clients.

It uses gorilla/websocket with a hub-client architecture. Every client is
bound to one tenant when it connects, and the hub only delivers an envelope to
the clients of the envelope's tenant:

	┌──────────┐
	│   Hub    │ ← envelopes for tenants A and B
	└────┬─────┘
	     │
	┌────┴─────┬─────────┐
	│          │         │
	│ A:disp1  │ A:disp2 │ B:disp1
	└──────────┴─────────┘

Each client has two goroutines:
  - readPump: reads control frames, answers {"type":"ping"} with a pong
    envelope, and keeps the read deadline alive on protocol pongs
  - writePump: writes queued envelopes as JSON text frames and sends
    protocol pings every pingPeriod

Delivery never blocks the watcher. Broadcast returns ErrHubFull when the
inbound queue is full, and a client whose send buffer is full is dropped so
it reconnects and reloads a snapshot.
*/
package websocket
