// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
Package models defines the data structures shared by the watcher, the broadcaster,
the HTTP API and the client-side reconciler.

Model Categories:

 1. Provider snapshots (playback.go):
    - PlaybackSnapshot, TrackRef, AlbumRef, DeviceRef, QueueSnapshot
    - Immutable values. A new poll replaces the previous snapshot wholesale.

 2. Wire events (events.go):
    - ChangeEvent ("playback-update"), StatsEvent ("stats-update"),
    ProviderStatusEvent ("provider-status")
    - Envelope is the single frame used on every transport (websocket, NATS, Redis).

 3. Storage read models (tenant.go):
    - Tenant, SongRequest, RequestStatus

 4. Client view (view.go):
    - ClientViewState, the merged state a display or admin client renders

 5. API responses (api_responses.go):
    - APIResponse envelope shared by every HTTP endpoint
*/
package models
