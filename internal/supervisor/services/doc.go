// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
Package services adapts Encore components to suture.Service.

Each wrapper turns a component lifecycle (ListenAndServe/Shutdown, a
context-bound run loop, Serve) into suture's Serve(ctx) contract and names
itself through fmt.Stringer so supervisor events read "playback-watcher
restarted" rather than a type name:

  - HTTPServerService: *http.Server with graceful Shutdown on cancel.
  - HubService: the websocket hub's RunWithContext loop.
  - BroadcastService: the broadcaster's queue drain.
  - WatcherService: the playback watcher.

A returned error other than the context's tells suture to restart the
service after its backoff.
*/
package services
