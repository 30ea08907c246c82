// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
Package main is the Encore sync server.

It watches every eligible tenant's Spotify playback, turns meaningful
changes into events and fans them out to display clients over websocket,
and optionally to NATS and Redis. Displays that cannot hold a websocket
poll the snapshot endpoint instead.

	RootSupervisor ("encore")
	├── data-layer
	│   └── playback-watcher
	├── messaging-layer
	│   ├── websocket-hub
	│   └── broadcaster (hub, nats, redis sinks)
	└── api-layer
	    └── http-server

Configuration is layered by koanf: built-in defaults, then config.yaml
(CONFIG_PATH overrides the location), then environment variables:

	SPOTIFY_CLIENT_ID=... SPOTIFY_CLIENT_SECRET=... \
	DATABASE_PATH=/data/encore.duckdb \
	NATS_ENABLED=true NATS_URL=nats://nats:4222 \
	./encore-server

SIGINT or SIGTERM cancels the tree; the broadcaster drains its queue and
the HTTP server gets ShutdownTimeout to finish in-flight requests.
*/
package main
