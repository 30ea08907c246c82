// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
Package main is encore-display, an operator tool that tails one tenant's
reconciled playback state on a single terminal status line.

It subscribes to the server's websocket feed, falls back to polling the
snapshot endpoint while the feed is down, and animates track progress
between updates:

	encore-display --server http://localhost:3860 --tenant dj-1

Every flag can also be set through the environment (ENCORE_SERVER_URL,
ENCORE_TENANT_ID, ENCORE_POLL_INTERVAL, ENCORE_PUSH_RETRY, ENCORE_NO_PUSH,
LOG_LEVEL). Logs go to stderr so the status line on stdout stays readable.
*/
package main
