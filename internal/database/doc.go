// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

// Package database is the DuckDB-backed storage for tenants, song requests and
// provider refresh tokens.
//
// The watcher consumes two read models from it:
//
//   - ListTenants: tenants with watching enabled and a linked credential
//   - ListRequests: one tenant's requests, oldest first
//
// RefreshToken serves the OAuth credential provider. The write methods exist
// for the request intake side of the application and for tests.
package database
