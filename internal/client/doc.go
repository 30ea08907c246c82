// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

// Package client keeps a display's ClientViewState in step with the server.
//
// A Reconciler merges events from a StateSource into one tenant's view. Two
// sources exist:
//
//   - PushSource subscribes to /api/v1/ws and forwards every frame.
//   - PollSource fetches /api/v1/tenants/{id}/snapshot on a fixed interval.
//
// Run prefers push. When the websocket drops the reconciler falls back to
// polling and retries push every PushRetry:
//
//	rec := client.NewReconciler(client.Options{
//		TenantID: "dj-1",
//		Push:     push,
//		Poll:     poll,
//	})
//	rec.Subscribe(func(view models.ClientViewState) { render(view) })
//	err := rec.Run(ctx)
//
// Events older than the applied state are dropped, and an event whose merged
// view hashes identically to the current one is applied silently: listeners
// are not called, so the progress interpolator keeps its baseline.
package client
