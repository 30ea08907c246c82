// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package models

// ClientViewState is what a subscribed client renders for one tenant. It is
// served by the REST snapshot endpoint and rebuilt on the client from events.
type ClientViewState struct {
	TenantID          string         `json:"tenant_id"`
	Requests          []SongRequest  `json:"requests"`
	Playback          *PlaybackState `json:"playback"`
	EventSettings     map[string]any `json:"event_settings,omitempty"`
	Stats             *StatsEvent    `json:"stats"`
	ProviderConnected bool           `json:"provider_connected"`
	EmittedAt         int64          `json:"emitted_at"`
}

func (v *ClientViewState) EventType() string { return EventTypeSnapshot }
func (v *ClientViewState) Tenant() string    { return v.TenantID }
func (v *ClientViewState) Emitted() int64    { return v.EmittedAt }
