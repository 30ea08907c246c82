// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package models

import "time"

// PlaybackSnapshot is one observation of a tenant's player.
//
// Snapshots are values: once constructed they are never mutated, and a new poll
// fully replaces the previous one. A nil *PlaybackSnapshot means the provider was
// reachable but nothing is playing, which is distinct from a failed poll.
//
// PositionMS and CapturedAt change on every poll and are excluded from change
// detection.
type PlaybackSnapshot struct {
	IsPlaying  bool       `json:"is_playing"`
	PositionMS int64      `json:"position_ms"`
	DurationMS int64      `json:"duration_ms"`
	Track      *TrackRef  `json:"track,omitempty"`
	Device     *DeviceRef `json:"device,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
}

// TrackRef identifies a track on the provider. Identity is ID (or URI when the
// provider omits IDs for local files), never the display fields.
type TrackRef struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      AlbumRef `json:"album"`
	URI        string   `json:"uri"`
	DurationMS int64    `json:"duration_ms"`
}

// AlbumRef is the album a track belongs to.
type AlbumRef struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images,omitempty"`
}

// Image is album artwork. The provider lists images largest first.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// DeviceRef is the device the tenant is playing on.
type DeviceRef struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	VolumePercent *int   `json:"volume_percent,omitempty"`
}

// QueueSnapshot is the provider's upcoming queue. Requester nicknames are joined
// at emission time and never stored here.
type QueueSnapshot struct {
	Tracks     []TrackRef `json:"tracks"`
	CapturedAt time.Time  `json:"captured_at"`
}

// SameTrack reports whether a and b identify the same track.
func SameTrack(a, b *TrackRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.ID != "" || b.ID != "" {
		return a.ID == b.ID
	}
	return a.URI == b.URI
}

// TenantWatchState is a read-only copy of the watcher's per-tenant entry.
type TenantWatchState struct {
	TenantID          string            `json:"tenant_id"`
	LastPlayback      *PlaybackSnapshot `json:"last_playback,omitempty"`
	LastQueue         *QueueSnapshot    `json:"last_queue,omitempty"`
	LastQueueCheckAt  time.Time         `json:"last_queue_check_at"`
	FailureCount      int               `json:"failure_count"`
	LastFailureAt     *time.Time        `json:"last_failure_at,omitempty"`
	ProviderConnected bool              `json:"provider_connected"`
	LastSeenCycle     uint64            `json:"last_seen_cycle"`
	LastEmittedAt     int64             `json:"last_emitted_at,omitempty"`
}
