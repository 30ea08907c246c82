// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Event types carried in Envelope.Type.
const (
	EventTypePlaybackUpdate = "playback-update"
	EventTypeStatsUpdate    = "stats-update"
	EventTypeProviderStatus = "provider-status"

	// EventTypeSnapshot carries a full ClientViewState. Only the REST fallback
	// produces it; the watcher never broadcasts snapshots.
	EventTypeSnapshot = "snapshot"
)

// ChangeReason classifies what changed between two playback observations.
type ChangeReason string

const (
	ReasonTrackChanged     ChangeReason = "track_changed"
	ReasonPlayStateChanged ChangeReason = "play_state_changed"
	ReasonDeviceChanged    ChangeReason = "device_changed"
	ReasonAppeared         ChangeReason = "appeared"
	ReasonDisappeared      ChangeReason = "disappeared"
	ReasonQueueChanged     ChangeReason = "queue_changed"
)

// Provider status reasons.
const (
	StatusReasonBreakerOpen  = "breaker_open"
	StatusReasonAuthExpired  = "auth_expired"
	StatusReasonDisconnected = "disconnected"
	StatusReasonRecovered    = "recovered"
)

// FormattedTrack is a flat, display-ready track. RequesterNickname is only set
// for queue entries matched against the tenant's own approved requests.
type FormattedTrack struct {
	ID                string   `json:"id"`
	URI               string   `json:"uri"`
	Name              string   `json:"name"`
	Artists           []string `json:"artists"`
	ArtistNames       string   `json:"artist_names"`
	AlbumID           string   `json:"album_id,omitempty"`
	AlbumName         string   `json:"album"`
	AlbumImageURL     string   `json:"album_image_url,omitempty"`
	DurationMS        int64    `json:"duration_ms"`
	RequesterNickname string   `json:"requester_nickname,omitempty"`
}

// DeviceView is the subset of DeviceRef shown to clients.
type DeviceView struct {
	Name          string `json:"name"`
	VolumePercent *int   `json:"volume_percent"`
}

// PlaybackState is the playback part of a client's view. ProgressAt is when
// ProgressMS was sampled, in unix milliseconds.
type PlaybackState struct {
	CurrentTrack *FormattedTrack  `json:"current_track"`
	Queue        []FormattedTrack `json:"queue"`
	IsPlaying    bool             `json:"is_playing"`
	ProgressMS   int64            `json:"progress_ms"`
	ProgressAt   int64            `json:"progress_at,omitempty"`
	Device       *DeviceView      `json:"device"`
}

// ChangeEvent is emitted when a tenant's playback or queue changed.
// EmittedAt is unix milliseconds.
type ChangeEvent struct {
	EventID  string `json:"event_id"`
	TenantID string `json:"tenant_id"`
	PlaybackState
	Reasons   []ChangeReason `json:"reasons,omitempty"`
	EmittedAt int64          `json:"emitted_at"`
}

// StatsEvent aggregates a tenant's requests by status.
type StatsEvent struct {
	TenantID          string `json:"tenant_id"`
	Total             int    `json:"total"`
	Pending           int    `json:"pending"`
	Approved          int    `json:"approved"`
	Queued            int    `json:"queued"`
	Rejected          int    `json:"rejected"`
	Played            int    `json:"played"`
	UniqueRequesters  int    `json:"unique_requesters"`
	ProviderConnected bool   `json:"provider_connected"`
	EmittedAt         int64  `json:"emitted_at"`
}

// ProviderStatusEvent tells subscribers that a tenant's provider became
// unavailable or recovered. It is emitted once per transition.
type ProviderStatusEvent struct {
	TenantID  string `json:"tenant_id"`
	Connected bool   `json:"connected"`
	Reason    string `json:"reason"`
	EmittedAt int64  `json:"emitted_at"`
}

// Event is implemented by every payload the watcher emits.
type Event interface {
	EventType() string
	Tenant() string
	Emitted() int64
}

func (e *ChangeEvent) EventType() string { return EventTypePlaybackUpdate }
func (e *ChangeEvent) Tenant() string    { return e.TenantID }
func (e *ChangeEvent) Emitted() int64    { return e.EmittedAt }

func (e *StatsEvent) EventType() string { return EventTypeStatsUpdate }
func (e *StatsEvent) Tenant() string    { return e.TenantID }
func (e *StatsEvent) Emitted() int64    { return e.EmittedAt }

func (e *ProviderStatusEvent) EventType() string { return EventTypeProviderStatus }
func (e *ProviderStatusEvent) Tenant() string    { return e.TenantID }
func (e *ProviderStatusEvent) Emitted() int64    { return e.EmittedAt }

// Envelope is the frame written to every transport.
type Envelope struct {
	Type     string          `json:"type"`
	TenantID string          `json:"tenant_id"`
	Data     json.RawMessage `json:"data"`
}

// NewEnvelope wraps an event for the wire.
func NewEnvelope(e Event) (Envelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", e.EventType(), err)
	}
	return Envelope{Type: e.EventType(), TenantID: e.Tenant(), Data: data}, nil
}

// Decode unmarshals the envelope payload into the matching event type.
func (env Envelope) Decode() (Event, error) {
	var e Event
	switch env.Type {
	case EventTypePlaybackUpdate:
		e = &ChangeEvent{}
	case EventTypeStatsUpdate:
		e = &StatsEvent{}
	case EventTypeProviderStatus:
		e = &ProviderStatusEvent{}
	case EventTypeSnapshot:
		e = &ClientViewState{}
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	if err := json.Unmarshal(env.Data, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	if e.Tenant() != env.TenantID {
		return nil, fmt.Errorf("envelope tenant %q does not match payload tenant %q", env.TenantID, e.Tenant())
	}
	return e, nil
}
