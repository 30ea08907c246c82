// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package models

import "time"

// Tenant is a DJ account with a linked provider credential.
type Tenant struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	CredentialRef string `json:"-"`

	// EventSettings is the tenant's free-form party configuration (title, theme,
	// request limits), passed through to display clients unchanged.
	EventSettings map[string]any `json:"event_settings,omitempty"`
}

// RequestStatus is the lifecycle state of a song request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestQueued   RequestStatus = "queued"
	RequestRejected RequestStatus = "rejected"
	RequestPlayed   RequestStatus = "played"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestQueued, RequestRejected, RequestPlayed:
		return true
	}
	return false
}

// Joinable reports whether requests in this status are matched against the
// provider queue to attach requester nicknames.
func (s RequestStatus) Joinable() bool {
	return s == RequestApproved || s == RequestQueued
}

// SongRequest is a guest's request for a track.
type SongRequest struct {
	ID                string        `json:"id"`
	TenantID          string        `json:"tenant_id"`
	TrackURI          string        `json:"track_uri"`
	TrackID           string        `json:"track_id"`
	TrackName         string        `json:"track_name,omitempty"`
	RequesterNickname string        `json:"requester_nickname"`
	Status            RequestStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
}
