// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package sync

import (
	"strings"
	"time"

	"github.com/tomtom215/encore/internal/models"
)

// nicknameIndex maps track URI to requester nickname for one tenant's
// approved and queued requests. Requests belonging to any other tenant are
// ignored even if the store returned them. The oldest request for a URI wins.
func nicknameIndex(tenantID string, requests []models.SongRequest) map[string]string {
	index := make(map[string]string)
	created := make(map[string]int64)
	for i := range requests {
		r := &requests[i]
		if r.TenantID != tenantID || !r.Status.Joinable() || r.TrackURI == "" || r.RequesterNickname == "" {
			continue
		}
		at := r.CreatedAt.UnixNano()
		if prev, ok := created[r.TrackURI]; ok && prev <= at {
			continue
		}
		index[r.TrackURI] = r.RequesterNickname
		created[r.TrackURI] = at
	}
	return index
}

func formatTrack(t *models.TrackRef) models.FormattedTrack {
	ft := models.FormattedTrack{
		ID:          t.ID,
		URI:         t.URI,
		Name:        t.Name,
		Artists:     t.Artists,
		ArtistNames: strings.Join(t.Artists, ", "),
		AlbumID:     t.Album.ID,
		AlbumName:   t.Album.Name,
		DurationMS:  t.DurationMS,
	}
	if ft.Artists == nil {
		ft.Artists = []string{}
	}
	if len(t.Album.Images) > 0 {
		ft.AlbumImageURL = t.Album.Images[0].URL
	}
	return ft
}

// formatPlaybackState builds the client-facing view. Nicknames are joined on
// queue entries only.
func formatPlaybackState(playback *models.PlaybackSnapshot, queue *models.QueueSnapshot, nicknames map[string]string) *models.PlaybackState {
	state := &models.PlaybackState{Queue: []models.FormattedTrack{}}

	if playback != nil {
		state.IsPlaying = playback.IsPlaying
		state.ProgressMS = playback.PositionMS
		if playback.Track != nil {
			ct := formatTrack(playback.Track)
			state.CurrentTrack = &ct
		}
		if d := playback.Device; d != nil {
			state.Device = &models.DeviceView{Name: d.Name, VolumePercent: d.VolumePercent}
		}
	}

	if queue != nil {
		for i := range queue.Tracks {
			ft := formatTrack(&queue.Tracks[i])
			ft.RequesterNickname = nicknames[ft.URI]
			state.Queue = append(state.Queue, ft)
		}
	}
	return state
}

// projectProgress advances a playing track's position from its sample time
// to now, clamped to the track duration.
//
//nolint:gocritic // value in, value out
func projectProgress(pb models.PlaybackState, now time.Time) models.PlaybackState {
	if !pb.IsPlaying || pb.ProgressAt == 0 {
		return pb
	}
	if elapsed := now.UnixMilli() - pb.ProgressAt; elapsed > 0 {
		pb.ProgressMS += elapsed
		pb.ProgressAt = now.UnixMilli()
	}
	if pb.CurrentTrack != nil && pb.CurrentTrack.DurationMS > 0 {
		pb.ProgressMS = min(pb.ProgressMS, pb.CurrentTrack.DurationMS)
	}
	return pb
}

// aggregateStats counts a tenant's requests by status. Requests for other
// tenants are skipped.
func aggregateStats(tenantID string, requests []models.SongRequest) models.StatsEvent {
	stats := models.StatsEvent{TenantID: tenantID}
	requesters := make(map[string]struct{})
	for i := range requests {
		r := &requests[i]
		if r.TenantID != tenantID {
			continue
		}
		stats.Total++
		switch r.Status {
		case models.RequestPending:
			stats.Pending++
		case models.RequestApproved:
			stats.Approved++
		case models.RequestQueued:
			stats.Queued++
		case models.RequestRejected:
			stats.Rejected++
		case models.RequestPlayed:
			stats.Played++
		}
		if nick := strings.ToLower(strings.TrimSpace(r.RequesterNickname)); nick != "" {
			requesters[nick] = struct{}{}
		}
	}
	stats.UniqueRequesters = len(requesters)
	return stats
}

// filterTenant returns only the requests belonging to tenantID.
func filterTenant(tenantID string, requests []models.SongRequest) []models.SongRequest {
	out := make([]models.SongRequest, 0, len(requests))
	for i := range requests {
		if requests[i].TenantID == tenantID {
			out = append(out, requests[i])
		}
	}
	return out
}
