// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package provider

import (
	"time"

	"github.com/tomtom215/encore/internal/models"
)

// Spotify Web API response types, trimmed to the fields Encore reads.
// https://developer.spotify.com/documentation/web-api/reference/get-information-about-the-users-current-playback

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

// spotifyItem is a track or, for podcasts, an episode (which has a show instead of artists).
type spotifyItem struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	URI        string          `json:"uri"`
	Type       string          `json:"type"`
	DurationMS int64           `json:"duration_ms"`
	Artists    []spotifyArtist `json:"artists"`
	Album      spotifyAlbum    `json:"album"`
	Show       *struct {
		ID     string         `json:"id"`
		Name   string         `json:"name"`
		Images []spotifyImage `json:"images"`
	} `json:"show,omitempty"`
}

type spotifyDevice struct {
	ID            *string `json:"id"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	VolumePercent *int    `json:"volume_percent"`
}

type spotifyPlayback struct {
	IsPlaying  bool           `json:"is_playing"`
	ProgressMS *int64         `json:"progress_ms"`
	Timestamp  int64          `json:"timestamp"`
	Device     *spotifyDevice `json:"device"`
	Item       *spotifyItem   `json:"item"`
}

type spotifyQueue struct {
	CurrentlyPlaying *spotifyItem  `json:"currently_playing"`
	Queue            []spotifyItem `json:"queue"`
}

func (it *spotifyItem) toTrackRef() *models.TrackRef {
	if it == nil {
		return nil
	}
	ref := &models.TrackRef{
		ID:         it.ID,
		Name:       it.Name,
		URI:        it.URI,
		DurationMS: it.DurationMS,
		Album: models.AlbumRef{
			ID:     it.Album.ID,
			Name:   it.Album.Name,
			Images: toImages(it.Album.Images),
		},
	}
	for _, a := range it.Artists {
		ref.Artists = append(ref.Artists, a.Name)
	}
	if it.Show != nil {
		ref.Artists = []string{it.Show.Name}
		ref.Album = models.AlbumRef{ID: it.Show.ID, Name: it.Show.Name, Images: toImages(it.Show.Images)}
	}
	return ref
}

func toImages(in []spotifyImage) []models.Image {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Image, len(in))
	for i, img := range in {
		out[i] = models.Image{URL: img.URL, Width: img.Width, Height: img.Height}
	}
	return out
}

func (d *spotifyDevice) toDeviceRef() *models.DeviceRef {
	if d == nil {
		return nil
	}
	ref := &models.DeviceRef{Name: d.Name, Type: d.Type}
	if d.ID != nil {
		ref.ID = *d.ID
	}
	if d.VolumePercent != nil {
		v := *d.VolumePercent
		ref.VolumePercent = &v
	}
	return ref
}

// toSnapshot converts a /me/player body. An absent item means nothing is loaded,
// which is reported as a nil snapshot.
func (p *spotifyPlayback) toSnapshot(capturedAt time.Time) *models.PlaybackSnapshot {
	if p.Item == nil {
		return nil
	}
	snap := &models.PlaybackSnapshot{
		IsPlaying:  p.IsPlaying,
		Track:      p.Item.toTrackRef(),
		Device:     p.Device.toDeviceRef(),
		DurationMS: max(p.Item.DurationMS, 0),
		CapturedAt: capturedAt,
	}
	if p.ProgressMS != nil {
		snap.PositionMS = min(max(*p.ProgressMS, 0), snap.DurationMS)
	}
	return snap
}

func (q *spotifyQueue) toSnapshot(capturedAt time.Time) *models.QueueSnapshot {
	snap := &models.QueueSnapshot{
		Tracks:     make([]models.TrackRef, 0, len(q.Queue)),
		CapturedAt: capturedAt,
	}
	for i := range q.Queue {
		snap.Tracks = append(snap.Tracks, *q.Queue[i].toTrackRef())
	}
	return snap
}
