// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package sync

import (
	"strings"

	"github.com/tomtom215/encore/internal/models"
)

// ReasonSet is a bit set of change reasons.
type ReasonSet uint8

const (
	TrackChanged ReasonSet = 1 << iota
	PlayStateChanged
	DeviceChanged
	Appeared
	Disappeared
	QueueChanged
)

var reasonNames = []struct {
	bit    ReasonSet
	reason models.ChangeReason
}{
	{TrackChanged, models.ReasonTrackChanged},
	{PlayStateChanged, models.ReasonPlayStateChanged},
	{DeviceChanged, models.ReasonDeviceChanged},
	{Appeared, models.ReasonAppeared},
	{Disappeared, models.ReasonDisappeared},
	{QueueChanged, models.ReasonQueueChanged},
}

// Has reports whether all bits in r are set.
func (s ReasonSet) Has(r ReasonSet) bool { return s&r == r }

// Reasons lists the set in a stable order.
func (s ReasonSet) Reasons() []models.ChangeReason {
	var out []models.ChangeReason
	for _, rn := range reasonNames {
		if s&rn.bit != 0 {
			out = append(out, rn.reason)
		}
	}
	return out
}

// ChangeResult is the outcome of comparing two snapshots.
type ChangeResult struct {
	Changed bool
	Reasons ReasonSet
}

// Merge combines two results.
func (c ChangeResult) Merge(other ChangeResult) ChangeResult {
	return ChangeResult{
		Changed: c.Changed || other.Changed,
		Reasons: c.Reasons | other.Reasons,
	}
}

// normalizedPlayback is the comparable projection of a PlaybackSnapshot.
// PositionMS and CapturedAt are excluded; they move on every poll.
type normalizedPlayback struct {
	isPlaying  bool
	durationMS int64

	trackID    string
	trackURI   string
	trackName  string
	artists    string
	albumID    string
	albumName  string
	albumImage string

	hasDevice  bool
	deviceID   string
	deviceName string
	deviceType string
	volume     int
	hasVolume  bool
}

func normalizePlayback(p *models.PlaybackSnapshot) normalizedPlayback {
	n := normalizedPlayback{
		isPlaying:  p.IsPlaying,
		durationMS: p.DurationMS,
	}
	if t := p.Track; t != nil {
		n.trackID = t.ID
		n.trackURI = t.URI
		n.trackName = t.Name
		n.artists = strings.Join(t.Artists, "\x00")
		n.albumID = t.Album.ID
		n.albumName = t.Album.Name
		if len(t.Album.Images) > 0 {
			n.albumImage = t.Album.Images[0].URL
		}
	}
	if d := p.Device; d != nil {
		n.hasDevice = true
		n.deviceID = d.ID
		n.deviceName = d.Name
		n.deviceType = d.Type
		if d.VolumePercent != nil {
			n.hasVolume = true
			n.volume = *d.VolumePercent
		}
	}
	return n
}

// DetectPlaybackChange compares two playback snapshots, either of which may be
// nil (nothing playing). Position drift alone is never a change.
func DetectPlaybackChange(prev, cur *models.PlaybackSnapshot) ChangeResult {
	switch {
	case prev == nil && cur == nil:
		return ChangeResult{}
	case prev == nil:
		return ChangeResult{Changed: true, Reasons: Appeared}
	case cur == nil:
		return ChangeResult{Changed: true, Reasons: Disappeared}
	}

	var reasons ReasonSet
	if prev.IsPlaying != cur.IsPlaying {
		reasons |= PlayStateChanged
	}
	if !models.SameTrack(prev.Track, cur.Track) {
		reasons |= TrackChanged
	}
	if deviceID(prev.Device) != deviceID(cur.Device) || (prev.Device == nil) != (cur.Device == nil) {
		reasons |= DeviceChanged
	}

	return ChangeResult{
		Changed: reasons != 0 || normalizePlayback(prev) != normalizePlayback(cur),
		Reasons: reasons,
	}
}

func deviceID(d *models.DeviceRef) string {
	if d == nil {
		return ""
	}
	return d.ID
}

// DetectQueueChange compares two queues by their track identity sequence.
// A nil queue is treated as empty.
func DetectQueueChange(prev, cur *models.QueueSnapshot) ChangeResult {
	var a, b []models.TrackRef
	if prev != nil {
		a = prev.Tracks
	}
	if cur != nil {
		b = cur.Tracks
	}
	if len(a) != len(b) {
		return ChangeResult{Changed: true, Reasons: QueueChanged}
	}
	for i := range a {
		if !models.SameTrack(&a[i], &b[i]) {
			return ChangeResult{Changed: true, Reasons: QueueChanged}
		}
	}
	return ChangeResult{}
}
