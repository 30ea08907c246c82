// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package progress

import (
	"sync"
	"time"

	"github.com/tomtom215/encore/internal/models"
)

const (
	// DefaultTolerance is the largest drift between estimate and report that
	// is absorbed without moving the baseline.
	DefaultTolerance = 2 * time.Second

	// DefaultRecalibrateEvery forces a baseline reset even without drift.
	DefaultRecalibrateEvery = 30 * time.Second
)

// Reading is one reported playback position. SampledAt is when the position
// was observed upstream; zero means unknown.
type Reading struct {
	TrackID    string
	PositionMS int64
	DurationMS int64
	IsPlaying  bool
	SampledAt  time.Time
}

// ReadingFromPlayback extracts a Reading from a client view. A nil state or
// a missing track yields a stopped, empty reading.
func ReadingFromPlayback(pb *models.PlaybackState) Reading {
	if pb == nil || pb.CurrentTrack == nil {
		return Reading{}
	}
	r := Reading{
		TrackID:    pb.CurrentTrack.ID,
		PositionMS: pb.ProgressMS,
		DurationMS: pb.CurrentTrack.DurationMS,
		IsPlaying:  pb.IsPlaying,
	}
	if pb.ProgressAt > 0 {
		r.SampledAt = time.UnixMilli(pb.ProgressAt)
	}
	return r
}

// Interpolator extrapolates playback position. It is safe for concurrent use.
type Interpolator struct {
	clock            func() time.Time
	tolerance        time.Duration
	recalibrateEvery time.Duration

	mu           sync.Mutex
	initialized  bool
	trackID      string
	positionMS   int64
	durationMS   int64
	playing      bool
	baselineAt   time.Time
	calibratedAt time.Time
}

// NewInterpolator creates an Interpolator reading time from clock
// (time.Now when nil).
func NewInterpolator(clock func() time.Time) *Interpolator {
	if clock == nil {
		clock = time.Now
	}
	return &Interpolator{
		clock:            clock,
		tolerance:        DefaultTolerance,
		recalibrateEvery: DefaultRecalibrateEvery,
	}
}

// Update applies a reading observed at now and reports whether the baseline
// was reset to the reported position.
func (i *Interpolator) Update(r Reading, now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.initialized || r.TrackID != i.trackID {
		i.initialized = true
		i.trackID = r.TrackID
		i.calibrate(r, now)
		return true
	}

	estimate := i.positionAt(now)
	drift := time.Duration(abs(r.PositionMS-estimate)) * time.Millisecond
	if drift > i.tolerance || now.Sub(i.calibratedAt) >= i.recalibrateEvery {
		i.calibrate(r, now)
		return true
	}

	if r.IsPlaying != i.playing {
		// Freeze or resume from the estimate so the bar does not jump.
		i.positionMS = estimate
		i.baselineAt = now
		i.playing = r.IsPlaying
	}
	i.durationMS = r.DurationMS
	return false
}

func (i *Interpolator) calibrate(r Reading, now time.Time) {
	i.positionMS = r.PositionMS
	i.durationMS = r.DurationMS
	i.playing = r.IsPlaying
	i.baselineAt = now
	i.calibratedAt = now
}

// CurrentPosition returns the estimated position at now in milliseconds.
func (i *Interpolator) CurrentPosition(now time.Time) int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.positionAt(now)
}

// Position returns the estimated position at the clock's current time.
func (i *Interpolator) Position() int64 {
	return i.CurrentPosition(i.clock())
}

// Now returns the injected clock's time.
func (i *Interpolator) Now() time.Time {
	return i.clock()
}

// TrackID returns the track of the current baseline.
func (i *Interpolator) TrackID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.trackID
}

// Fraction returns the estimated position as a share of the duration in [0, 1].
func (i *Interpolator) Fraction(now time.Time) float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.durationMS <= 0 {
		return 0
	}
	return float64(i.positionAt(now)) / float64(i.durationMS)
}

func (i *Interpolator) positionAt(now time.Time) int64 {
	pos := i.positionMS
	if i.playing {
		if elapsed := now.Sub(i.baselineAt); elapsed > 0 {
			pos += elapsed.Milliseconds()
		}
	}
	if pos < 0 {
		return 0
	}
	if i.durationMS > 0 && pos > i.durationMS {
		return i.durationMS
	}
	return pos
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
