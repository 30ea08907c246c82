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

// DefaultFrameInterval is the render cadence while playing.
const DefaultFrameInterval = 100 * time.Millisecond

// Animator calls render with the interpolated position on a ticker while
// playback is running.
type Animator struct {
	interp   *Interpolator
	interval time.Duration
	render   func(positionMS int64, fraction float64)

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started int
	last    Reading
	synced  bool
}

// NewAnimator creates an Animator. A zero interval means DefaultFrameInterval.
func NewAnimator(interp *Interpolator, interval time.Duration, render func(positionMS int64, fraction float64)) *Animator {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Animator{interp: interp, interval: interval, render: render}
}

// Sync applies a reading. The ticker is stopped when the track changes or
// playback stops, and started again for a playing track. One frame is
// rendered immediately so paused displays still show the right position.
//
// A reading equal to the previous one is not applied again: views that only
// changed outside playback must not move the baseline. The reading is
// anchored at its SampledAt time when that is known and not in the future.
func (a *Animator) Sync(r Reading) bool {
	a.mu.Lock()
	repeat := a.synced && r == a.last
	a.last, a.synced = r, true
	a.mu.Unlock()
	if repeat {
		a.frame()
		return false
	}

	now := a.interp.Now()
	at := now
	if !r.SampledAt.IsZero() && r.SampledAt.Before(now) {
		at = r.SampledAt
	}
	if r.TrackID != a.interp.TrackID() || !r.IsPlaying {
		a.Stop()
	}
	recalibrated := a.interp.Update(r, at)
	if r.IsPlaying {
		a.start()
	}
	a.frame()
	return recalibrated
}

// SyncView is a reconciler listener.
//
//nolint:gocritic // matches the reconciler listener signature
func (a *Animator) SyncView(view models.ClientViewState) {
	a.Sync(ReadingFromPlayback(view.Playback))
}

// Running reports whether the ticker is active.
func (a *Animator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stop != nil
}

// Starts returns how many tickers have been started.
func (a *Animator) Starts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

func (a *Animator) start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop != nil {
		return
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	a.started++
	go a.loop(a.stop, a.done)
}

// Stop halts the ticker and waits for the render goroutine to exit.
func (a *Animator) Stop() {
	a.mu.Lock()
	stop, done := a.stop, a.done
	a.stop, a.done = nil, nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (a *Animator) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.frame()
		}
	}
}

func (a *Animator) frame() {
	if a.render == nil {
		return
	}
	now := a.interp.Now()
	a.render(a.interp.CurrentPosition(now), a.interp.Fraction(now))
}
