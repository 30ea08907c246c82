// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

// Package progress estimates track position between playback updates.
//
// Interpolator is a pure function of elapsed time: the baseline is the last
// reported position and the instant it was applied, and CurrentPosition adds
// the time since then while playing, clamped to the track duration. A fresh
// report only moves the baseline when it disagrees with the estimate by more
// than Tolerance, when RecalibrateEvery has passed, or when the track changed.
//
// Animator owns the 100ms render ticker and stops it whenever playback
// pauses or the track changes.
package progress
