// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tomtom215/encore/internal/models"
)

func TestFormatClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{83000, "1:23"},
		{180000, "3:00"},
		{3725000, "62:05"},
		{-5, "0:00"},
	}
	for _, tt := range tests {
		if got := formatClock(tt.ms); got != tt.want {
			t.Errorf("formatClock(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestProgressBar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fraction float64
		want     string
	}{
		{0, "[----]"},
		{0.5, "[##--]"},
		{1, "[####]"},
		{2, "[####]"},
		{-1, "[----]"},
	}
	for _, tt := range tests {
		if got := progressBar(tt.fraction, 4); got != tt.want {
			t.Errorf("progressBar(%v) = %q, want %q", tt.fraction, got, tt.want)
		}
	}
}

func TestScreen_Frame(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewScreen(&buf)
	s.Frame(0, 0)
	if !strings.Contains(buf.String(), "Nothing playing") {
		t.Errorf("empty view = %q, want Nothing playing", buf.String())
	}

	s.SetView(models.ClientViewState{
		TenantID: "dj-1",
		Playback: &models.PlaybackState{
			CurrentTrack: &models.FormattedTrack{Name: "Dancing Queen", ArtistNames: "ABBA", DurationMS: 180000},
			Queue:        []models.FormattedTrack{{Name: "Waterloo", RequesterNickname: "ana"}},
			IsPlaying:    true,
		},
		ProviderConnected: true,
		EmittedAt:         1,
	})
	buf.Reset()
	s.Frame(83000, 0.46)

	out := buf.String()
	for _, want := range []string{"Dancing Queen", "ABBA", "1:23 / 3:00", "next: Waterloo (requested by ana)"} {
		if !strings.Contains(out, want) {
			t.Errorf("Frame() = %q, missing %q", out, want)
		}
	}
	if strings.Contains(out, "provider offline") {
		t.Errorf("Frame() = %q, unexpected offline marker", out)
	}
}

func TestScreen_ProviderOffline(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewScreen(&buf)
	s.SetView(models.ClientViewState{TenantID: "dj-1", EmittedAt: 5})
	s.Frame(0, 0)
	if !strings.Contains(buf.String(), "provider offline") {
		t.Errorf("Frame() = %q, want offline marker", buf.String())
	}
}
