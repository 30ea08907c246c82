// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const playbackBody = `{
  "is_playing": true,
  "progress_ms": 12000,
  "timestamp": 1700000000000,
  "device": {"id": "dev-1", "name": "Kitchen", "type": "Speaker", "volume_percent": 40},
  "item": {
    "id": "trk-1", "name": "Dancing Queen", "uri": "spotify:track:trk-1", "type": "track",
    "duration_ms": 230000,
    "artists": [{"id": "a1", "name": "ABBA"}],
    "album": {"id": "alb-1", "name": "Arrival", "images": [{"url": "https://i.scdn.co/x.jpg", "width": 640, "height": 640}]}
  }
}`

const queueBody = `{
  "currently_playing": {"id": "trk-1", "name": "Dancing Queen", "uri": "spotify:track:trk-1", "duration_ms": 230000},
  "queue": [
    {"id": "trk-2", "name": "Waterloo", "uri": "spotify:track:trk-2", "duration_ms": 164000, "artists": [{"name": "ABBA"}]},
    {"id": "ep-1", "name": "Episode 4", "uri": "spotify:episode:ep-1", "type": "episode", "duration_ms": 1800000,
     "show": {"id": "show-1", "name": "The Show", "images": []}}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
}

func TestGetPlayback_Playing(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != playerPath {
			t.Errorf("path = %s, want %s", r.URL.Path, playerPath)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want Bearer tok-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(playbackBody))
	})

	snap, err := c.GetPlayback(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("GetPlayback() error = %v", err)
	}
	if snap == nil || snap.Track == nil {
		t.Fatal("expected a snapshot with a track")
	}
	if !snap.IsPlaying {
		t.Error("IsPlaying = false, want true")
	}
	if snap.PositionMS != 12000 || snap.DurationMS != 230000 {
		t.Errorf("position/duration = %d/%d, want 12000/230000", snap.PositionMS, snap.DurationMS)
	}
	if snap.Track.ID != "trk-1" || len(snap.Track.Artists) != 1 || snap.Track.Artists[0] != "ABBA" {
		t.Errorf("track = %+v", snap.Track)
	}
	if snap.Device == nil || snap.Device.ID != "dev-1" || snap.Device.VolumePercent == nil || *snap.Device.VolumePercent != 40 {
		t.Errorf("device = %+v", snap.Device)
	}
	if snap.CapturedAt.IsZero() {
		t.Error("CapturedAt not set")
	}
}

func TestGetPlayback_Idle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"no content", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}},
		{"null item", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"is_playing": false, "progress_ms": null, "item": null}`))
		}},
		{"empty body", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, tt.handler)
			snap, err := c.GetPlayback(context.Background(), "tok")
			if err != nil {
				t.Fatalf("GetPlayback() error = %v, want nil", err)
			}
			if snap != nil {
				t.Errorf("GetPlayback() = %+v, want nil", snap)
			}
		})
	}
}

func TestGetPlayback_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		retryAfter string
		body       string
		wantKind   error
		wantStatus int
		wantDelay  time.Duration
	}{
		{"unauthorized", http.StatusUnauthorized, "", `{"error":{"status":401,"message":"The access token expired"}}`, ErrAuthExpired, 401, 0},
		{"forbidden", http.StatusForbidden, "", "", ErrAuthExpired, 403, 0},
		{"rate limited", http.StatusTooManyRequests, "7", "", ErrRateLimited, 429, 7 * time.Second},
		{"rate limited no header", http.StatusTooManyRequests, "", "", ErrRateLimited, 429, defaultRetryAfter},
		{"server error", http.StatusBadGateway, "", "bad gateway", ErrUnreachable, 502, 0},
		{"malformed body", http.StatusOK, "", "{not json", ErrUnreachable, 200, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			snap, err := c.GetPlayback(context.Background(), "tok")
			if snap != nil {
				t.Errorf("snapshot = %+v, want nil", snap)
			}
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("error = %v, want kind %v", err, tt.wantKind)
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error %T is not *Error", err)
			}
			if perr.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", perr.Status, tt.wantStatus)
			}
			if d, ok := RetryAfter(err); ok != (tt.wantKind == ErrRateLimited) || d != tt.wantDelay {
				t.Errorf("RetryAfter() = %v, %v, want %v", d, ok, tt.wantDelay)
			}
		})
	}
}

func TestGetPlayback_NetworkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{BaseURL: url, Timeout: time.Second})
	_, err := c.GetPlayback(context.Background(), "tok")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("error = %v, want ErrUnreachable", err)
	}
}

func TestGetPlayback_EmptyToken(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected without a token")
	})
	_, err := c.GetPlayback(context.Background(), "")
	if !errors.Is(err, ErrCredentialUnavailable) {
		t.Errorf("error = %v, want ErrCredentialUnavailable", err)
	}
}

func TestGetQueue(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != queuePath {
			t.Errorf("path = %s, want %s", r.URL.Path, queuePath)
		}
		_, _ = w.Write([]byte(queueBody))
	})

	q, err := c.GetQueue(context.Background(), "tok")
	if err != nil {
		t.Fatalf("GetQueue() error = %v", err)
	}
	if len(q.Tracks) != 2 {
		t.Fatalf("len(Tracks) = %d, want 2", len(q.Tracks))
	}
	if q.Tracks[0].URI != "spotify:track:trk-2" {
		t.Errorf("Tracks[0].URI = %s", q.Tracks[0].URI)
	}
	if got := q.Tracks[1].Artists; len(got) != 1 || got[0] != "The Show" {
		t.Errorf("episode artists = %v, want [The Show]", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"3", 3 * time.Second},
		{"0", 0},
		{"-1", defaultRetryAfter},
		{"", defaultRetryAfter},
		{"soon", defaultRetryAfter},
		{now.Add(10 * time.Second).Format(http.TimeFormat), 10 * time.Second},
		{now.Add(-10 * time.Second).Format(http.TimeFormat), 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.value, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&Error{Kind: ErrAuthExpired}, "auth_expired"},
		{&Error{Kind: ErrRateLimited}, "rate_limited"},
		{&Error{Kind: ErrCredentialUnavailable}, "no_credential"},
		{&Error{Kind: ErrUnreachable}, "unreachable"},
		{context.DeadlineExceeded, "unreachable"},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
