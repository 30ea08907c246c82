// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/encore/internal/models"
	"github.com/tomtom215/encore/internal/progress"
)

func mustEnvelope(t *testing.T, e models.Event) models.Envelope {
	t.Helper()
	env, err := models.NewEnvelope(e)
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	return env
}

func playbackEvent(emittedAt, progress int64, playing bool) *models.ChangeEvent {
	return &models.ChangeEvent{
		EventID:  "evt",
		TenantID: "dj-1",
		PlaybackState: models.PlaybackState{
			CurrentTrack: &models.FormattedTrack{ID: "t1", Name: "Dancing Queen", DurationMS: 180000},
			Queue:        []models.FormattedTrack{},
			IsPlaying:    playing,
			ProgressMS:   progress,
		},
		EmittedAt: emittedAt,
	}
}

func newCountingReconciler(opts Options) (*Reconciler, *atomic.Int32) {
	if opts.TenantID == "" {
		opts.TenantID = "dj-1"
	}
	r := NewReconciler(opts)
	var calls atomic.Int32
	r.Subscribe(func(models.ClientViewState) { calls.Add(1) })
	return r, &calls
}

func TestOnEvent_IdenticalPayloadAppliedOnce(t *testing.T) {
	t.Parallel()

	r, calls := newCountingReconciler(Options{})
	env := mustEnvelope(t, playbackEvent(100, 10000, true))

	if !r.OnEvent(env) {
		t.Fatal("first OnEvent() = false, want true")
	}
	if r.OnEvent(env) {
		t.Error("second OnEvent() = true, want false")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("listener calls = %d, want 1", got)
	}
	if got := r.Stats(); got.Applied != 1 || got.Duplicates != 1 {
		t.Errorf("Stats() = %+v, want 1 applied 1 duplicate", got)
	}
}

func TestOnEvent_NewerTimestampSameContentIsDuplicate(t *testing.T) {
	t.Parallel()

	r, calls := newCountingReconciler(Options{})
	r.OnEvent(mustEnvelope(t, playbackEvent(100, 10000, true)))
	if r.OnEvent(mustEnvelope(t, playbackEvent(200, 10000, true))) {
		t.Error("OnEvent() = true for unchanged content, want false")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("listener calls = %d, want 1", got)
	}
	if got := r.State().EmittedAt; got != 200 {
		t.Errorf("EmittedAt = %d, want 200", got)
	}
}

func TestOnEvent_DropsStaleEvents(t *testing.T) {
	t.Parallel()

	r, calls := newCountingReconciler(Options{})
	r.OnEvent(mustEnvelope(t, playbackEvent(200, 20000, true)))

	if r.OnEvent(mustEnvelope(t, playbackEvent(150, 5000, false))) {
		t.Error("OnEvent() = true for older event, want false")
	}
	view := r.State()
	if !view.Playback.IsPlaying || view.Playback.ProgressMS != 20000 {
		t.Errorf("playback = %+v, want the newer state", view.Playback)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("listener calls = %d, want 1", got)
	}
	if got := r.Stats().Stale; got != 1 {
		t.Errorf("Stale = %d, want 1", got)
	}
}

func TestOnEvent_Merges(t *testing.T) {
	t.Parallel()

	r, _ := newCountingReconciler(Options{})

	snapshot := &models.ClientViewState{
		TenantID: "dj-1",
		Requests: []models.SongRequest{
			{ID: "r1", TenantID: "dj-1", TrackID: "t1", RequesterNickname: "ana", Status: models.RequestApproved},
		},
		EventSettings:     map[string]any{"title": "Prom"},
		ProviderConnected: true,
		EmittedAt:         10,
	}
	if !r.OnEvent(mustEnvelope(t, snapshot)) {
		t.Fatal("snapshot not applied")
	}

	r.OnEvent(mustEnvelope(t, playbackEvent(20, 1000, true)))
	r.OnEvent(mustEnvelope(t, &models.StatsEvent{TenantID: "dj-1", Total: 3, Approved: 1, ProviderConnected: true, EmittedAt: 30}))
	r.OnEvent(mustEnvelope(t, &models.ProviderStatusEvent{TenantID: "dj-1", Connected: false, Reason: models.StatusReasonBreakerOpen, EmittedAt: 40}))

	view := r.State()
	if len(view.Requests) != 1 || view.EventSettings["title"] != "Prom" {
		t.Errorf("snapshot fields lost: %+v", view)
	}
	if view.Playback == nil || view.Playback.CurrentTrack.ID != "t1" {
		t.Errorf("Playback = %+v, want t1", view.Playback)
	}
	if view.Stats == nil || view.Stats.Total != 3 {
		t.Errorf("Stats = %+v, want total 3", view.Stats)
	}
	if view.ProviderConnected {
		t.Error("ProviderConnected = true after provider-status down")
	}
	if view.EmittedAt != 40 {
		t.Errorf("EmittedAt = %d, want 40", view.EmittedAt)
	}
}

func TestOnEvent_RejectsForeignTenantAndGarbage(t *testing.T) {
	t.Parallel()

	r, calls := newCountingReconciler(Options{})
	foreign := playbackEvent(1, 0, true)
	foreign.TenantID = "dj-2"
	if r.OnEvent(mustEnvelope(t, foreign)) {
		t.Error("OnEvent() applied another tenant's event")
	}
	if r.OnEvent(models.Envelope{Type: "bogus", TenantID: "dj-1", Data: []byte(`{}`)}) {
		t.Error("OnEvent() applied an unknown event type")
	}
	if calls.Load() != 0 || r.Stats().Rejected != 2 {
		t.Errorf("calls = %d, stats = %+v, want 0 calls 2 rejected", calls.Load(), r.Stats())
	}
}

// scriptedSource runs fn for each Run call and counts attempts.
type scriptedSource struct {
	attempts atomic.Int32
	fn       func(ctx context.Context, attempt int32, sink func(models.Envelope)) error
}

func (s *scriptedSource) Run(ctx context.Context, sink func(models.Envelope)) error {
	return s.fn(ctx, s.attempts.Add(1), sink)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRun_FallsBackToPollAndRetriesPush(t *testing.T) {
	t.Parallel()

	push := &scriptedSource{fn: func(ctx context.Context, attempt int32, sink func(models.Envelope)) error {
		if attempt == 1 {
			return ErrPushClosed
		}
		<-ctx.Done()
		return ctx.Err()
	}}
	var polled atomic.Int32
	poll := &scriptedSource{}
	poll.fn = func(ctx context.Context, _ int32, sink func(models.Envelope)) error {
		polled.Add(1)
		sink(models.Envelope{})
		<-ctx.Done()
		return ctx.Err()
	}

	r := NewReconciler(Options{TenantID: "dj-1", Push: push, Poll: poll, PushRetry: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	waitFor(t, "poll fallback", func() bool { return polled.Load() >= 1 })
	waitFor(t, "push retry", func() bool { return push.attempts.Load() >= 2 && r.Mode() == ModePush })
	if got := r.Stats().Fallbacks; got != 1 {
		t.Errorf("Fallbacks = %d, want 1", got)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if r.Mode() != ModeIdle {
		t.Errorf("Mode() = %s, want idle", r.Mode())
	}
}

func TestOnDisconnect_CancelsPush(t *testing.T) {
	t.Parallel()

	var pushCancelled sync.WaitGroup
	pushCancelled.Add(1)
	push := &scriptedSource{fn: func(ctx context.Context, attempt int32, _ func(models.Envelope)) error {
		<-ctx.Done()
		if attempt == 1 {
			pushCancelled.Done()
		}
		return ErrPushClosed
	}}
	poll := &scriptedSource{fn: func(ctx context.Context, _ int32, _ func(models.Envelope)) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	r := NewReconciler(Options{TenantID: "dj-1", Push: push, Poll: poll, PushRetry: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	waitFor(t, "push mode", func() bool { return r.Mode() == ModePush })
	r.OnDisconnect()
	pushCancelled.Wait()
	waitFor(t, "poll mode", func() bool { return r.Mode() == ModePoll })

	r.OnDisconnect()
	if got := r.Stats().Fallbacks; got != 1 {
		t.Errorf("Fallbacks = %d, want 1", got)
	}
}

func TestRun_NoSources(t *testing.T) {
	t.Parallel()

	if err := NewReconciler(Options{TenantID: "dj-1"}).Run(context.Background()); err == nil {
		t.Error("Run() error = nil, want error")
	}
}

func TestRun_PollOnlyReturnsSourceError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("poll source gone")
	poll := &scriptedSource{fn: func(context.Context, int32, func(models.Envelope)) error { return wantErr }}

	r := NewReconciler(Options{TenantID: "dj-1", Poll: poll})
	if err := r.Run(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Run() error = %v, want %v", err, wantErr)
	}
	if got := poll.attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestReconciler_NonPlaybackEventsKeepProgressBaseline(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	now := start
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		clockMu.Lock()
		defer clockMu.Unlock()
		now = now.Add(d)
	}

	interp := progress.NewInterpolator(clock)
	animator := progress.NewAnimator(interp, time.Hour, nil)
	t.Cleanup(animator.Stop)

	r := NewReconciler(Options{TenantID: "dj-1"})
	r.Subscribe(animator.SyncView)

	change := playbackEvent(start.UnixMilli(), 10000, true)
	change.ProgressAt = start.UnixMilli()
	if !r.OnEvent(mustEnvelope(t, change)) {
		t.Fatal("OnEvent(change) = false")
	}

	advance(25 * time.Second)
	stats := &models.StatsEvent{TenantID: "dj-1", Total: 3, ProviderConnected: true, EmittedAt: clock().UnixMilli()}
	if !r.OnEvent(mustEnvelope(t, stats)) {
		t.Fatal("OnEvent(stats) = false, want view change")
	}
	if got := interp.Position(); got != 35000 {
		t.Errorf("Position() after stats = %d, want 35000", got)
	}

	advance(time.Second)
	status := &models.ProviderStatusEvent{TenantID: "dj-1", Connected: false, Reason: models.StatusReasonBreakerOpen, EmittedAt: clock().UnixMilli()}
	r.OnEvent(mustEnvelope(t, status))
	if got := interp.Position(); got != 36000 {
		t.Errorf("Position() after provider-status = %d, want 36000", got)
	}

	// A snapshot carrying the same playback is not a new reading either.
	advance(time.Second)
	view := r.State()
	view.ProviderConnected = true
	view.EmittedAt = clock().UnixMilli()
	r.OnEvent(mustEnvelope(t, &view))
	if got := interp.Position(); got != 37000 {
		t.Errorf("Position() after snapshot = %d, want 37000", got)
	}

	// A fresh sample within tolerance moves nothing visibly.
	advance(time.Second)
	fresh := r.State()
	pb := *fresh.Playback
	pb.ProgressMS = 38000
	pb.ProgressAt = clock().UnixMilli()
	fresh.Playback = &pb
	fresh.EmittedAt = clock().UnixMilli()
	r.OnEvent(mustEnvelope(t, &fresh))
	if got := interp.Position(); got != 38000 {
		t.Errorf("Position() after fresh snapshot = %d, want 38000", got)
	}
}
