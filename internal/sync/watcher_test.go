// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package sync

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/tomtom215/encore/internal/models"
	"github.com/tomtom215/encore/internal/provider"
)

func mustPoll(t *testing.T, w *Watcher) {
	t.Helper()
	if err := w.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}
}

func TestWatcher_IgnoresPositionDriftAndEmitsOnPause(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "dj")
	f.provider.setPlayback("dj", snapshot("t1", true, 10000))

	mustPoll(t, f.watcher)
	if got := len(f.pub.changes("dj")); got != 1 {
		t.Fatalf("first poll emitted %d events, want 1", got)
	}

	for i := 1; i <= 3; i++ {
		f.clock.Advance(5 * time.Second)
		f.provider.setPlayback("dj", snapshot("t1", true, 10000+int64(i)*5000))
		mustPoll(t, f.watcher)
	}
	if got := len(f.pub.changes("dj")); got != 1 {
		t.Fatalf("identical polls emitted %d extra events, want 0", got-1)
	}

	f.clock.Advance(5 * time.Second)
	f.provider.setPlayback("dj", snapshot("t1", false, 30000))
	mustPoll(t, f.watcher)

	changes := f.pub.changes("dj")
	if len(changes) != 2 {
		t.Fatalf("events after pause = %d, want 2", len(changes))
	}
	last := changes[1]
	if !slices.Contains(last.Reasons, models.ReasonPlayStateChanged) {
		t.Errorf("Reasons = %v, want play_state_changed", last.Reasons)
	}
	if last.IsPlaying {
		t.Error("IsPlaying = true in pause event")
	}
	if last.ProgressMS != 30000 {
		t.Errorf("ProgressMS = %d, want 30000", last.ProgressMS)
	}
	if last.EmittedAt < changes[0].EmittedAt {
		t.Errorf("EmittedAt went backwards: %d < %d", last.EmittedAt, changes[0].EmittedAt)
	}
}

func TestWatcher_TrackChangeReason(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "dj")
	f.provider.setPlayback("dj", snapshot("t1", true, 0))
	mustPoll(t, f.watcher)

	f.clock.Advance(5 * time.Second)
	f.provider.setPlayback("dj", snapshot("t2", true, 0))
	mustPoll(t, f.watcher)

	changes := f.pub.changes("dj")
	if len(changes) != 2 {
		t.Fatalf("events = %d, want 2", len(changes))
	}
	if !slices.Contains(changes[1].Reasons, models.ReasonTrackChanged) {
		t.Errorf("Reasons = %v, want track_changed", changes[1].Reasons)
	}
	if changes[1].CurrentTrack == nil || changes[1].CurrentTrack.ID != "t2" {
		t.Errorf("CurrentTrack = %+v, want t2", changes[1].CurrentTrack)
	}
}

func TestWatcher_QueuePolledOnItsOwnCadence(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "dj")
	f.provider.setPlayback("dj", snapshot("t1", true, 0))

	mustPoll(t, f.watcher)
	f.clock.Advance(5 * time.Second)
	mustPoll(t, f.watcher)

	playback, queue := f.provider.calls("dj")
	if playback != 2 {
		t.Errorf("playback calls = %d, want 2", playback)
	}
	if queue != 1 {
		t.Errorf("queue calls = %d, want 1 across two polls 5s apart", queue)
	}

	f.clock.Advance(15 * time.Second)
	mustPoll(t, f.watcher)
	if _, queue = f.provider.calls("dj"); queue != 2 {
		t.Errorf("queue calls = %d, want 2 once 20s elapsed", queue)
	}
}

func TestWatcher_QueueChangeEmits(t *testing.T) {
	t.Parallel()

	cfg := testWatcherConfig()
	cfg.QueueInterval = cfg.Interval
	f := newWatcherFixture(cfg, "dj")
	f.provider.setPlayback("dj", snapshot("t1", true, 0))
	f.provider.setQueue("dj", queueOf("q1"))
	mustPoll(t, f.watcher)

	f.clock.Advance(5 * time.Second)
	f.provider.setQueue("dj", queueOf("q1", "q2"))
	mustPoll(t, f.watcher)

	changes := f.pub.changes("dj")
	if len(changes) != 2 {
		t.Fatalf("events = %d, want 2", len(changes))
	}
	if !slices.Equal(changes[1].Reasons, []models.ChangeReason{models.ReasonQueueChanged}) {
		t.Errorf("Reasons = %v, want [queue_changed]", changes[1].Reasons)
	}
	if len(changes[1].Queue) != 2 {
		t.Errorf("len(Queue) = %d, want 2", len(changes[1].Queue))
	}
}

func TestWatcher_NoCrossTenantNicknameLeak(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "alpha", "beta", "gamma")
	shared := queueOf("shared")
	for _, id := range []string{"alpha", "beta", "gamma"} {
		f.provider.setPlayback(id, snapshot("now-"+id, true, 0))
		f.provider.setQueue(id, shared)
	}
	f.store.requests = []models.SongRequest{
		request("alpha", "spotify:track:shared", "ann", models.RequestApproved, time.Minute),
		request("beta", "spotify:track:shared", "ben", models.RequestQueued, time.Minute),
		request("gamma", "spotify:track:shared", "gia", models.RequestPending, time.Minute),
	}

	mustPoll(t, f.watcher)

	want := map[string]string{"alpha": "ann", "beta": "ben", "gamma": ""}
	for tenant, nick := range want {
		changes := f.pub.changes(tenant)
		if len(changes) != 1 {
			t.Fatalf("%s: events = %d, want 1", tenant, len(changes))
		}
		ev := changes[0]
		if ev.TenantID != tenant {
			t.Errorf("%s: TenantID = %q", tenant, ev.TenantID)
		}
		if len(ev.Queue) != 1 || ev.Queue[0].RequesterNickname != nick {
			t.Errorf("%s: queue nickname = %+v, want %q", tenant, ev.Queue, nick)
		}
		if ev.CurrentTrack == nil || ev.CurrentTrack.ID != "now-"+tenant {
			t.Errorf("%s: CurrentTrack = %+v", tenant, ev.CurrentTrack)
		}
	}
}

func TestWatcher_FailuresKeepStateAndSignalOnce(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "down", "up")
	f.provider.setPlayback("down", snapshot("t1", true, 1000))
	f.provider.setPlayback("up", snapshot("u1", true, 1000))
	mustPoll(t, f.watcher)

	before, _ := f.watcher.TenantState("down")
	f.provider.setPlaybackErr("down", &provider.Error{Kind: provider.ErrUnreachable, Status: 503})

	for range 4 {
		f.clock.Advance(5 * time.Second)
		mustPoll(t, f.watcher)
	}

	after, _ := f.watcher.TenantState("down")
	if after.LastPlayback != before.LastPlayback {
		t.Error("failed polls replaced last playback")
	}
	if after.FailureCount != 3 {
		t.Errorf("FailureCount = %d, want 3 (fourth cycle skipped by breaker)", after.FailureCount)
	}
	if after.ProviderConnected {
		t.Error("ProviderConnected = true with open breaker")
	}

	statuses := f.pub.statuses("down")
	if len(statuses) != 1 {
		t.Fatalf("provider-status events = %d, want 1", len(statuses))
	}
	if statuses[0].Connected || statuses[0].Reason != models.StatusReasonBreakerOpen {
		t.Errorf("status = %+v, want disconnected/breaker_open", statuses[0])
	}

	if calls, _ := f.provider.calls("down"); calls != 4 {
		t.Errorf("provider calls = %d, want 4 (1 ok + 3 failures)", calls)
	}
	if got := f.watcher.breaker.State("up"); got != "closed" {
		t.Errorf("healthy tenant breaker = %q, want closed", got)
	}
	if len(f.pub.statuses("up")) != 0 {
		t.Error("healthy tenant received a provider-status event")
	}
}

func TestWatcher_RecoverySignal(t *testing.T) {
	t.Parallel()

	cfg := testWatcherConfig()
	cfg.BreakerThreshold = 1
	cfg.BreakerCooldown = 30 * time.Millisecond
	f := newWatcherFixture(cfg, "dj")
	f.provider.setPlayback("dj", snapshot("t1", true, 0))
	f.provider.setPlaybackErr("dj", &provider.Error{Kind: provider.ErrUnreachable})

	mustPoll(t, f.watcher)
	if got := len(f.pub.statuses("dj")); got != 1 {
		t.Fatalf("statuses after opening = %d, want 1", got)
	}

	f.provider.setPlaybackErr("dj", nil)
	time.Sleep(50 * time.Millisecond)
	mustPoll(t, f.watcher)

	statuses := f.pub.statuses("dj")
	if len(statuses) != 2 {
		t.Fatalf("statuses = %d, want 2", len(statuses))
	}
	if !statuses[1].Connected || statuses[1].Reason != models.StatusReasonRecovered {
		t.Errorf("status = %+v, want connected/recovered", statuses[1])
	}

	mustPoll(t, f.watcher)
	if got := len(f.pub.statuses("dj")); got != 2 {
		t.Errorf("statuses after steady success = %d, want 2", got)
	}
}

func TestWatcher_RateLimitDefersTenant(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "dj")
	f.provider.setPlaybackErr("dj", &provider.Error{Kind: provider.ErrRateLimited, Status: 429, RetryAfter: 10 * time.Second})
	mustPoll(t, f.watcher)

	f.provider.setPlaybackErr("dj", nil)
	f.provider.setPlayback("dj", snapshot("t1", true, 0))

	f.clock.Advance(5 * time.Second)
	mustPoll(t, f.watcher)
	if calls, _ := f.provider.calls("dj"); calls != 1 {
		t.Errorf("calls during Retry-After = %d, want 1", calls)
	}

	f.clock.Advance(6 * time.Second)
	mustPoll(t, f.watcher)
	if calls, _ := f.provider.calls("dj"); calls != 2 {
		t.Errorf("calls after Retry-After = %d, want 2", calls)
	}
	if got := len(f.pub.changes("dj")); got != 1 {
		t.Errorf("change events = %d, want 1", got)
	}
}

func TestWatcher_AuthExpiredUntilReconnect(t *testing.T) {
	t.Parallel()

	cfg := testWatcherConfig()
	cfg.BreakerCooldown = 10 * time.Millisecond
	f := newWatcherFixture(cfg, "dj")
	f.provider.setPlaybackErr("dj", &provider.Error{Kind: provider.ErrAuthExpired, Status: 401})

	mustPoll(t, f.watcher)
	statuses := f.pub.statuses("dj")
	if len(statuses) != 1 || statuses[0].Reason != models.StatusReasonAuthExpired {
		t.Fatalf("statuses = %+v, want one auth_expired", statuses)
	}

	f.provider.setPlaybackErr("dj", nil)
	f.provider.setPlayback("dj", snapshot("t1", true, 0))
	time.Sleep(30 * time.Millisecond)
	mustPoll(t, f.watcher)
	if calls, _ := f.provider.calls("dj"); calls != 1 {
		t.Errorf("calls while auth expired = %d, want 1", calls)
	}

	f.watcher.ReconnectTenant("dj")
	mustPoll(t, f.watcher)
	if calls, _ := f.provider.calls("dj"); calls != 2 {
		t.Errorf("calls after reconnect = %d, want 2", calls)
	}
	statuses = f.pub.statuses("dj")
	if len(statuses) != 2 || !statuses[1].Connected {
		t.Errorf("statuses = %+v, want recovery after reconnect", statuses)
	}
}

func TestWatcher_StorageJoinFailureStillEmits(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "dj")
	f.provider.setPlayback("dj", snapshot("t1", true, 0))
	f.provider.setQueue("dj", queueOf("q1"))
	f.store.requests = []models.SongRequest{request("dj", "spotify:track:q1", "ann", models.RequestApproved, 0)}
	f.store.requestsErr = errors.New("database is locked")

	mustPoll(t, f.watcher)

	changes := f.pub.changes("dj")
	if len(changes) != 1 {
		t.Fatalf("events = %d, want 1", len(changes))
	}
	if changes[0].Queue[0].RequesterNickname != "" {
		t.Errorf("nickname = %q, want none", changes[0].Queue[0].RequesterNickname)
	}
}

func TestWatcher_EmitStatsOnce(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "a", "b")
	f.store.requests = []models.SongRequest{
		request("a", "u1", "ann", models.RequestPending, 0),
		request("a", "u2", "amy", models.RequestApproved, 0),
		request("b", "u3", "ben", models.RequestPlayed, 0),
	}

	if err := f.watcher.EmitStatsOnce(context.Background()); err != nil {
		t.Fatalf("EmitStatsOnce() error = %v", err)
	}

	a := f.pub.stats("a")
	if len(a) != 1 {
		t.Fatalf("stats events for a = %d, want 1", len(a))
	}
	if a[0].Total != 2 || a[0].Pending != 1 || a[0].Approved != 1 || a[0].UniqueRequesters != 2 {
		t.Errorf("stats a = %+v", a[0])
	}
	if !a[0].ProviderConnected {
		t.Error("ProviderConnected = false for healthy tenant")
	}
	if b := f.pub.stats("b"); len(b) != 1 || b[0].Total != 1 || b[0].Played != 1 {
		t.Errorf("stats b = %+v", b)
	}
}

func TestWatcher_Snapshot(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "dj")
	f.provider.setPlayback("dj", snapshot("t1", true, 5000))
	f.store.requests = []models.SongRequest{
		request("dj", "u1", "ann", models.RequestPending, 0),
		request("other", "u2", "eve", models.RequestPending, 0),
	}

	view, err := f.watcher.Snapshot(context.Background(), "dj")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if view.Playback != nil {
		t.Error("Playback set before the first poll")
	}

	mustPoll(t, f.watcher)
	if err := f.watcher.EmitStatsOnce(context.Background()); err != nil {
		t.Fatalf("EmitStatsOnce() error = %v", err)
	}

	view, err = f.watcher.Snapshot(context.Background(), "dj")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(view.Requests) != 1 || view.Requests[0].TenantID != "dj" {
		t.Errorf("Requests = %+v, want only dj's", view.Requests)
	}
	if view.Playback == nil || view.Playback.CurrentTrack == nil || view.Playback.CurrentTrack.ID != "t1" {
		t.Errorf("Playback = %+v", view.Playback)
	}
	if view.Stats == nil || view.Stats.Total != 1 {
		t.Errorf("Stats = %+v", view.Stats)
	}
	if !view.ProviderConnected {
		t.Error("ProviderConnected = false")
	}
	if view.EmittedAt == 0 {
		t.Error("EmittedAt not set")
	}
}

func TestWatcher_SnapshotReportsCurrentPosition(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "dj")
	f.provider.setPlayback("dj", snapshot("t1", true, 5000))
	mustPoll(t, f.watcher)

	for i := 1; i <= 12; i++ {
		f.clock.Advance(5 * time.Second)
		f.provider.setPlayback("dj", snapshot("t1", true, 5000+int64(i)*5000))
		mustPoll(t, f.watcher)
	}
	if err := f.watcher.EmitStatsOnce(context.Background()); err != nil {
		t.Fatalf("EmitStatsOnce() error = %v", err)
	}
	if got := len(f.pub.changes("dj")); got != 1 {
		t.Fatalf("changes = %d, want 1", got)
	}

	view, err := f.watcher.Snapshot(context.Background(), "dj")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if got := view.Playback.ProgressMS; got != 65000 {
		t.Errorf("ProgressMS = %d, want 65000", got)
	}
	if got, want := view.Playback.ProgressAt, f.clock.Now().UnixMilli(); got != want {
		t.Errorf("ProgressAt = %d, want %d", got, want)
	}

	// Between polls the position is projected from the last sample.
	f.clock.Advance(3 * time.Second)
	view, err = f.watcher.Snapshot(context.Background(), "dj")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if got := view.Playback.ProgressMS; got != 68000 {
		t.Errorf("ProgressMS between polls = %d, want 68000", got)
	}

	// The emitted change event is not touched by later refreshes.
	if got := f.pub.changes("dj")[0].ProgressMS; got != 5000 {
		t.Errorf("change event ProgressMS = %d, want 5000", got)
	}
}

func TestWatcher_DisconnectAndReconnectProvider(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "a", "b")
	f.provider.setPlayback("a", snapshot("t1", true, 0))
	f.provider.setPlayback("b", snapshot("t2", true, 0))
	mustPoll(t, f.watcher)

	if !f.watcher.DisconnectProvider() {
		t.Fatal("DisconnectProvider() = false")
	}
	if f.watcher.DisconnectProvider() {
		t.Error("second DisconnectProvider() = true")
	}
	for _, id := range []string{"a", "b"} {
		st := f.pub.statuses(id)
		if len(st) != 1 || st[0].Reason != models.StatusReasonDisconnected {
			t.Errorf("%s statuses = %+v, want one disconnected", id, st)
		}
	}

	mustPoll(t, f.watcher)
	if calls, _ := f.provider.calls("a"); calls != 1 {
		t.Errorf("calls while disconnected = %d, want 1", calls)
	}
	if !f.watcher.Stats().ProviderDisconnected {
		t.Error("Stats().ProviderDisconnected = false")
	}

	f.watcher.ReconnectProvider()
	mustPoll(t, f.watcher)
	for _, id := range []string{"a", "b"} {
		st := f.pub.statuses(id)
		if len(st) != 2 || st[1].Reason != models.StatusReasonRecovered {
			t.Errorf("%s statuses = %+v, want recovery", id, st)
		}
	}
}

func TestWatcher_EvictsStaleTenants(t *testing.T) {
	t.Parallel()

	cfg := testWatcherConfig()
	cfg.StaleCycles = 2
	f := newWatcherFixture(cfg, "keep", "drop")
	mustPoll(t, f.watcher)

	f.store.setTenants("keep")
	mustPoll(t, f.watcher)
	if _, ok := f.watcher.TenantState("drop"); !ok {
		t.Fatal("tenant evicted after one missed cycle")
	}
	mustPoll(t, f.watcher)
	if _, ok := f.watcher.TenantState("drop"); ok {
		t.Error("tenant still tracked after two missed cycles")
	}
	if got := f.watcher.Stats().TrackedTenants; got != 1 {
		t.Errorf("TrackedTenants = %d, want 1", got)
	}
}

func TestWatcher_CancelledPollLeavesStateAndSkipsOverlap(t *testing.T) {
	t.Parallel()

	f := newWatcherFixture(testWatcherConfig(), "dj")
	f.provider.setPlayback("dj", snapshot("t1", true, 0))
	mustPoll(t, f.watcher)
	before, _ := f.watcher.TenantState("dj")

	started := make(chan struct{})
	f.provider.mu.Lock()
	f.provider.onPlayback = func(ctx context.Context, _ string) {
		close(started)
		<-ctx.Done()
	}
	f.provider.mu.Unlock()
	f.provider.setPlayback("dj", snapshot("t2", true, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.watcher.PollOnce(ctx) }()
	<-started

	// A second cycle while the first is in flight must skip the tenant.
	f.provider.mu.Lock()
	f.provider.onPlayback = nil
	f.provider.mu.Unlock()
	mustPoll(t, f.watcher)
	if calls, _ := f.provider.calls("dj"); calls != 2 {
		t.Errorf("calls = %d, want 2 (overlapping poll skipped)", calls)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}

	after, _ := f.watcher.TenantState("dj")
	if after.LastPlayback != before.LastPlayback {
		t.Error("cancelled poll committed new playback")
	}
	if after.FailureCount != 0 {
		t.Errorf("FailureCount = %d, want 0 for a cancelled poll", after.FailureCount)
	}
	if got := len(f.pub.changes("dj")); got != 1 {
		t.Errorf("events = %d, want 1", got)
	}
}

func TestWatcher_StartStopReconfigure(t *testing.T) {
	t.Parallel()

	cfg := testWatcherConfig()
	cfg.Interval = time.Second
	cfg.QueueInterval = time.Second
	f := newWatcherFixture(cfg, "dj")
	f.provider.setPlayback("dj", snapshot("t1", true, 0))

	if err := f.watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.watcher.Start(context.Background()); !errors.Is(err, ErrWatcherRunning) {
		t.Errorf("second Start() error = %v, want ErrWatcherRunning", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for f.watcher.Stats().Cycles == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if f.watcher.Stats().Cycles == 0 {
		t.Fatal("no cycle ran after Start")
	}

	if err := f.watcher.Reconfigure(500*time.Millisecond, time.Second); err == nil {
		t.Error("Reconfigure() accepted a sub-second interval")
	}
	if err := f.watcher.Reconfigure(2*time.Second, time.Second); err == nil {
		t.Error("Reconfigure() accepted queue interval shorter than interval")
	}
	if err := f.watcher.Reconfigure(2*time.Second, 4*time.Second); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	status := f.watcher.Stats()
	if !status.Running || status.IntervalMS != 2000 || status.QueueIntervalMS != 4000 {
		t.Errorf("Stats() = %+v, want running with 2000/4000", status)
	}

	f.watcher.Stop()
	if f.watcher.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	f.watcher.Stop()
}

func TestWatcher_ServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := testWatcherConfig()
	cfg.AutoStart = true
	cfg.Interval = time.Second
	f := newWatcherFixture(cfg, "dj")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.watcher.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !f.watcher.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !f.watcher.IsRunning() {
		t.Fatal("Serve did not auto-start the watcher")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if f.watcher.IsRunning() {
		t.Error("watcher still running after Serve returned")
	}
}
