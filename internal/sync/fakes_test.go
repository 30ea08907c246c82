// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package sync

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/encore/internal/config"
	"github.com/tomtom215/encore/internal/models"
	"github.com/tomtom215/encore/internal/provider"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeProvider serves per-token snapshots. Tokens are "tok-<tenant>".
type fakeProvider struct {
	mu            sync.Mutex
	playback      map[string]*models.PlaybackSnapshot
	queue         map[string]*models.QueueSnapshot
	playbackErr   map[string]error
	queueErr      map[string]error
	playbackCalls map[string]int
	queueCalls    map[string]int

	// onPlayback, when set, runs before GetPlayback returns.
	onPlayback func(ctx context.Context, token string)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		playback:      make(map[string]*models.PlaybackSnapshot),
		queue:         make(map[string]*models.QueueSnapshot),
		playbackErr:   make(map[string]error),
		queueErr:      make(map[string]error),
		playbackCalls: make(map[string]int),
		queueCalls:    make(map[string]int),
	}
}

func (p *fakeProvider) setPlayback(tenant string, s *models.PlaybackSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playback["tok-"+tenant] = s
}

func (p *fakeProvider) setQueue(tenant string, q *models.QueueSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue["tok-"+tenant] = q
}

func (p *fakeProvider) setPlaybackErr(tenant string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playbackErr["tok-"+tenant] = err
}

func (p *fakeProvider) calls(tenant string) (playback, queue int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playbackCalls["tok-"+tenant], p.queueCalls["tok-"+tenant]
}

func (p *fakeProvider) GetPlayback(ctx context.Context, token string) (*models.PlaybackSnapshot, error) {
	p.mu.Lock()
	p.playbackCalls[token]++
	snap, err, hook := p.playback[token], p.playbackErr[token], p.onPlayback
	p.mu.Unlock()

	if hook != nil {
		hook(ctx, token)
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, &provider.Error{Kind: provider.ErrUnreachable, Err: ctx.Err()}
	}
	return snap, nil
}

func (p *fakeProvider) GetQueue(_ context.Context, token string) (*models.QueueSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queueCalls[token]++
	if err := p.queueErr[token]; err != nil {
		return nil, err
	}
	if q := p.queue[token]; q != nil {
		return q, nil
	}
	return &models.QueueSnapshot{Tracks: []models.TrackRef{}}, nil
}

// fakeStore lists tenants and returns every request it holds regardless of
// tenant, so tests exercise the watcher's own tenant filtering.
type fakeStore struct {
	mu          sync.Mutex
	tenants     []models.Tenant
	requests    []models.SongRequest
	requestsErr error
}

func (s *fakeStore) setTenants(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = s.tenants[:0]
	for _, id := range ids {
		s.tenants = append(s.tenants, models.Tenant{ID: id, DisplayName: "DJ " + id})
	}
}

func (s *fakeStore) ListTenants(context.Context) ([]models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Tenant(nil), s.tenants...), nil
}

func (s *fakeStore) ListRequests(context.Context, string) ([]models.SongRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requestsErr != nil {
		return nil, s.requestsErr
	}
	return append([]models.SongRequest(nil), s.requests...), nil
}

// recordingPublisher keeps every published event in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingPublisher) Publish(e models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingPublisher) changes(tenant string) []*models.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ChangeEvent
	for _, e := range r.events {
		if ce, ok := e.(*models.ChangeEvent); ok && ce.TenantID == tenant {
			out = append(out, ce)
		}
	}
	return out
}

func (r *recordingPublisher) statuses(tenant string) []*models.ProviderStatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ProviderStatusEvent
	for _, e := range r.events {
		if se, ok := e.(*models.ProviderStatusEvent); ok && se.TenantID == tenant {
			out = append(out, se)
		}
	}
	return out
}

func (r *recordingPublisher) stats(tenant string) []*models.StatsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.StatsEvent
	for _, e := range r.events {
		if se, ok := e.(*models.StatsEvent); ok && se.TenantID == tenant {
			out = append(out, se)
		}
	}
	return out
}

type watcherFixture struct {
	watcher  *Watcher
	provider *fakeProvider
	store    *fakeStore
	pub      *recordingPublisher
	clock    *fakeClock
}

func testWatcherConfig() config.WatcherConfig {
	return config.WatcherConfig{
		Interval:         5 * time.Second,
		QueueInterval:    20 * time.Second,
		StatsInterval:    30 * time.Second,
		Workers:          4,
		PollTimeout:      2 * time.Second,
		StaleCycles:      12,
		MaxTenants:       100,
		BreakerThreshold: 3,
		BreakerCooldown:  time.Minute,
	}
}

func newWatcherFixture(cfg config.WatcherConfig, tenants ...string) *watcherFixture {
	f := &watcherFixture{
		provider: newFakeProvider(),
		store:    &fakeStore{},
		pub:      &recordingPublisher{},
		clock:    newFakeClock(),
	}
	f.store.setTenants(tenants...)

	creds := provider.StaticCredentials{}
	for _, id := range tenants {
		creds[id] = "tok-" + id
	}

	f.watcher = NewWatcher(cfg, Dependencies{
		Tenants:     f.store,
		Requests:    f.store,
		Provider:    f.provider,
		Credentials: creds,
		Publisher:   f.pub,
	})
	f.watcher.now = f.clock.Now
	return f
}
