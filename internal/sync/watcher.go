// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
watcher.go - Multi-tenant playback watcher

Per tenant, per cycle:

	Idle -> CheckBreaker -> (Skip | Poll) -> Detect -> (NoChange | Emit) -> UpdateState -> Idle

Two loops run while the watcher is started:
  - playback: every Interval, polls playback for every eligible tenant and the
    queue when QueueInterval has elapsed for that tenant
  - stats: every StatsInterval, emits request counts for every eligible tenant

Tenant polls inside a cycle run on a bounded worker pool. A tenant whose
previous poll is still running is skipped. State commit and event enqueue
happen under the tenant's entry lock.
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/encore/internal/config"
	"github.com/tomtom215/encore/internal/logging"
	"github.com/tomtom215/encore/internal/metrics"
	"github.com/tomtom215/encore/internal/models"
	"github.com/tomtom215/encore/internal/provider"
)

var (
	// ErrWatcherRunning is returned by Start when the loops are already running.
	ErrWatcherRunning = errors.New("watcher is already running")

	// ErrStorageJoin is logged when requests could not be loaded for an emission.
	// The event is still emitted, without requester nicknames.
	ErrStorageJoin = errors.New("request lookup failed during emission")
)

// TenantSource lists the tenants eligible for watching.
type TenantSource interface {
	ListTenants(ctx context.Context) ([]models.Tenant, error)
}

// RequestSource lists one tenant's song requests.
type RequestSource interface {
	ListRequests(ctx context.Context, tenantID string) ([]models.SongRequest, error)
}

// PlaybackProvider fetches playback and queue snapshots.
type PlaybackProvider interface {
	GetPlayback(ctx context.Context, token string) (*models.PlaybackSnapshot, error)
	GetQueue(ctx context.Context, token string) (*models.QueueSnapshot, error)
}

// Publisher accepts events for fan-out. Publish must not block.
type Publisher interface {
	Publish(event models.Event)
}

// credentialForgetter is implemented by credential providers that cache per tenant.
type credentialForgetter interface {
	Forget(tenantID string)
}

// Dependencies are the watcher's collaborators.
type Dependencies struct {
	Tenants     TenantSource
	Requests    RequestSource
	Provider    PlaybackProvider
	Credentials provider.CredentialProvider
	Publisher   Publisher
}

// Watcher polls the provider for every tenant and emits change events.
type Watcher struct {
	deps    Dependencies
	breaker *TenantBreaker
	store   *StateStore
	now     func() time.Time

	mu      sync.Mutex
	cfg     config.WatcherConfig
	running bool
	parent  context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	cycles        atomic.Uint64
	playbackPolls atomic.Uint64
	queuePolls    atomic.Uint64
	pollFailures  atomic.Uint64
	eventsEmitted atomic.Uint64
}

// NewWatcher creates a stopped watcher.
func NewWatcher(cfg config.WatcherConfig, deps Dependencies) *Watcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 15 * time.Second
	}
	return &Watcher{
		deps: deps,
		breaker: NewTenantBreaker(BreakerConfig{
			Threshold: uint32(max(cfg.BreakerThreshold, 0)), //nolint:gosec // validated range
			Cooldown:  cfg.BreakerCooldown,
		}),
		store: NewStateStore(cfg.MaxTenants, cfg.StaleCycles),
		now:   time.Now,
		cfg:   cfg,
	}
}

// Serve implements suture.Service. It starts the loops when AutoStart is set
// and stops them when ctx is cancelled.
func (w *Watcher) Serve(ctx context.Context) error {
	if w.config().AutoStart {
		if err := w.Start(ctx); err != nil && !errors.Is(err, ErrWatcherRunning) {
			return err
		}
	}
	<-ctx.Done()
	w.Stop()
	return ctx.Err()
}

// Start launches the playback and stats loops under ctx.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrWatcherRunning
	}
	w.startLocked(ctx)
	return nil
}

func (w *Watcher) startLocked(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	w.parent = ctx
	w.cancel = cancel
	w.done = done
	w.running = true
	metrics.SetWatcherRunning(true)

	cfg := w.cfg
	logging.Info().
		Dur("interval", cfg.Interval).
		Dur("queue_interval", cfg.QueueInterval).
		Dur("stats_interval", cfg.StatsInterval).
		Int("workers", cfg.Workers).
		Msg("Starting playback watcher")

	go w.run(loopCtx, cfg, done)
}

// Stop cancels the loops and waits for in-flight polls. It is a no-op when stopped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *Watcher) stopLocked() {
	if !w.running {
		return
	}
	w.cancel()
	<-w.done
	w.running = false
	w.cancel = nil
	metrics.SetWatcherRunning(false)
	logging.Info().Msg("Playback watcher stopped")
}

// IsRunning reports whether the loops are running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Reconfigure changes the playback and queue cadences, restarting the loops
// if they are running.
func (w *Watcher) Reconfigure(interval, queueInterval time.Duration) error {
	if err := config.ValidateCadence(interval, queueInterval); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg.Interval = interval
	w.cfg.QueueInterval = queueInterval
	if w.running {
		parent := w.parent
		w.stopLocked()
		w.startLocked(parent)
	}
	return nil
}

func (w *Watcher) config() config.WatcherConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

func (w *Watcher) run(ctx context.Context, cfg config.WatcherConfig, done chan struct{}) {
	defer close(done)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.loop(ctx, "playback", cfg.Interval, func(ctx context.Context) {
			_ = w.pollCycle(ctx, cfg) //nolint:errcheck // logged inside
		})
	}()
	go func() {
		defer wg.Done()
		w.loop(ctx, "stats", cfg.StatsInterval, func(ctx context.Context) {
			_ = w.emitStats(ctx, cfg) //nolint:errcheck // logged inside
		})
	}()
	wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, cadence string, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		start := time.Now()
		fn(ctx)
		metrics.RecordCycle(cadence, time.Since(start))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce runs a single playback cycle for every eligible tenant.
func (w *Watcher) PollOnce(ctx context.Context) error {
	return w.pollCycle(ctx, w.config())
}

// EmitStatsOnce emits one StatsEvent for every eligible tenant.
func (w *Watcher) EmitStatsOnce(ctx context.Context) error {
	return w.emitStats(ctx, w.config())
}

func (w *Watcher) pollCycle(ctx context.Context, cfg config.WatcherConfig) error {
	cycle := w.cycles.Add(1)
	ctx = logging.ContextWithNewCorrelationID(ctx)

	tenants, err := w.deps.Tenants.ListTenants(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to list tenants, skipping cycle")
		return fmt.Errorf("list tenants: %w", err)
	}

	sem := make(chan struct{}, max(cfg.Workers, 1))
	var wg sync.WaitGroup

dispatch:
	for _, tenant := range tenants {
		if tenant.ID == "" {
			continue
		}
		entry := w.store.touch(tenant, cycle)
		if !entry.tryAcquire() {
			metrics.RecordPollSkipped("in_flight")
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			entry.release()
			break dispatch
		}

		wg.Add(1)
		go func(tenant models.Tenant, entry *tenantEntry) {
			defer wg.Done()
			defer func() { <-sem }()
			defer entry.release()
			w.pollTenant(ctx, entry, tenant, cfg)
		}(tenant, entry)
	}
	wg.Wait()

	w.evict(cycle)
	metrics.TrackedTenants.Set(float64(w.store.Len()))
	return nil
}

func (w *Watcher) pollTenant(ctx context.Context, entry *tenantEntry, tenant models.Tenant, cfg config.WatcherConfig) {
	ctx = logging.ContextWithTenant(ctx, tenant.ID)
	now := w.now()

	entry.mu.Lock()
	retryAt := entry.retryAt
	lastQueueCheck := entry.state.LastQueueCheckAt
	entry.mu.Unlock()

	if now.Before(retryAt) {
		metrics.RecordPollSkipped("rate_limited")
		return
	}
	if !w.breaker.ShouldAttempt(tenant.ID) {
		metrics.RecordPollSkipped(w.breaker.SkipReason(tenant.ID))
		return
	}

	pollCtx, cancel := context.WithTimeout(ctx, cfg.PollTimeout)
	defer cancel()

	token, err := w.deps.Credentials.Token(pollCtx, tenant)
	if err != nil {
		w.handleFailure(ctx, entry, err)
		return
	}

	w.playbackPolls.Add(1)
	playback, err := w.deps.Provider.GetPlayback(pollCtx, token)
	if err != nil {
		w.handleFailure(ctx, entry, err)
		return
	}

	var queue *models.QueueSnapshot
	queueDue := lastQueueCheck.IsZero() || now.Sub(lastQueueCheck) >= cfg.QueueInterval
	if queueDue {
		w.queuePolls.Add(1)
		queue, err = w.deps.Provider.GetQueue(pollCtx, token)
		if err != nil {
			w.handleFailure(ctx, entry, err)
			return
		}
	}

	w.commit(pollCtx, entry, playback, queue, queueDue, now)
}

// commit applies a successful poll and enqueues any resulting events.
func (w *Watcher) commit(ctx context.Context, entry *tenantEntry, playback *models.PlaybackSnapshot, queue *models.QueueSnapshot, queuePolled bool, polledAt time.Time) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	st := &entry.state
	curQueue := st.LastQueue
	if queuePolled {
		curQueue = queue
	}
	result := DetectPlaybackChange(st.LastPlayback, playback).
		Merge(DetectQueueChange(st.LastQueue, curQueue))

	w.breaker.RecordSuccess(entry.id)
	st.FailureCount = 0
	st.LastFailureAt = nil
	st.LastPlayback = playback
	if queuePolled {
		st.LastQueue = queue
		st.LastQueueCheckAt = polledAt
	}
	entry.retryAt = time.Time{}
	st.ProviderConnected = true

	if entry.signalledDown {
		entry.signalledDown = false
		w.publish(&models.ProviderStatusEvent{
			TenantID:  entry.id,
			Connected: true,
			Reason:    models.StatusReasonRecovered,
			EmittedAt: entry.nextEmittedAt(w.now()),
		})
		logging.Ctx(ctx).Info().Msg("Provider connectivity recovered")
	}

	if !result.Changed {
		if entry.playback != nil && playback != nil {
			entry.playback.ProgressMS = playback.PositionMS
			entry.playback.ProgressAt = polledAt.UnixMilli()
		}
		return
	}

	state := formatPlaybackState(playback, curQueue, w.joinNicknames(ctx, entry.id))
	state.ProgressAt = polledAt.UnixMilli()
	entry.playback = state
	event := &models.ChangeEvent{
		EventID:       uuid.NewString(),
		TenantID:      entry.id,
		PlaybackState: *state,
		Reasons:       result.Reasons.Reasons(),
		EmittedAt:     entry.nextEmittedAt(w.now()),
	}
	w.publish(event)

	logging.Ctx(ctx).Debug().
		Interface("reasons", event.Reasons).
		Bool("is_playing", event.IsPlaying).
		Int("queue_len", len(event.Queue)).
		Msg("Playback changed")
}

// joinNicknames loads the tenant's requests for the nickname join. A storage
// failure yields no nicknames rather than no event.
func (w *Watcher) joinNicknames(ctx context.Context, tenantID string) map[string]string {
	requests, err := w.deps.Requests.ListRequests(ctx, tenantID)
	if err != nil {
		metrics.StorageJoinFailures.Inc()
		logging.Ctx(ctx).Warn().Err(fmt.Errorf("%w: %w", ErrStorageJoin, err)).Msg("Emitting without requester nicknames")
		return nil
	}
	return nicknameIndex(tenantID, requests)
}

// handleFailure records a failed poll. ctx is the cycle context: when it is
// cancelled the watcher is stopping and state is left untouched.
func (w *Watcher) handleFailure(ctx context.Context, entry *tenantEntry, err error) {
	if ctx.Err() != nil {
		return
	}

	switch {
	case errors.Is(err, provider.ErrAuthExpired):
		w.handleAuthExpired(ctx, entry, err)
		return
	case errors.Is(err, provider.ErrCredentialUnavailable):
		metrics.RecordPollSkipped("no_credential")
		logging.Ctx(ctx).Debug().Err(err).Msg("No usable credential, skipping tenant")
		return
	}

	w.pollFailures.Add(1)
	now := w.now()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	st := &entry.state
	st.FailureCount++
	st.LastFailureAt = &now
	if delay, ok := provider.RetryAfter(err); ok {
		entry.retryAt = now.Add(delay)
	}

	opened := w.breaker.RecordFailure(entry.id)
	logging.Ctx(ctx).Warn().
		Err(err).
		Str("kind", provider.Classify(err)).
		Int("failures", st.FailureCount).
		Bool("breaker_opened", opened).
		Msg("Playback poll failed")

	if opened {
		w.signalDownLocked(entry, models.StatusReasonBreakerOpen)
	}
}

func (w *Watcher) handleAuthExpired(ctx context.Context, entry *tenantEntry, err error) {
	w.breaker.MarkAuthExpired(entry.id)
	if f, ok := w.deps.Credentials.(credentialForgetter); ok {
		f.Forget(entry.id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	logging.Ctx(ctx).Warn().Err(err).Msg("Provider credential rejected, tenant disconnected until reconnect")
	w.signalDownLocked(entry, models.StatusReasonAuthExpired)
}

// signalDownLocked emits the provider-unavailable signal once per outage.
// Must be called with entry.mu held.
func (w *Watcher) signalDownLocked(entry *tenantEntry, reason string) {
	entry.state.ProviderConnected = false
	if entry.signalledDown {
		return
	}
	entry.signalledDown = true
	w.publish(&models.ProviderStatusEvent{
		TenantID:  entry.id,
		Connected: false,
		Reason:    reason,
		EmittedAt: entry.nextEmittedAt(w.now()),
	})
}

// publish hands event to the publisher. Callers hold the tenant's entry lock so
// enqueue order matches commit order.
func (w *Watcher) publish(event models.Event) {
	w.deps.Publisher.Publish(event)
	w.eventsEmitted.Add(1)
	metrics.RecordEmission(event.EventType())
}

func (w *Watcher) evict(cycle uint64) {
	forgetter, _ := w.deps.Credentials.(credentialForgetter)
	for id, reason := range w.store.Evict(cycle) {
		w.breaker.Forget(id)
		metrics.ForgetTenant(id)
		metrics.TenantsEvicted.WithLabelValues(reason).Inc()
		if forgetter != nil {
			forgetter.Forget(id)
		}
		logging.Debug().Str("tenant_id", id).Str("reason", reason).Msg("Evicted tenant watch state")
	}
}

func (w *Watcher) emitStats(ctx context.Context, cfg config.WatcherConfig) error {
	ctx = logging.ContextWithNewCorrelationID(ctx)

	tenants, err := w.deps.Tenants.ListTenants(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to list tenants for stats")
		return fmt.Errorf("list tenants: %w", err)
	}

	cycle := w.cycles.Load()
	sem := make(chan struct{}, max(cfg.Workers, 1))
	var wg sync.WaitGroup

	for _, tenant := range tenants {
		if tenant.ID == "" {
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}
		wg.Add(1)
		go func(tenant models.Tenant) {
			defer wg.Done()
			defer func() { <-sem }()
			w.emitTenantStats(ctx, tenant, cycle)
		}(tenant)
	}
	wg.Wait()
	return nil
}

func (w *Watcher) emitTenantStats(ctx context.Context, tenant models.Tenant, cycle uint64) {
	ctx = logging.ContextWithTenant(ctx, tenant.ID)

	requests, err := w.deps.Requests.ListRequests(ctx, tenant.ID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to load requests for stats")
		return
	}
	stats := aggregateStats(tenant.ID, requests)

	entry := w.store.touch(tenant, cycle)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	stats.ProviderConnected = entry.state.ProviderConnected && !w.breaker.IsDisconnected()
	stats.EmittedAt = entry.nextEmittedAt(w.now())
	entry.stats = &stats

	event := stats
	w.publish(&event)
}

// Snapshot returns the tenant's current view for the REST fallback. Requests
// are always read from storage; playback and stats come from the last emitted
// state, if any, with the position of a playing track projected to now.
func (w *Watcher) Snapshot(ctx context.Context, tenantID string) (*models.ClientViewState, error) {
	requests, err := w.deps.Requests.ListRequests(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	view := &models.ClientViewState{
		TenantID:          tenantID,
		Requests:          filterTenant(tenantID, requests),
		ProviderConnected: !w.breaker.IsDisconnected() && !w.breaker.IsAuthExpired(tenantID),
	}

	entry, ok := w.store.get(tenantID)
	if !ok {
		return view, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.playback != nil {
		pb := projectProgress(*entry.playback, w.now())
		view.Playback = &pb
	}
	if entry.stats != nil {
		s := *entry.stats
		view.Stats = &s
	}
	view.EventSettings = entry.tenant.EventSettings
	view.ProviderConnected = view.ProviderConnected && entry.state.ProviderConnected
	view.EmittedAt = entry.state.LastEmittedAt
	return view, nil
}

// TenantState returns the watch state for one tenant.
func (w *Watcher) TenantState(tenantID string) (models.TenantWatchState, bool) {
	return w.store.State(tenantID)
}

// DisconnectProvider suppresses all provider calls and signals every tracked
// tenant once. It returns false if already disconnected.
func (w *Watcher) DisconnectProvider() bool {
	if !w.breaker.Disconnect() {
		return false
	}
	for _, entry := range w.store.entriesSnapshot() {
		entry.mu.Lock()
		w.signalDownLocked(entry, models.StatusReasonDisconnected)
		entry.mu.Unlock()
	}
	logging.Warn().Msg("Provider disconnected for all tenants")
	return true
}

// ReconnectProvider clears the process-level disconnect. Tenants emit their
// recovery signal on their next successful poll.
func (w *Watcher) ReconnectProvider() bool {
	changed := w.breaker.ReconnectAll()
	if changed {
		logging.Info().Msg("Provider reconnected")
	}
	return changed
}

// ReconnectTenant clears a tenant's auth-expired mark, breaker and rate-limit backoff.
func (w *Watcher) ReconnectTenant(tenantID string) {
	w.breaker.Reconnect(tenantID)
	if f, ok := w.deps.Credentials.(credentialForgetter); ok {
		f.Forget(tenantID)
	}
	if entry, ok := w.store.get(tenantID); ok {
		entry.mu.Lock()
		entry.retryAt = time.Time{}
		entry.mu.Unlock()
	}
	logging.Info().Str("tenant_id", tenantID).Msg("Tenant provider connection reset")
}

// Stats reports the watcher's running state and counters.
func (w *Watcher) Stats() models.WatcherStatus {
	cfg := w.config()
	return models.WatcherStatus{
		Running:              w.IsRunning(),
		IntervalMS:           cfg.Interval.Milliseconds(),
		QueueIntervalMS:      cfg.QueueInterval.Milliseconds(),
		StatsIntervalMS:      cfg.StatsInterval.Milliseconds(),
		TrackedTenants:       w.store.Len(),
		Cycles:               w.cycles.Load(),
		PlaybackPolls:        w.playbackPolls.Load(),
		QueuePolls:           w.queuePolls.Load(),
		PollFailures:         w.pollFailures.Load(),
		EventsEmitted:        w.eventsEmitted.Load(),
		ProviderDisconnected: w.breaker.IsDisconnected(),
	}
}
