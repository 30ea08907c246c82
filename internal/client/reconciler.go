// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/encore/internal/logging"
	"github.com/tomtom215/encore/internal/models"
)

// DefaultPushRetry is how long the reconciler polls before retrying push.
const DefaultPushRetry = 30 * time.Second

// Mode names the source currently feeding the reconciler.
type Mode string

const (
	ModeIdle Mode = "idle"
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

// Options configures a Reconciler. Push may be nil for poll-only clients.
type Options struct {
	TenantID  string
	Push      StateSource
	Poll      StateSource
	PushRetry time.Duration
}

// Stats counts what happened to inbound envelopes.
type Stats struct {
	Applied    uint64 `json:"applied"`
	Stale      uint64 `json:"stale"`
	Duplicates uint64 `json:"duplicates"`
	Rejected   uint64 `json:"rejected"`
	Fallbacks  uint64 `json:"fallbacks"`
}

// snapshotFetcher is implemented by PollSource. Run uses it to catch up on
// state the push stream does not carry (requests, event settings).
type snapshotFetcher interface {
	Fetch(ctx context.Context) (models.Envelope, error)
}

// Reconciler merges one tenant's events into a ClientViewState.
type Reconciler struct {
	tenantID  string
	push      StateSource
	poll      StateSource
	pushRetry time.Duration

	mu        sync.Mutex
	view      models.ClientViewState
	hash      uint64
	appliedAt int64
	stats     Stats
	listeners []func(models.ClientViewState)

	modeMu     sync.Mutex
	mode       Mode
	fallback   bool
	cancelPush context.CancelFunc
}

// NewReconciler creates a Reconciler with an empty view.
func NewReconciler(opts Options) *Reconciler {
	if opts.PushRetry <= 0 {
		opts.PushRetry = DefaultPushRetry
	}
	r := &Reconciler{
		tenantID:  opts.TenantID,
		push:      opts.Push,
		poll:      opts.Poll,
		pushRetry: opts.PushRetry,
		view:      models.ClientViewState{TenantID: opts.TenantID},
		mode:      ModeIdle,
	}
	r.hash = r.viewHash(&r.view)
	return r
}

// Subscribe registers fn to receive the view after every applied change.
// Listeners run synchronously on the delivering goroutine.
func (r *Reconciler) Subscribe(fn func(models.ClientViewState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// State returns a copy of the current view.
func (r *Reconciler) State() models.ClientViewState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Stats returns envelope counters.
func (r *Reconciler) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Mode reports which source is active.
func (r *Reconciler) Mode() Mode {
	r.modeMu.Lock()
	defer r.modeMu.Unlock()
	return r.mode
}

// OnEvent merges env into the view. It returns true only when the view's
// content changed and listeners were notified.
func (r *Reconciler) OnEvent(env models.Envelope) bool {
	if env.TenantID != r.tenantID {
		r.count(func(s *Stats) { s.Rejected++ })
		return false
	}
	event, err := env.Decode()
	if err != nil {
		logging.Debug().Err(err).Str("type", env.Type).Msg("Dropping undecodable event")
		r.count(func(s *Stats) { s.Rejected++ })
		return false
	}

	r.mu.Lock()
	if appliedAt := r.appliedAt; event.Emitted() < appliedAt {
		r.stats.Stale++
		r.mu.Unlock()
		logging.Debug().
			Str("type", env.Type).
			Int64("emitted_at", event.Emitted()).
			Int64("applied_at", appliedAt).
			Msg("Dropping out-of-order event")
		return false
	}

	next := merge(r.view, event)
	hash := r.viewHash(&next)
	r.appliedAt = event.Emitted()
	next.EmittedAt = r.appliedAt
	if hash == r.hash {
		r.view.EmittedAt = r.appliedAt
		r.stats.Duplicates++
		r.mu.Unlock()
		return false
	}

	r.view = next
	r.hash = hash
	r.stats.Applied++
	listeners := append([]func(models.ClientViewState){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return true
}

func (r *Reconciler) count(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}

// viewHash hashes the canonical JSON of view without EmittedAt, so a
// re-delivered payload with a newer timestamp still counts as unchanged.
func (r *Reconciler) viewHash(view *models.ClientViewState) uint64 {
	v := *view
	v.EmittedAt = 0
	data, err := json.Marshal(&v)
	if err != nil {
		// Unhashable views never compare equal.
		return 0
	}
	return xxhash.Sum64(data)
}

// merge returns cur with event folded in. Snapshots replace the view.
func merge(cur models.ClientViewState, event models.Event) models.ClientViewState {
	next := cur
	switch e := event.(type) {
	case *models.ClientViewState:
		next = *e
		next.TenantID = cur.TenantID
		if next.Requests == nil {
			next.Requests = cur.Requests
		}
	case *models.ChangeEvent:
		pb := e.PlaybackState
		if pb.Queue == nil {
			pb.Queue = []models.FormattedTrack{}
		}
		next.Playback = &pb
	case *models.StatsEvent:
		s := *e
		next.Stats = &s
		next.ProviderConnected = e.ProviderConnected
	case *models.ProviderStatusEvent:
		next.ProviderConnected = e.Connected
	}
	return next
}

// OnDisconnect switches to the poll source. An active push subscription is
// cancelled; Run retries push after PushRetry.
func (r *Reconciler) OnDisconnect() {
	r.modeMu.Lock()
	defer r.modeMu.Unlock()
	if r.poll == nil || r.fallback {
		return
	}
	r.fallback = true
	r.count(func(s *Stats) { s.Fallbacks++ })
	if r.cancelPush != nil {
		r.cancelPush()
		r.cancelPush = nil
	}
	logging.Warn().Str("tenant_id", r.tenantID).Dur("push_retry", r.pushRetry).Msg("Push unavailable, falling back to snapshot polling")
}

func (r *Reconciler) setMode(m Mode, cancel context.CancelFunc) {
	r.modeMu.Lock()
	defer r.modeMu.Unlock()
	r.mode = m
	r.cancelPush = cancel
}

func (r *Reconciler) usePoll() bool {
	r.modeMu.Lock()
	defer r.modeMu.Unlock()
	return r.push == nil || r.fallback
}

// Run feeds the reconciler until ctx ends. It prefers push, falls back to
// polling when push fails, and retries push every PushRetry.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.push == nil && r.poll == nil {
		return errors.New("reconciler has no state source")
	}
	defer r.setMode(ModeIdle, nil)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !r.usePoll() {
			r.catchUp(ctx)
			pushCtx, cancel := context.WithCancel(ctx)
			r.setMode(ModePush, cancel)
			err := r.push.Run(pushCtx, r.deliver)
			cancel()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Warn().Err(err).Str("tenant_id", r.tenantID).Msg("Push source stopped")
			if r.poll == nil {
				if !sleepCtx(ctx, r.pushRetry) {
					return ctx.Err()
				}
				continue
			}
			r.OnDisconnect()
			continue
		}

		pollCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.push != nil {
			pollCtx, cancel = context.WithTimeout(ctx, r.pushRetry)
		}
		r.setMode(ModePoll, nil)
		err := r.poll.Run(pollCtx, r.deliver)
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.push == nil {
			return err
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logging.Warn().Err(err).Str("tenant_id", r.tenantID).Msg("Poll source stopped")
		}

		r.modeMu.Lock()
		r.fallback = false
		r.modeMu.Unlock()
	}
}

// catchUp applies one snapshot before subscribing so the view has requests
// and settings, which push frames do not carry.
func (r *Reconciler) catchUp(ctx context.Context) {
	fetcher, ok := r.poll.(snapshotFetcher)
	if !ok {
		return
	}
	env, err := fetcher.Fetch(ctx)
	if err != nil {
		logging.Debug().Err(err).Msg("Snapshot catch-up failed")
		return
	}
	r.OnEvent(env)
}

func (r *Reconciler) deliver(env models.Envelope) {
	r.OnEvent(env)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
