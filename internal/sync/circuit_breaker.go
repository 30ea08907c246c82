// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package sync

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/encore/internal/logging"
	"github.com/tomtom215/encore/internal/metrics"
)

// errPollFailed is reported to gobreaker for a failed provider call.
var errPollFailed = errors.New("provider poll failed")

// BreakerConfig configures per-tenant circuit breakers.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens a tenant's breaker.
	Threshold uint32

	// Cooldown is how long an open breaker suppresses attempts before one probe is allowed.
	Cooldown time.Duration
}

// TenantBreaker is a two-tier circuit breaker.
//
// The process tier is a single disconnect flag that suppresses every tenant
// until ReconnectAll. The tenant tier is one gobreaker.TwoStepCircuitBreaker per
// tenant plus a sticky auth-expired mark that only Reconnect clears.
//
// Breakers use real time for the cool-down (via sony/gobreaker). Tests use a
// short Cooldown rather than a fake clock.
type TenantBreaker struct {
	cfg BreakerConfig

	disconnected atomic.Bool

	mu          sync.Mutex
	breakers    map[string]*gobreaker.TwoStepCircuitBreaker[struct{}]
	authExpired map[string]struct{}
}

// NewTenantBreaker creates a TenantBreaker. Zero values fall back to 3 failures / 60s.
func NewTenantBreaker(cfg BreakerConfig) *TenantBreaker {
	if cfg.Threshold == 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &TenantBreaker{
		cfg:         cfg,
		breakers:    make(map[string]*gobreaker.TwoStepCircuitBreaker[struct{}]),
		authExpired: make(map[string]struct{}),
	}
}

func (b *TenantBreaker) breaker(tenantID string) *gobreaker.TwoStepCircuitBreaker[struct{}] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[tenantID]; ok {
		return cb
	}

	threshold := b.cfg.Threshold
	cb := gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        tenantID,
		MaxRequests: 1, // one probe in half-open
		Interval:    0, // counts only reset on success
		Timeout:     b.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("tenant_id", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(tenantID).Set(0)
	b.breakers[tenantID] = cb
	return cb
}

// ShouldAttempt reports whether a poll for tenantID may reach the provider.
// It does not consume the half-open probe slot.
func (b *TenantBreaker) ShouldAttempt(tenantID string) bool {
	if b.disconnected.Load() || b.IsAuthExpired(tenantID) {
		return false
	}
	return b.breaker(tenantID).State() != gobreaker.StateOpen
}

// SkipReason explains why ShouldAttempt returned false.
func (b *TenantBreaker) SkipReason(tenantID string) string {
	switch {
	case b.disconnected.Load():
		return "disconnected"
	case b.IsAuthExpired(tenantID):
		return "auth_expired"
	default:
		return "breaker_open"
	}
}

// RecordSuccess resets the tenant's consecutive failure count and closes a
// half-open breaker.
func (b *TenantBreaker) RecordSuccess(tenantID string) {
	done, err := b.breaker(tenantID).Allow()
	if err != nil {
		return
	}
	done(nil)
}

// RecordFailure counts a failed poll. It returns true when this failure moved
// the tenant's breaker to open (from closed or from a failed half-open probe).
func (b *TenantBreaker) RecordFailure(tenantID string) (opened bool) {
	cb := b.breaker(tenantID)
	before := cb.State()
	done, err := cb.Allow()
	if err != nil {
		return false
	}
	done(errPollFailed)
	return before != gobreaker.StateOpen && cb.State() == gobreaker.StateOpen
}

// State returns the tenant tier state as "closed", "half-open", "open" or
// "auth-expired".
func (b *TenantBreaker) State(tenantID string) string {
	if b.IsAuthExpired(tenantID) {
		return "auth-expired"
	}
	return b.breaker(tenantID).State().String()
}

// ConsecutiveFailures returns the tenant's current failure streak.
func (b *TenantBreaker) ConsecutiveFailures(tenantID string) uint32 {
	return b.breaker(tenantID).Counts().ConsecutiveFailures
}

// Disconnect suppresses all provider calls until ReconnectAll. It returns
// false if the process was already disconnected.
func (b *TenantBreaker) Disconnect() bool {
	changed := b.disconnected.CompareAndSwap(false, true)
	if changed {
		metrics.ProviderDisconnected.Set(1)
	}
	return changed
}

// ReconnectAll clears the process-level disconnect flag.
func (b *TenantBreaker) ReconnectAll() bool {
	changed := b.disconnected.CompareAndSwap(true, false)
	if changed {
		metrics.ProviderDisconnected.Set(0)
	}
	return changed
}

// IsDisconnected reports the process-level flag.
func (b *TenantBreaker) IsDisconnected() bool {
	return b.disconnected.Load()
}

// MarkAuthExpired disconnects tenantID until Reconnect. It returns false if
// the tenant was already marked.
func (b *TenantBreaker) MarkAuthExpired(tenantID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.authExpired[tenantID]; ok {
		return false
	}
	b.authExpired[tenantID] = struct{}{}
	return true
}

// IsAuthExpired reports whether tenantID is waiting for an explicit reconnect.
func (b *TenantBreaker) IsAuthExpired(tenantID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.authExpired[tenantID]
	return ok
}

// Reconnect clears the tenant's auth-expired mark and resets its breaker.
func (b *TenantBreaker) Reconnect(tenantID string) {
	b.Forget(tenantID)
	metrics.CircuitBreakerState.WithLabelValues(tenantID).Set(0)
}

// Forget drops all state for tenantID.
func (b *TenantBreaker) Forget(tenantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.breakers, tenantID)
	delete(b.authExpired, tenantID)
}
