// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package sync

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/encore/internal/models"
)

// tenantEntry is the watcher's last-known state for one tenant.
//
// Lock order: StateStore.mu is never acquired while holding entry.mu.
type tenantEntry struct {
	id string

	// inFlight is set while a poll for this tenant is running.
	inFlight atomic.Bool
	lastSeen atomic.Uint64

	mu     sync.Mutex
	tenant models.Tenant
	state  models.TenantWatchState

	// playback is the last emitted, formatted playback view. Its position is
	// refreshed by every successful poll, even without a change.
	playback *models.PlaybackState
	stats    *models.StatsEvent

	// retryAt defers the next poll after a rate-limit response.
	retryAt time.Time

	// signalledDown is set once a provider-status disconnected event went out
	// and cleared by the recovery event.
	signalledDown bool
}

// nextEmittedAt returns a per-tenant strictly increasing unix-ms timestamp.
// A clock that stalls or steps back yields the previous value plus one.
// Must be called with e.mu held.
func (e *tenantEntry) nextEmittedAt(now time.Time) int64 {
	ts := now.UnixMilli()
	if last := e.state.LastEmittedAt; ts <= last {
		ts = last + 1
	}
	e.state.LastEmittedAt = ts
	return ts
}

// tryAcquire marks the entry in flight. It returns false if a poll is already running.
func (e *tenantEntry) tryAcquire() bool {
	return e.inFlight.CompareAndSwap(false, true)
}

func (e *tenantEntry) release() {
	e.inFlight.Store(false)
}

// StateStore holds per-tenant watch state. The store lock only guards
// insertion and removal; each entry carries its own mutex.
type StateStore struct {
	mu      sync.RWMutex
	entries map[string]*tenantEntry

	maxTenants  int
	staleCycles uint64
}

// NewStateStore creates a store evicting entries unseen for staleCycles
// cycles and capped at maxTenants entries.
func NewStateStore(maxTenants, staleCycles int) *StateStore {
	if maxTenants <= 0 {
		maxTenants = 10000
	}
	if staleCycles <= 0 {
		staleCycles = 12
	}
	return &StateStore{
		entries:     make(map[string]*tenantEntry),
		maxTenants:  maxTenants,
		staleCycles: uint64(staleCycles),
	}
}

// touch returns the entry for tenant, creating it if needed, and marks it seen in cycle.
func (s *StateStore) touch(tenant models.Tenant, cycle uint64) *tenantEntry {
	s.mu.RLock()
	e, ok := s.entries[tenant.ID]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		if e, ok = s.entries[tenant.ID]; !ok {
			e = &tenantEntry{
				id: tenant.ID,
				state: models.TenantWatchState{
					TenantID:          tenant.ID,
					ProviderConnected: true,
				},
			}
			s.entries[tenant.ID] = e
		}
		s.mu.Unlock()
	}

	if cycle > e.lastSeen.Load() {
		e.lastSeen.Store(cycle)
	}

	e.mu.Lock()
	e.tenant = tenant
	e.state.LastSeenCycle = e.lastSeen.Load()
	e.mu.Unlock()
	return e
}

func (s *StateStore) get(tenantID string) (*tenantEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[tenantID]
	return e, ok
}

// entriesSnapshot returns the current entries in no particular order.
func (s *StateStore) entriesSnapshot() []*tenantEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*tenantEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// State returns a copy of the tenant's watch state.
func (s *StateStore) State(tenantID string) (models.TenantWatchState, bool) {
	e, ok := s.get(tenantID)
	if !ok {
		return models.TenantWatchState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// Len returns the number of tracked tenants.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Evict removes entries not seen for staleCycles cycles, then the oldest-seen
// entries beyond maxTenants. Entries with a poll in flight are kept.
// It returns the evicted tenant IDs with the reason for each.
func (s *StateStore) Evict(cycle uint64) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := make(map[string]string)
	for id, e := range s.entries {
		if e.inFlight.Load() {
			continue
		}
		if cycle > e.lastSeen.Load() && cycle-e.lastSeen.Load() >= s.staleCycles {
			delete(s.entries, id)
			evicted[id] = "stale"
		}
	}

	if over := len(s.entries) - s.maxTenants; over > 0 {
		candidates := make([]*tenantEntry, 0, len(s.entries))
		for _, e := range s.entries {
			if !e.inFlight.Load() {
				candidates = append(candidates, e)
			}
		}
		slices.SortFunc(candidates, func(a, b *tenantEntry) int {
			la, lb := a.lastSeen.Load(), b.lastSeen.Load()
			switch {
			case la < lb:
				return -1
			case la > lb:
				return 1
			default:
				return 0
			}
		})
		for _, e := range candidates[:min(over, len(candidates))] {
			delete(s.entries, e.id)
			evicted[e.id] = "capacity"
		}
	}
	return evicted
}
