// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/encore/internal/logging"
)

// ContextHub is the websocket hub's run loop.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService runs the websocket hub.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService creates the service.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{hub: hub, name: "websocket-hub"}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

func (s *HubService) String() string {
	return s.name
}

// Broadcaster is the event queue drained into the sinks.
type Broadcaster interface {
	Serve(ctx context.Context) error
	Pending() int
}

// BroadcastService runs the broadcaster's drain loop.
type BroadcastService struct {
	broadcaster Broadcaster
	name        string
}

// NewBroadcastService creates the service.
func NewBroadcastService(b Broadcaster) *BroadcastService {
	return &BroadcastService{broadcaster: b, name: "broadcaster"}
}

// Serve implements suture.Service. Events still queued when the broadcaster
// returns are reported; they are lost if the process exits.
func (s *BroadcastService) Serve(ctx context.Context) error {
	err := s.broadcaster.Serve(ctx)
	if pending := s.broadcaster.Pending(); pending > 0 {
		logging.Warn().Int("pending", pending).Msg("Broadcaster stopped with queued events")
	}
	if err != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("broadcaster: %w", err)
	}
	return err
}

func (s *BroadcastService) String() string {
	return s.name
}
