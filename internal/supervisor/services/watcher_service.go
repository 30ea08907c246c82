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

// Watcher is the playback watcher. Serve starts the polling loops when the
// watcher is configured to auto start and stops them when ctx ends.
type Watcher interface {
	Serve(ctx context.Context) error
	IsRunning() bool
}

// WatcherService runs the playback watcher.
type WatcherService struct {
	watcher Watcher
	name    string
}

// NewWatcherService creates the service.
func NewWatcherService(w Watcher) *WatcherService {
	return &WatcherService{watcher: w, name: "playback-watcher"}
}

// Serve implements suture.Service. The loops are stopped before it returns,
// so a restart never overlaps the previous run.
func (s *WatcherService) Serve(ctx context.Context) error {
	err := s.watcher.Serve(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		err = errors.New("returned before shutdown")
	}
	logging.Error().Err(err).Bool("running", s.watcher.IsRunning()).Msg("Playback watcher exited")
	return fmt.Errorf("playback watcher: %w", err)
}

func (s *WatcherService) String() string {
	return s.name
}
