// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

// Package logging provides centralized zerolog-based structured logging for Encore.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("tenant_id", id).Msg("Playback changed")
//	logging.Error().Err(err).Msg("Broadcast failed")
//
// Context-aware logging picks up the poll cycle correlation ID and the tenant:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	ctx = logging.ContextWithTenant(ctx, tenant.ID)
//	logging.Ctx(ctx).Warn().Err(err).Msg("Playback poll failed")
//
// # Configuration
//
// Level and format come from the logging section of the application config
// (LOG_LEVEL, LOG_FORMAT, LOG_CALLER). Setting ENCORE_QUIET_LOGS=1 silences
// everything below fatal before Init is called, which keeps test output clean.
//
// # Suture integration
//
// SlogHandler adapts zerolog to slog.Handler so the supervisor's sutureslog
// event hook writes to the same stream.
package logging
