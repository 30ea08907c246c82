// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// tableCreationQueries returns the DDL for every table and index.
//
// event_settings is stored as JSON text and decoded in Go so the tenant read
// path does not depend on the json extension being loadable.
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id VARCHAR PRIMARY KEY,
			display_name VARCHAR NOT NULL DEFAULT '',
			credential_ref VARCHAR NOT NULL DEFAULT '',
			watch_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			event_settings VARCHAR NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS provider_credentials (
			ref VARCHAR PRIMARY KEY,
			refresh_token VARCHAR NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS song_requests (
			id VARCHAR PRIMARY KEY,
			tenant_id VARCHAR NOT NULL,
			track_uri VARCHAR NOT NULL,
			track_id VARCHAR NOT NULL DEFAULT '',
			track_name VARCHAR NOT NULL DEFAULT '',
			requester_nickname VARCHAR NOT NULL DEFAULT '',
			status VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_song_requests_tenant ON song_requests(tenant_id, created_at);`,
	}
}

// createTables creates the schema.
func (db *DB) createTables(ctx context.Context) error {
	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
