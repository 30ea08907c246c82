// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/encore/internal/models"
)

// UpsertTenant creates or updates a tenant. watchEnabled controls whether the
// watcher polls it.
func (db *DB) UpsertTenant(ctx context.Context, tenant *models.Tenant, watchEnabled bool) error {
	settings := []byte("{}")
	if len(tenant.EventSettings) > 0 {
		var err error
		if settings, err = json.Marshal(tenant.EventSettings); err != nil {
			return fmt.Errorf("marshal event settings: %w", err)
		}
	}

	now := db.now().UTC()
	query := `INSERT INTO tenants (id, display_name, credential_ref, watch_enabled, event_settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			credential_ref = excluded.credential_ref,
			watch_enabled = excluded.watch_enabled,
			event_settings = excluded.event_settings,
			updated_at = excluded.updated_at`

	if _, err := db.conn.ExecContext(ctx, query,
		tenant.ID, tenant.DisplayName, tenant.CredentialRef, watchEnabled, string(settings), now, now,
	); err != nil {
		return wrapQueryError("upsert tenant", err)
	}
	return nil
}

// ListTenants returns the tenants the watcher should poll: watching enabled
// and a credential linked. Ordered by ID.
func (db *DB) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, display_name, credential_ref, event_settings
		FROM tenants
		WHERE watch_enabled AND credential_ref <> ''
		ORDER BY id`)
	if err != nil {
		return nil, wrapQueryError("list tenants", err)
	}
	defer closeWithLog(rows, "tenant rows")

	var tenants []models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError("iterate tenants", err)
	}
	return tenants, nil
}

// GetTenant returns one tenant regardless of its watch flag.
func (db *DB) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT id, display_name, credential_ref, event_settings
		FROM tenants WHERE id = ?`, id)
	tenant, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	return tenant, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*models.Tenant, error) {
	var (
		tenant   models.Tenant
		settings string
	)
	if err := row.Scan(&tenant.ID, &tenant.DisplayName, &tenant.CredentialRef, &settings); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, wrapQueryError("scan tenant", err)
	}
	if settings != "" && settings != "{}" {
		if err := json.Unmarshal([]byte(settings), &tenant.EventSettings); err != nil {
			return nil, fmt.Errorf("decode event settings for tenant %s: %w", tenant.ID, err)
		}
	}
	return &tenant, nil
}
