// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package database

import (
	"context"
	"database/sql"
	"errors"
)

// SaveRefreshToken stores the provider refresh token for ref.
func (db *DB) SaveRefreshToken(ctx context.Context, ref, refreshToken string) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO provider_credentials (ref, refresh_token, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (ref) DO UPDATE SET refresh_token = excluded.refresh_token, updated_at = excluded.updated_at`,
		ref, refreshToken, db.now().UTC())
	if err != nil {
		return wrapQueryError("save refresh token", err)
	}
	return nil
}

// RefreshToken returns the stored refresh token for ref.
func (db *DB) RefreshToken(ctx context.Context, ref string) (string, error) {
	var token string
	err := db.conn.QueryRowContext(ctx,
		`SELECT refresh_token FROM provider_credentials WHERE ref = ?`, ref).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrCredentialNotFound
	}
	if err != nil {
		return "", wrapQueryError("get refresh token", err)
	}
	return token, nil
}
