// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/encore/internal/database/query"
	"github.com/tomtom215/encore/internal/models"
)

// RequestFilter narrows QueryRequests. Zero values match everything.
type RequestFilter struct {
	TenantID string
	Statuses []models.RequestStatus
	Since    *time.Time
}

// CreateRequest stores a new song request. ID and CreatedAt are filled in
// when empty.
func (db *DB) CreateRequest(ctx context.Context, req *models.SongRequest) error {
	if !req.Status.Valid() {
		return ErrInvalidStatus
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = db.now().UTC()
	}

	_, err := db.conn.ExecContext(ctx, `INSERT INTO song_requests
		(id, tenant_id, track_uri, track_id, track_name, requester_nickname, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.TenantID, req.TrackURI, req.TrackID, req.TrackName,
		req.RequesterNickname, string(req.Status), req.CreatedAt,
	)
	if err != nil {
		return wrapQueryError("create request", err)
	}
	return nil
}

// SetRequestStatus moves a request to status.
func (db *DB) SetRequestStatus(ctx context.Context, id string, status models.RequestStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	res, err := db.conn.ExecContext(ctx, `UPDATE song_requests SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return wrapQueryError("set request status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// ListRequests returns every request of tenantID, oldest first.
func (db *DB) ListRequests(ctx context.Context, tenantID string) ([]models.SongRequest, error) {
	return db.QueryRequests(ctx, RequestFilter{TenantID: tenantID})
}

// QueryRequests returns the requests matching f, oldest first.
func (db *DB) QueryRequests(ctx context.Context, f RequestFilter) ([]models.SongRequest, error) {
	wb := query.NewWhereBuilder()
	if f.TenantID != "" {
		wb.AddEquals("tenant_id", f.TenantID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		wb.AddIn("status", statuses)
	}
	wb.AddSince("created_at", f.Since)
	where, args := wb.BuildWithPrefix()

	rows, err := db.conn.QueryContext(ctx, `SELECT id, tenant_id, track_uri, track_id, track_name,
			requester_nickname, status, created_at
		FROM song_requests `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, wrapQueryError("query requests", err)
	}
	defer closeWithLog(rows, "request rows")

	var requests []models.SongRequest
	for rows.Next() {
		var (
			req    models.SongRequest
			status string
		)
		if err := rows.Scan(&req.ID, &req.TenantID, &req.TrackURI, &req.TrackID, &req.TrackName,
			&req.RequesterNickname, &status, &req.CreatedAt); err != nil {
			return nil, wrapQueryError("scan request", err)
		}
		req.Status = models.RequestStatus(status)
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError("iterate requests", err)
	}
	return requests, nil
}
