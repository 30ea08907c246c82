// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package database

import (
	"errors"
	"io"
	"strings"

	"github.com/tomtom215/encore/internal/logging"
)

var (
	// ErrTenantNotFound is returned when a tenant ID does not exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrRequestNotFound is returned when a request ID does not exist.
	ErrRequestNotFound = errors.New("song request not found")

	// ErrCredentialNotFound is returned when a credential ref has no stored token.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrInvalidStatus is returned for an unknown request status.
	ErrInvalidStatus = errors.New("invalid request status")
)

// closeWithLog closes a resource and logs any error.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource in error paths where the Close error is not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// isConnectionError checks if an error indicates database connection loss.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"bad connection", "database is closed", "connection reset", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
