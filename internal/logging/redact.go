// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package logging

import "strings"

// RedactToken masks a bearer or refresh token, showing only the first and last 4 characters.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// RedactError replaces provider error bodies that may echo credentials.
// Anything else is truncated to 200 characters.
func RedactError(msg string) string {
	lower := strings.ToLower(msg)
	for _, pattern := range []string{"access_token", "refresh_token", "client_secret", "bearer", "authorization"} {
		if strings.Contains(lower, pattern) {
			return "[redacted credential error]"
		}
	}
	if len(msg) > 200 {
		return msg[:200] + "..."
	}
	return msg
}
