// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package provider

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnreachable covers network errors, timeouts and 5xx responses. Retryable.
	ErrUnreachable = errors.New("provider unreachable")

	// ErrAuthExpired means the tenant's credential was rejected. Not retryable
	// until the tenant is explicitly reconnected.
	ErrAuthExpired = errors.New("provider credential expired")

	// ErrRateLimited means the provider answered 429. Retry after RetryAfter.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrCredentialUnavailable means no usable token exists for the tenant.
	ErrCredentialUnavailable = errors.New("credential unavailable")
)

// Error is a classified provider failure. errors.Is matches it against its Kind.
type Error struct {
	Kind       error
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%v (status %d): %v", e.Kind, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%v (status %d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

// RetryAfter extracts the rate-limit delay from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var perr *Error
	if errors.As(err, &perr) && perr.Kind == ErrRateLimited {
		return perr.RetryAfter, true
	}
	return 0, false
}

// Classify returns the short label used in logs and metrics for err.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthExpired):
		return "auth_expired"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrCredentialUnavailable):
		return "no_credential"
	default:
		return "unreachable"
	}
}
