// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

// Package validation wraps go-playground/validator v10 with a shared
// validator instance and API-friendly error messages.
//
//	type WatcherStartRequest struct {
//	    IntervalMS int64 `validate:"omitempty,min=1000,max=600000"`
//	}
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    apiErr := err.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
//
// The custom "tenantid" tag accepts 1-64 characters of letters, digits,
// '-' and '_', matching the IDs used in websocket subscriptions, NATS subjects
// and Redis channels.
package validation
