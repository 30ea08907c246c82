// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
Package provider talks to the playback provider (the Spotify Web API).

Client is stateless apart from a shared rate limiter: it turns an access token
into a PlaybackSnapshot or QueueSnapshot, or into a typed *Error. A nil snapshot
with a nil error means the player is idle, which callers must treat differently
from an error.

Error kinds:
  - ErrUnreachable: network failure, timeout, 5xx or an undecodable body
  - ErrAuthExpired: 401/403 from the API or invalid_grant from the token endpoint
  - ErrRateLimited: 429, with RetryAfter taken from the Retry-After header
  - ErrCredentialUnavailable: no usable token for the tenant (not a provider failure)

OAuthCredentials turns a tenant's stored refresh token into access tokens with
golang.org/x/oauth2, caching one reusing token source per tenant.
*/
package provider
