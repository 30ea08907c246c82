// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
client.go - Spotify Web API client

Endpoints:
  - GET /v1/me/player        current playback (204 when no active device)
  - GET /v1/me/player/queue  upcoming tracks

Every request is paced by a shared token-bucket limiter and bounded by the
configured timeout. 429 responses are not retried here: the watcher owns the
backoff and receives the Retry-After delay through the returned *Error.
*/

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/encore/internal/metrics"
	"github.com/tomtom215/encore/internal/models"
)

const (
	endpointPlayback = "playback"
	endpointQueue    = "queue"

	playerPath = "/v1/me/player"
	queuePath  = "/v1/me/player/queue"

	defaultRetryAfter = 5 * time.Second
	maxErrorBody      = 512
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // requests per second across all tenants
	RateBurst  int
	HTTPClient *http.Client
}

// Client calls the provider API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewClient creates a provider client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(limit, cfg.RateBurst),
		now:        time.Now,
	}
}

// GetPlayback returns the current playback snapshot. A nil snapshot with a nil
// error means the provider answered but nothing is playing.
func (c *Client) GetPlayback(ctx context.Context, token string) (*models.PlaybackSnapshot, error) {
	var body spotifyPlayback
	start := time.Now()
	found, err := c.doRequest(ctx, token, playerPath, &body)
	metrics.RecordProviderPoll(endpointPlayback, Classify(err), time.Since(start))
	if err != nil || !found {
		return nil, err
	}
	return body.toSnapshot(c.now()), nil
}

// GetQueue returns the tenant's upcoming tracks.
func (c *Client) GetQueue(ctx context.Context, token string) (*models.QueueSnapshot, error) {
	var body spotifyQueue
	start := time.Now()
	found, err := c.doRequest(ctx, token, queuePath, &body)
	metrics.RecordProviderPoll(endpointQueue, Classify(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	if !found {
		return &models.QueueSnapshot{Tracks: []models.TrackRef{}, CapturedAt: c.now()}, nil
	}
	return body.toSnapshot(c.now()), nil
}

// doRequest performs an authenticated GET and decodes a 200 body into result.
// found is false for 204 No Content.
func (c *Client) doRequest(ctx context.Context, token, path string, result interface{}) (found bool, err error) {
	if token == "" {
		return false, &Error{Kind: ErrCredentialUnavailable, Err: errors.New("empty access token")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return false, &Error{Kind: ErrUnreachable, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &Error{Kind: ErrUnreachable, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return false, nil
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, &Error{Kind: ErrUnreachable, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return false, &Error{Kind: ErrAuthExpired, Status: resp.StatusCode, Err: readErrorBody(resp.Body)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return false, &Error{
			Kind:       ErrRateLimited,
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
		}
	default:
		return false, &Error{Kind: ErrUnreachable, Status: resp.StatusCode, Err: readErrorBody(resp.Body)}
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date (RFC 9110 10.2.3).
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return defaultRetryAfter
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return defaultRetryAfter
}

// readErrorBody returns the provider's error message, if any, as an error.
func readErrorBody(r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return nil
	}
	var apiErr struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
		return errors.New(apiErr.Error.Message)
	}
	return errors.New(strings.TrimSpace(string(data)))
}
