// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/encore/internal/logging"
	"github.com/tomtom215/encore/internal/models"
)

// DefaultPollInterval is the REST fallback cadence.
const DefaultPollInterval = 5 * time.Second

const (
	maxSnapshotBody = 1 << 20
	dialTimeout     = 10 * time.Second
)

var (
	// ErrPushClosed is returned by PushSource.Run when the subscription ends
	// while its context is still live.
	ErrPushClosed = errors.New("push subscription closed")

	// ErrSnapshotFailed is returned by PollSource.Fetch for non-success answers.
	ErrSnapshotFailed = errors.New("snapshot request failed")
)

// StateSource delivers envelopes for one tenant until ctx ends or the source
// fails. Implementations call sink from a single goroutine.
type StateSource interface {
	Run(ctx context.Context, sink func(models.Envelope)) error
}

// apiURL resolves path against the server base URL, switching to ws/wss when
// useWS is set.
func apiURL(baseURL, path string, query url.Values, useWS bool) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if useWS {
		switch u.Scheme {
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		}
	}
	u.Path += path
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// PushSource subscribes to the server's websocket endpoint.
type PushSource struct {
	url    string
	dialer *websocket.Dialer
}

// NewPushSource creates a PushSource for tenantID on the server at baseURL.
func NewPushSource(baseURL, tenantID string) (*PushSource, error) {
	u, err := apiURL(baseURL, "/api/v1/ws", url.Values{"tenant_id": {tenantID}}, true)
	if err != nil {
		return nil, err
	}
	return &PushSource{
		url: u,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: dialTimeout,
		},
	}, nil
}

// URL returns the subscription URL.
func (p *PushSource) URL() string {
	return p.url
}

// Run dials the subscription and forwards frames until the connection drops.
// Server pings are answered by the default gorilla ping handler.
func (p *PushSource) Run(ctx context.Context, sink func(models.Envelope)) error {
	conn, resp, err := p.dialer.DialContext(ctx, p.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.url, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	logging.Info().Str("url", p.url).Msg("Push subscription established")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", ErrPushClosed, err)
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Debug().Err(err).Msg("Ignoring malformed push frame")
			continue
		}
		if env.Type == "pong" {
			continue
		}
		sink(env)
	}
}

// PollSource fetches the REST snapshot on a fixed interval.
type PollSource struct {
	url      string
	tenantID string
	interval time.Duration
	client   *http.Client
}

// NewPollSource creates a PollSource. A zero interval means DefaultPollInterval
// and a nil httpClient gets a client with a 10s timeout.
func NewPollSource(baseURL, tenantID string, interval time.Duration, httpClient *http.Client) (*PollSource, error) {
	u, err := apiURL(baseURL, "/api/v1/tenants/"+url.PathEscape(tenantID)+"/snapshot", nil, false)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &PollSource{url: u, tenantID: tenantID, interval: interval, client: httpClient}, nil
}

// Interval returns the poll cadence.
func (p *PollSource) Interval() time.Duration {
	return p.interval
}

type snapshotResponse struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error,omitempty"`
}

// Fetch performs one snapshot request and wraps the view as a snapshot envelope.
func (p *PollSource) Fetch(ctx context.Context) (models.Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("%w: %w", ErrSnapshotFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body snapshotResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBody)).Decode(&body); err != nil {
		return models.Envelope{}, fmt.Errorf("%w: status %d: decode: %w", ErrSnapshotFailed, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "success" {
		if body.Error != nil {
			return models.Envelope{}, fmt.Errorf("%w: status %d: %s: %s", ErrSnapshotFailed, resp.StatusCode, body.Error.Code, body.Error.Message)
		}
		return models.Envelope{}, fmt.Errorf("%w: status %d", ErrSnapshotFailed, resp.StatusCode)
	}

	var view models.ClientViewState
	if err := json.Unmarshal(body.Data, &view); err != nil {
		return models.Envelope{}, fmt.Errorf("%w: decode view: %w", ErrSnapshotFailed, err)
	}
	if view.TenantID == "" {
		view.TenantID = p.tenantID
	}
	return models.NewEnvelope(&view)
}

// Run fetches immediately and then every interval. Fetch failures are logged
// and retried on the next tick; Run only returns when ctx ends.
func (p *PollSource) Run(ctx context.Context, sink func(models.Envelope)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failures := 0
	for {
		env, err := p.Fetch(ctx)
		switch {
		case err == nil:
			if failures > 0 {
				logging.Info().Int("failures", failures).Msg("Snapshot polling recovered")
			}
			failures = 0
			sink(env)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			failures++
			logging.Warn().Err(err).Int("failures", failures).Msg("Snapshot poll failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
