// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/encore/internal/config"
	"github.com/tomtom215/encore/internal/logging"
	"github.com/tomtom215/encore/internal/models"
	"github.com/tomtom215/encore/internal/websocket"
)

// HubSink delivers envelopes to websocket display clients.
type HubSink struct {
	hub *websocket.Hub
}

// NewHubSink wraps hub.
func NewHubSink(hub *websocket.Hub) *HubSink {
	return &HubSink{hub: hub}
}

// Name implements Sink.
func (s *HubSink) Name() string { return "hub" }

// Send implements Sink.
func (s *HubSink) Send(_ context.Context, env models.Envelope) error {
	return s.hub.Broadcast(env)
}

// subjectToken makes a tenant ID safe to use as a single NATS subject token.
func subjectToken(tenantID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, tenantID)
}

// NATSSink publishes envelopes to "<prefix>.<tenant_id>".
type NATSSink struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSSink connects to the configured server. The connection retries in
// the background, so a NATS outage at startup only produces publish failures.
func NewNATSSink(cfg config.NATSConfig) (*NATSSink, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("encore-broadcaster"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS sink disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info().Str("url", c.ConnectedUrlRedacted()).Msg("NATS sink reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSSinkFromConn(nc, cfg.SubjectPrefix), nil
}

// NewNATSSinkFromConn wraps an existing connection.
func NewNATSSinkFromConn(nc *nats.Conn, prefix string) *NATSSink {
	return &NATSSink{nc: nc, prefix: prefix}
}

// Name implements Sink.
func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject events for tenantID are published on.
func (s *NATSSink) Subject(tenantID string) string {
	return s.prefix + "." + subjectToken(tenantID)
}

// Send implements Sink.
func (s *NATSSink) Send(_ context.Context, env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return s.nc.Publish(s.Subject(env.TenantID), data)
}

// Close drains pending publishes and closes the connection.
func (s *NATSSink) Close() error {
	return s.nc.Drain()
}

// redisPublisher is the part of *redis.Client the sink needs.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisSink publishes envelopes on the pub/sub channel "<prefix>:<tenant_id>".
type RedisSink struct {
	rc      redisPublisher
	prefix  string
	timeout time.Duration
}

// NewRedisSink creates a client for the configured server and checks it
// answers PING.
func NewRedisSink(ctx context.Context, cfg config.RedisConfig) (*RedisSink, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return newRedisSink(rc, cfg.ChannelPrefix), nil
}

func newRedisSink(rc redisPublisher, prefix string) *RedisSink {
	return &RedisSink{rc: rc, prefix: prefix, timeout: 2 * time.Second}
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// Channel returns the channel events for tenantID are published on.
func (s *RedisSink) Channel(tenantID string) string {
	return s.prefix + ":" + tenantID
}

// Send implements Sink.
func (s *RedisSink) Send(ctx context.Context, env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.rc.Publish(ctx, s.Channel(env.TenantID), data).Err()
}

// Close closes the client.
func (s *RedisSink) Close() error {
	return s.rc.Close()
}
