// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package config

import (
	"fmt"
	"strings"
	"time"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateWatcher(); err != nil {
		return err
	}
	if err := c.validateBroadcast(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProvider() error {
	if err := validateHTTPURL(c.Provider.APIBaseURL, "SPOTIFY_API_URL"); err != nil {
		return err
	}
	if c.Provider.TokenURL == "" {
		return fmt.Errorf("SPOTIFY_TOKEN_URL is required")
	}
	if c.Provider.RequestTimeout <= 0 {
		return fmt.Errorf("PROVIDER_REQUEST_TIMEOUT must be positive")
	}
	if c.Provider.RateLimit <= 0 {
		return fmt.Errorf("PROVIDER_RATE_LIMIT must be positive")
	}
	if c.Provider.RateBurst < 1 {
		return fmt.Errorf("PROVIDER_RATE_BURST must be at least 1")
	}
	return nil
}

// validateWatcher rejects cadences the poll loop cannot honor.
func (c *Config) validateWatcher() error {
	w := c.Watcher
	if err := ValidateCadence(w.Interval, w.QueueInterval); err != nil {
		return err
	}
	if w.StatsInterval <= 0 {
		return fmt.Errorf("WATCHER_STATS_INTERVAL must be positive")
	}
	if w.Workers < 1 {
		return fmt.Errorf("WATCHER_WORKERS must be at least 1")
	}
	if w.PollTimeout <= 0 {
		return fmt.Errorf("WATCHER_POLL_TIMEOUT must be positive")
	}
	if w.StaleCycles < 1 {
		return fmt.Errorf("WATCHER_STALE_CYCLES must be at least 1")
	}
	if w.MaxTenants < 1 {
		return fmt.Errorf("WATCHER_MAX_TENANTS must be at least 1")
	}
	if w.BreakerThreshold < 1 {
		return fmt.Errorf("WATCHER_BREAKER_THRESHOLD must be at least 1")
	}
	if w.BreakerCooldown <= 0 {
		return fmt.Errorf("WATCHER_BREAKER_COOLDOWN must be positive")
	}
	return nil
}

func (c *Config) validateBroadcast() error {
	if c.Broadcast.QueueSize < 1 {
		return fmt.Errorf("BROADCAST_QUEUE_SIZE must be at least 1")
	}
	if c.Broadcast.NATS.Enabled {
		if err := validateNATSURL(c.Broadcast.NATS.URL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
		if c.Broadcast.NATS.SubjectPrefix == "" {
			return fmt.Errorf("NATS_SUBJECT_PREFIX is required when NATS_ENABLED=true")
		}
	}
	if c.Broadcast.Redis.Enabled {
		if c.Broadcast.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED=true")
		}
		if c.Broadcast.Redis.ChannelPrefix == "" {
			return fmt.Errorf("REDIS_CHANNEL_PREFIX is required when REDIS_ENABLED=true")
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// ValidateCadence checks a playback/queue interval pair. It is shared with the
// watcher control endpoint so runtime reconfiguration obeys the same rules.
func ValidateCadence(interval, queueInterval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("WATCHER_INTERVAL must be at least 1s")
	}
	if queueInterval < interval {
		return fmt.Errorf("WATCHER_QUEUE_INTERVAL must not be shorter than WATCHER_INTERVAL")
	}
	return nil
}

// String summarizes the non-secret settings for the startup log line.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "provider=%s watcher=%s/%s/%s workers=%d", c.Provider.APIBaseURL,
		c.Watcher.Interval, c.Watcher.QueueInterval, c.Watcher.StatsInterval, c.Watcher.Workers)
	fmt.Fprintf(&b, " nats=%t redis=%t db=%s addr=%s", c.Broadcast.NATS.Enabled,
		c.Broadcast.Redis.Enabled, c.Database.Path, c.Server.Addr())
	return b.String()
}
