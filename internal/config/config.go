// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from defaults, an optional
// YAML file and environment variables (see LoadWithKoanf for precedence).
//
// Configuration Categories:
//
//  1. Upstream:
//     - Provider: Spotify Web API endpoints, OAuth client, timeouts and pacing
//
//  2. Core:
//     - Watcher: playback/queue/stats cadences, worker pool, breaker policy
//     - Broadcast: fan-out queue and the optional NATS/Redis sinks
//
//  3. Infrastructure:
//     - Database: DuckDB path holding tenants and song requests
//     - Server: HTTP listener, CORS and rate limiting
//     - Logging: level and output format
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Provider  ProviderConfig  `koanf:"provider"`
	Watcher   WatcherConfig   `koanf:"watcher"`
	Broadcast BroadcastConfig `koanf:"broadcast"`
	Database  DatabaseConfig  `koanf:"database"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ProviderConfig holds playback provider (Spotify Web API) settings.
//
// Environment Variables:
//   - SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET: OAuth client used to refresh tenant tokens
//   - SPOTIFY_TOKEN_URL: token endpoint (default: https://accounts.spotify.com/api/token)
//   - SPOTIFY_API_URL: Web API base URL (default: https://api.spotify.com)
//   - PROVIDER_REQUEST_TIMEOUT: per-call timeout (default: 10s)
//   - PROVIDER_RATE_LIMIT: sustained calls per second across all tenants (default: 20)
//   - PROVIDER_RATE_BURST: limiter burst (default: 40)
type ProviderConfig struct {
	ClientID       string        `koanf:"client_id"`
	ClientSecret   string        `koanf:"client_secret"`
	TokenURL       string        `koanf:"token_url"`
	APIBaseURL     string        `koanf:"api_base_url"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	RateLimit      float64       `koanf:"rate_limit"`
	RateBurst      int           `koanf:"rate_burst"`
}

// WatcherConfig holds the playback watcher settings.
//
// The queue endpoint is heavier and changes less often than playback, so it runs on
// its own cadence which must be at least the playback interval.
type WatcherConfig struct {
	AutoStart        bool          `koanf:"auto_start"`        // Start polling at boot (default: true)
	Interval         time.Duration `koanf:"interval"`          // Playback poll cadence (default: 5s)
	QueueInterval    time.Duration `koanf:"queue_interval"`    // Queue poll cadence (default: 20s)
	StatsInterval    time.Duration `koanf:"stats_interval"`    // Stats emission cadence (default: 30s)
	Workers          int           `koanf:"workers"`           // Concurrent tenant polls per cycle (default: 8)
	PollTimeout      time.Duration `koanf:"poll_timeout"`      // Upper bound for one tenant poll (default: 15s)
	StaleCycles      int           `koanf:"stale_cycles"`      // Evict tenant state unseen for N cycles (default: 12)
	MaxTenants       int           `koanf:"max_tenants"`       // Hard cap on tracked tenants (default: 10000)
	BreakerThreshold int           `koanf:"breaker_threshold"` // Consecutive failures before cool-down (default: 3)
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`  // Cool-down after the breaker opens (default: 60s)
}

// BroadcastConfig holds the fan-out settings. The websocket hub is always a sink;
// NATS and Redis are optional.
type BroadcastConfig struct {
	QueueSize int         `koanf:"queue_size"` // Buffered events before Publish drops (default: 1024)
	NATS      NATSConfig  `koanf:"nats"`
	Redis     RedisConfig `koanf:"redis"`
}

// NATSConfig configures the NATS sink. Events are published to
// "<subject_prefix>.<tenant_id>".
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// RedisConfig configures the Redis pub/sub sink. Events are published to
// "<channel_prefix>:<tenant_id>".
type RedisConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Addr          string `koanf:"addr"`
	Password      string `koanf:"password"`
	DB            int    `koanf:"db"`
	ChannelPrefix string `koanf:"channel_prefix"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, the config file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
