// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/encore/config.yaml",
	"/etc/encore/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			TokenURL:       "https://accounts.spotify.com/api/token",
			APIBaseURL:     "https://api.spotify.com",
			RequestTimeout: 10 * time.Second,
			RateLimit:      20,
			RateBurst:      40,
		},
		Watcher: WatcherConfig{
			AutoStart:        true,
			Interval:         5 * time.Second,
			QueueInterval:    20 * time.Second,
			StatsInterval:    30 * time.Second,
			Workers:          8,
			PollTimeout:      15 * time.Second,
			StaleCycles:      12,
			MaxTenants:       10000,
			BreakerThreshold: 3,
			BreakerCooldown:  60 * time.Second,
		},
		Broadcast: BroadcastConfig{
			QueueSize: 1024,
			NATS: NATSConfig{
				Enabled:       false,
				URL:           "nats://127.0.0.1:4222",
				SubjectPrefix: "encore.playback",
			},
			Redis: RedisConfig{
				Enabled:       false,
				Addr:          "127.0.0.1:6379",
				DB:            0,
				ChannelPrefix: "encore:playback",
			},
		},
		Database: DatabaseConfig{
			Path:      "/data/encore.duckdb",
			MaxMemory: "512MB",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3860,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// SPOTIFY_CLIENT_ID -> provider.client_id, WATCHER_INTERVAL -> watcher.interval
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none is found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lowercase environment variable names to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak into config.
var envMappings = map[string]string{
	// Provider
	"spotify_client_id":        "provider.client_id",
	"spotify_client_secret":    "provider.client_secret",
	"spotify_token_url":        "provider.token_url",
	"spotify_api_url":          "provider.api_base_url",
	"provider_request_timeout": "provider.request_timeout",
	"provider_rate_limit":      "provider.rate_limit",
	"provider_rate_burst":      "provider.rate_burst",

	// Watcher
	"watcher_auto_start":        "watcher.auto_start",
	"watcher_interval":          "watcher.interval",
	"watcher_queue_interval":    "watcher.queue_interval",
	"watcher_stats_interval":    "watcher.stats_interval",
	"watcher_workers":           "watcher.workers",
	"watcher_poll_timeout":      "watcher.poll_timeout",
	"watcher_stale_cycles":      "watcher.stale_cycles",
	"watcher_max_tenants":       "watcher.max_tenants",
	"watcher_breaker_threshold": "watcher.breaker_threshold",
	"watcher_breaker_cooldown":  "watcher.breaker_cooldown",

	// Broadcast
	"broadcast_queue_size": "broadcast.queue_size",
	"nats_enabled":         "broadcast.nats.enabled",
	"nats_url":             "broadcast.nats.url",
	"nats_subject_prefix":  "broadcast.nats.subject_prefix",
	"redis_enabled":        "broadcast.redis.enabled",
	"redis_addr":           "broadcast.redis.addr",
	"redis_password":       "broadcast.redis.password",
	"redis_db":             "broadcast.redis.db",
	"redis_channel_prefix": "broadcast.redis.channel_prefix",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",

	// Server
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
