// Encore - Party Song Requests with Live Playback Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/encore

/*
Package config loads Encore configuration with Koanf v2.

Sources are layered, later ones winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml, /etc/encore/config.yaml
 3. Environment variables listed in envMappings

Example config.yaml:

	watcher:
	  interval: 5s
	  queue_interval: 20s
	  workers: 8
	broadcast:
	  nats:
	    enabled: true
	    url: nats://nats:4222

Unknown environment variables are ignored. Validate runs after unmarshalling and
rejects cadences the watcher cannot honor, such as a queue interval shorter than
the playback interval.
*/
package config
