// Package config defines service configuration structures and loading hooks.
package config

import (
	"runtime"
	"strings"
)

// Backends selectable with the backend key.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Read policies selectable with the read_policy key.
const (
	ReadPolicySubscribe = "subscribe"
	ReadPolicyFetch     = "fetch"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Backend selects the leaderboard collection: memory or nats.
	Backend string `koanf:"backend"`

	// NATSURL is the server used when Backend is nats.
	NATSURL string `koanf:"nats_url"`

	// CollectionPath names the leaderboard collection (KV bucket for nats).
	CollectionPath string `koanf:"collection_path"`

	// ReadPolicy is subscribe or fetch.
	ReadPolicy string `koanf:"read_policy"`

	// WriteQueueSize bounds the pending backend writes.
	WriteQueueSize int `koanf:"write_queue_size"`

	// WriteWorkers sets the number of backend write workers.
	WriteWorkers int `koanf:"write_workers"`

	// NotifyWriteFailures sends score_rejected to the application when a
	// backend write fails.
	NotifyWriteFailures bool `koanf:"notify_write_failures"`

	// Websocket client settings.
	WSSendBuffer     int   `koanf:"ws_send_buffer"`
	WSMaxMessageSize int64 `koanf:"ws_max_message_size"`
	WSPingIntervalMS int   `koanf:"ws_ping_interval_ms"`

	// AllowedOrigins is a comma separated CORS and websocket origin list.
	// "*" allows any origin.
	AllowedOrigins string `koanf:"allowed_origins"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		Backend:          BackendMemory,
		NATSURL:          "nats://127.0.0.1:4222",
		CollectionPath:   "leaderboard",
		ReadPolicy:       ReadPolicySubscribe,
		WriteQueueSize:   10_000,
		WriteWorkers:     runtime.NumCPU() * 2,
		WSSendBuffer:     256,
		WSMaxMessageSize: 64 * 1024,
		WSPingIntervalMS: 30_000,
		AllowedOrigins:   "*",
	}
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
