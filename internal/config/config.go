// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of shard workers. Each shard owns a
	// disjoint slice of the company-id space.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the delivery-id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// WindowShardCount configures the number of shards in the window store.
	WindowShardCount int `koanf:"window_shard_count"`

	// ShortWindowDays and BaselineDays set the window geometry.
	ShortWindowDays int `koanf:"short_window_days"`
	BaselineDays    int `koanf:"baseline_days"`

	// IdleTTLDays sets how long an inactive company keeps window state.
	IdleTTLDays int `koanf:"idle_ttl_days"`

	// MaintenanceIntervalSeconds sets the shard maintenance tick.
	MaintenanceIntervalSeconds int `koanf:"maintenance_interval_seconds"`

	// NATSEnabled toggles broker emission; when false, signals stay in the
	// local log only.
	NATSEnabled bool `koanf:"nats_enabled"`

	// NATSURL is the broker address, e.g. "nats://localhost:4222".
	NATSURL string `koanf:"nats_url"`

	// SignalSubjectPrefix is the subject prefix for published signals.
	SignalSubjectPrefix string `koanf:"signal_subject_prefix"`

	// EmitMaxAttempts bounds the emission retry loop.
	EmitMaxAttempts int `koanf:"emit_max_attempts"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                   "info",
		Addr:                       ":9080",
		EventQueueSize:             200_000,
		WorkerCount:                runtime.NumCPU(),
		DedupeSize:                 500_000,
		WindowShardCount:           16,
		ShortWindowDays:            30,
		BaselineDays:               90,
		IdleTTLDays:                120,
		MaintenanceIntervalSeconds: 60,
		NATSEnabled:                false,
		NATSURL:                    "nats://localhost:4222",
		SignalSubjectPrefix:        "signals.detected",
		EmitMaxAttempts:            3,
	}
}
