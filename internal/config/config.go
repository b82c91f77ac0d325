// Package config loads runtime configuration for every binary in this
// repository (orchestrator, worker, validator) from environment variables
// with hardcoded defaults, mirroring the teacher's koanf-based env-override
// loader. None of these settings are required at boot (spec §6).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete runtime configuration.
type Config struct {
	Substrate SubstrateConfig `koanf:"substrate"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
	Log       LogConfig       `koanf:"log"`
}

// SubstrateConfig configures the connection to the shared KV+stream store.
type SubstrateConfig struct {
	URL            string `koanf:"url"`
	KVBucket       string `koanf:"kvbucket"`
	Stream         string `koanf:"stream"`
	DLQStream      string `koanf:"dlqstream"`
	KeyPrefix      string `koanf:"keyprefix"`
	IdempoPrefix   string `koanf:"idempoprefix"`
	LockPrefix     string `koanf:"lockprefix"`
	MetricsPrefix  string `koanf:"metricsprefix"`
	TracePrefix    string `koanf:"traceprefix"`
}

// RuntimeConfig configures the stream consumer runtime (C7).
type RuntimeConfig struct {
	ConsumerGroup        string        `koanf:"consumergroup"`
	ConsumerName         string        `koanf:"consumername"`
	BlockMS              int           `koanf:"blockms"`
	IdleReclaimMS        int           `koanf:"idlereclaimms"`
	PendingReclaimCount  int           `koanf:"pendingreclaimcount"`
	MaxAttempts          int           `koanf:"maxattempts"`
	DedupeTTLSeconds     int           `koanf:"dedupettlseconds"`
	LockTTLSeconds       int           `koanf:"lockttlseconds"`
}

// LogConfig configures the ambient logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
}

// IdleReclaimDuration returns IdleReclaimMS as a time.Duration.
func (r RuntimeConfig) IdleReclaimDuration() time.Duration {
	return time.Duration(r.IdleReclaimMS) * time.Millisecond
}

// BlockDuration returns BlockMS as a time.Duration.
func (r RuntimeConfig) BlockDuration() time.Duration {
	return time.Duration(r.BlockMS) * time.Millisecond
}

// DedupeTTL returns DedupeTTLSeconds as a time.Duration.
func (r RuntimeConfig) DedupeTTL() time.Duration {
	return time.Duration(r.DedupeTTLSeconds) * time.Second
}

// LockTTL returns LockTTLSeconds as a time.Duration.
func (r RuntimeConfig) LockTTL() time.Duration {
	return time.Duration(r.LockTTLSeconds) * time.Second
}

// defaults returns a Config populated with the spec's defaults.
func defaults() Config {
	return Config{
		Substrate: SubstrateConfig{
			URL:           "nats://localhost:4222",
			KVBucket:      "audit_kv",
			Stream:        "audit:events",
			DLQStream:     "audit:dlq",
			KeyPrefix:     "audit",
			IdempoPrefix:  "audit:idemp",
			LockPrefix:    "audit:lock",
			MetricsPrefix: "audit:metrics",
			TracePrefix:   "audit:trace",
		},
		Runtime: RuntimeConfig{
			ConsumerGroup:       "orchestrator",
			ConsumerName:        "consumer-1",
			BlockMS:             5000,
			IdleReclaimMS:       30000,
			PendingReclaimCount: 10,
			MaxAttempts:         5,
			DedupeTTLSeconds:    24 * 60 * 60,
			LockTTLSeconds:      120,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config from hardcoded defaults overridden by environment
// variables. Environment variables use underscore separators and are
// uppercased, e.g. SUBSTRATE_URL -> substrate.url, RUNTIME_BLOCKMS ->
// runtime.blockms, LOG_LEVEL -> log.level. The bare names BLOCK_MS,
// IDLE_RECLAIM_MS, PENDING_RECLAIM_COUNT, MAX_ATTEMPTS, DEDUPE_TTL_SECONDS,
// LOCK_TTL_S and KEY_PREFIX are read as well.
func Load() (*Config, error) {
	k := koanf.New(".")

	bare := map[string]string{
		"BLOCK_MS":              "runtime.blockms",
		"IDLE_RECLAIM_MS":       "runtime.idlereclaimms",
		"PENDING_RECLAIM_COUNT": "runtime.pendingreclaimcount",
		"MAX_ATTEMPTS":          "runtime.maxattempts",
		"DEDUPE_TTL_SECONDS":    "runtime.dedupettlseconds",
		"LOCK_TTL_S":            "runtime.lockttlseconds",
		"KEY_PREFIX":            "substrate.keyprefix",
	}
	if err := k.Load(env.Provider("", ".", func(s string) string {
		if key, ok := bare[s]; ok {
			return key
		}
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	out := defaults()
	if err := k.Unmarshal("", &out); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &out, nil
}

// Validate checks invariants that must hold regardless of where values came
// from.
func (c *Config) Validate() error {
	if c.Runtime.MaxAttempts < 1 {
		return fmt.Errorf("runtime.maxattempts must be >= 1")
	}
	if c.Runtime.BlockMS < 0 {
		return fmt.Errorf("runtime.blockms must be >= 0")
	}
	if c.Substrate.Stream == "" {
		return fmt.Errorf("substrate.stream must not be empty")
	}
	if c.Substrate.DLQStream == "" {
		return fmt.Errorf("substrate.dlqstream must not be empty")
	}
	return nil
}
