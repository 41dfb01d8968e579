package config

import (
	"time"
)

// Config represents the complete application configuration.
// Values come from built-in defaults, the optional config file under the
// app identity config directory, and WEIRDGATE_* environment variables,
// in increasing order of precedence.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Sampling SamplingConfig `mapstructure:"sampling"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
	Debug    DebugConfig    `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso.
// The store holds persisted settings overrides and ledger snapshots.
type StoreConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// SamplingConfig seeds the decision engine.
type SamplingConfig struct {
	// Threshold is the number of occurrences per window that always pass.
	Threshold uint64 `mapstructure:"threshold"`

	// Rate passes one in every Rate occurrences once Threshold is exceeded.
	// Must be at least 1.
	Rate uint64 `mapstructure:"rate"`

	// Window is the counting window duration.
	Window time.Duration `mapstructure:"window"`

	// Exemptions are weird names that are never sampled.
	Exemptions []string `mapstructure:"exemptions"`

	// Global are weird names counted in a single bucket regardless of context.
	Global []string `mapstructure:"global"`

	// ExemptionsFile is an optional YAML file with additional exemptions
	// and global names. See NameLists.
	ExemptionsFile string `mapstructure:"exemptions_file"`

	// NormalizePairs makes endpoint pair buckets order independent.
	NormalizePairs bool `mapstructure:"normalize_pairs"`

	MaxKeys int `mapstructure:"max_keys"`
	Shards  int `mapstructure:"shards"`

	// IdleExpiry drops windows not updated for this long. Zero disables it.
	IdleExpiry    time.Duration `mapstructure:"idle_expiry"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// Persist snapshots the ledger to the store on shutdown and restores it
	// on startup. Requires store.enabled.
	Persist bool `mapstructure:"persist"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	Profile string `mapstructure:"profile"`

	// Environment is stamped on every server log record.
	Environment string `mapstructure:"environment"`

	// EmitWeirds logs every weird that passes sampling.
	EmitWeirds bool `mapstructure:"emit_weirds"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
