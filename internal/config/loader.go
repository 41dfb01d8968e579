// Package config provides centralized configuration management for weirdgate.
// Defaults are registered on a viper instance, overlaid by the user config
// file and WEIRDGATE_* environment variables, then decoded into Config.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/weirdgate/weirdgate/internal/appid"
	"github.com/weirdgate/weirdgate/internal/core"
)

const defaultAppName = "weirdgate"

var (
	// appConfig holds the current application configuration
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
)

// SetDefaults registers built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")
	v.SetDefault("logging.environment", "production")
	v.SetDefault("logging.emit_weirds", true)

	// Store defaults
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Sampling defaults
	v.SetDefault("sampling.threshold", 25)
	v.SetDefault("sampling.rate", 1000)
	v.SetDefault("sampling.window", "10m")
	v.SetDefault("sampling.exemptions", []string{})
	v.SetDefault("sampling.global", []string{})
	v.SetDefault("sampling.exemptions_file", "")
	v.SetDefault("sampling.normalize_pairs", true)
	v.SetDefault("sampling.max_keys", 1_000_000)
	v.SetDefault("sampling.shards", 64)
	v.SetDefault("sampling.idle_expiry", "0s")
	v.SetDefault("sampling.sweep_interval", "1m")
	v.SetDefault("sampling.persist", false)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
}

// BindEnv makes every key readable from the environment as
// PREFIX_SECTION_KEY, e.g. WEIRDGATE_SAMPLING_THRESHOLD.
func BindEnv(v *viper.Viper, prefix string) {
	v.SetEnvPrefix(strings.TrimSuffix(prefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the process-wide viper configuration.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context) (*Config, error) {
	if appIdentity == nil {
		identity, err := appid.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load app identity: %w", err)
		}
		appIdentity = identity
	}

	cfg, err := Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode builds a Config from v, merges the exemptions file if one is set,
// and validates the result.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if path := strings.TrimSpace(cfg.Sampling.ExemptionsFile); path != "" {
		lists, err := LoadNameLists(path)
		if err != nil {
			return nil, err
		}
		cfg.Sampling.Exemptions = append(cfg.Sampling.Exemptions, lists.Exemptions...)
		cfg.Sampling.Global = append(cfg.Sampling.Global, lists.Global...)
	}

	cfg.Sampling.Exemptions = core.CleanNames(cfg.Sampling.Exemptions)
	cfg.Sampling.Global = core.CleanNames(cfg.Sampling.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects sampling values the engine would refuse.
func (c *Config) Validate() error {
	switch {
	case c.Sampling.Rate == 0:
		return fmt.Errorf("invalid config: sampling.rate must be at least 1")
	case c.Sampling.Window < 0:
		return fmt.Errorf("invalid config: sampling.window must not be negative")
	case c.Sampling.IdleExpiry < 0:
		return fmt.Errorf("invalid config: sampling.idle_expiry must not be negative")
	case c.Sampling.MaxKeys < 0:
		return fmt.Errorf("invalid config: sampling.max_keys must not be negative")
	case c.Sampling.Shards < 0:
		return fmt.Errorf("invalid config: sampling.shards must not be negative")
	case c.Sampling.Persist && !c.Store.Enabled:
		return fmt.Errorf("invalid config: sampling.persist requires store.enabled")
	}
	return nil
}

// NameLists is the layout of the exemptions file.
//
//	exemptions:
//	  - DNS_RR_unknown_type
//	global:
//	  - truncated_header
type NameLists struct {
	Exemptions []string `yaml:"exemptions"`
	Global     []string `yaml:"global"`
}

// LoadNameLists reads a YAML exemptions file.
func LoadNameLists(path string) (NameLists, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return NameLists{}, fmt.Errorf("read exemptions file: %w", err)
	}

	var lists NameLists
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return NameLists{}, fmt.Errorf("parse exemptions file %s: %w", path, err)
	}
	return lists, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// appNamesForPaths returns the config name and binary name from app identity,
// falling back to "weirdgate" if not set.
func appNamesForPaths() (configName string, binaryName string) {
	configName = defaultAppName
	binaryName = defaultAppName
	if appIdentity == nil {
		return configName, binaryName
	}

	if strings.TrimSpace(appIdentity.ConfigName) != "" {
		configName = appIdentity.ConfigName
	}
	if strings.TrimSpace(appIdentity.BinaryName) != "" {
		binaryName = appIdentity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}
