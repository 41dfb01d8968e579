package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/weirdgate/weirdgate/internal/appid"
	"github.com/weirdgate/weirdgate/internal/config"
	"github.com/weirdgate/weirdgate/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()

		observability.CLILogger.Info("=== weirdgate Environment Information ===")
		observability.CLILogger.Info("")

		// Application Info
		observability.CLILogger.Info("Application:")
		observability.CLILogger.Info("  Name:       " + rootCmd.Name())
		observability.CLILogger.Info("  Version:    " + versionInfo.Version)
		observability.CLILogger.Info("  Commit:     " + versionInfo.Commit)
		observability.CLILogger.Info("  Built:      " + versionInfo.BuildDate)
		observability.CLILogger.Info("")

		// SSOT Info
		observability.CLILogger.Info("SSOT:")
		observability.CLILogger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		observability.CLILogger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		observability.CLILogger.Info("")

		// Runtime Info
		observability.CLILogger.Info("Runtime:")
		observability.CLILogger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		observability.CLILogger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		observability.CLILogger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		observability.CLILogger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		observability.CLILogger.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		observability.CLILogger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		observability.CLILogger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		observability.CLILogger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		observability.CLILogger.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			observability.CLILogger.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			observability.CLILogger.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		observability.CLILogger.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		observability.CLILogger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		observability.CLILogger.Info("")

		// Sampling Configuration
		observability.CLILogger.Info("Sampling:")
		observability.CLILogger.Info(fmt.Sprintf("  Threshold:       %d", cfg.Sampling.Threshold), zap.Uint64("threshold", cfg.Sampling.Threshold))
		observability.CLILogger.Info(fmt.Sprintf("  Rate:            %d", cfg.Sampling.Rate), zap.Uint64("rate", cfg.Sampling.Rate))
		observability.CLILogger.Info("  Window:          "+cfg.Sampling.Window.String(), zap.Duration("window", cfg.Sampling.Window))
		observability.CLILogger.Info(fmt.Sprintf("  Exemptions:      %d", len(cfg.Sampling.Exemptions)), zap.Strings("exemptions", cfg.Sampling.Exemptions))
		observability.CLILogger.Info(fmt.Sprintf("  Global Names:    %d", len(cfg.Sampling.Global)), zap.Strings("global", cfg.Sampling.Global))
		observability.CLILogger.Info(fmt.Sprintf("  Normalize Pairs: %t", cfg.Sampling.NormalizePairs))
		observability.CLILogger.Info(fmt.Sprintf("  Max Keys:        %d (%d shards)", cfg.Sampling.MaxKeys, cfg.Sampling.Shards))
		if cfg.Sampling.IdleExpiry > 0 {
			observability.CLILogger.Info("  Idle Expiry:     " + cfg.Sampling.IdleExpiry.String())
		}
		observability.CLILogger.Info(fmt.Sprintf("  Persist:         %t (store enabled: %t)", cfg.Sampling.Persist, cfg.Store.Enabled))
		observability.CLILogger.Info("  Env Overrides:   " + appid.EnvVar(cmd.Context(), "sampling.threshold") + ", " +
			appid.EnvVar(cmd.Context(), "sampling.rate") + ", " + appid.EnvVar(cmd.Context(), "sampling.window"))
		observability.CLILogger.Info("")

		observability.CLILogger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
