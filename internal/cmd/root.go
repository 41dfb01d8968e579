package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/weirdgate/weirdgate/internal/appid"
	"github.com/weirdgate/weirdgate/internal/config"
	"github.com/weirdgate/weirdgate/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Loaded from .fulmen/app.yaml or the embedded copy.
	appIdentity *appidentity.Identity

	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the loaded app identity (only valid after initConfig)
func GetAppIdentity() *appidentity.Identity {
	return appIdentity
}

const rootLong = `Decides, for every raised weird (protocol anomaly), whether it is emitted
or suppressed. The first threshold occurrences of a name in a context pass
within each window; after that one in every rate occurrences passes.

Use the subcommands to serve the decision API, inspect or reset windows,
manage sampling overrides, or simulate a burst offline.`

var rootCmd = &cobra.Command{
	// applyIdentity overwrites Use and Short from the app identity.
	Use:   filepath.Base(os.Args[0]),
	Short: "Sampling gate for anomaly (weird) signals",
	Long:  rootLong,
}

// Execute runs the root command. It is called once by main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep gofulmen's global telemetry quiet until serve installs the exporter.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	// Identity is loaded before cobra handles --help so help text uses it.
	if identity, err := appid.Get(context.Background()); err == nil {
		applyIdentity(identity)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; defaults to app identity config path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// applyIdentity records identity and updates help surfaces from it.
func applyIdentity(identity *appidentity.Identity) {
	if identity == nil {
		return
	}
	appIdentity = identity
	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description != "" {
		rootCmd.Short = identity.Description
	}
	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}
}

// initConfig loads the identity, points viper at the config file and binds
// WEIRDGATE_* environment overrides before defaults are applied.
func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity from .fulmen/app.yaml", err)
	}
	applyIdentity(identity)

	observability.InitCLILogger(appIdentity.BinaryName, verbose)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		addConfigSearchPaths(viper.GetViper(), appIdentity.ConfigName)
	}

	config.BindEnv(viper.GetViper(), appIdentity.EnvPrefix)

	// A missing config file is fine; defaults and env cover everything.
	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			observability.CLILogger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
		}
	} else if verbose {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			observability.CLILogger.Debug("No config file found, using defaults and environment variables")
		} else {
			observability.CLILogger.Warn("Error reading config file", zap.Error(err))
		}
	}

	config.SetDefaults(viper.GetViper())
}

// addConfigSearchPaths looks for config.yaml in the XDG app config dir, or
// ~/.<name>.yaml when that cannot be resolved, and always in ./config.
func addConfigSearchPaths(v *viper.Viper, configName string) {
	if dir := gfconfig.GetAppConfigDir(configName); dir != "" {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
	} else {
		if verbose {
			observability.CLILogger.Warn("Could not resolve XDG config directory, falling back to home directory")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Could not find home directory", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName("." + configName)
	}
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")
}
