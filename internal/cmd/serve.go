package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/weirdgate/weirdgate/internal/config"
	"github.com/weirdgate/weirdgate/internal/core"
	"github.com/weirdgate/weirdgate/internal/core/engine"
	"github.com/weirdgate/weirdgate/internal/core/store"
	errwrap "github.com/weirdgate/weirdgate/internal/errors"
	"github.com/weirdgate/weirdgate/internal/metrics"
	"github.com/weirdgate/weirdgate/internal/observability"
	"github.com/weirdgate/weirdgate/internal/server"
	"github.com/weirdgate/weirdgate/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// signalHealthChecker reports degraded while the signal listener is not
// running: graceful shutdown, the ledger snapshot and SIGHUP reload all
// depend on it.
type signalHealthChecker struct {
	manager *signals.Manager
}

func (s signalHealthChecker) CheckHealth(ctx context.Context) error {
	if s.manager == nil || !signals.NewInjector(s.manager).IsRunning() {
		return handlers.Degraded("signal listener not running")
	}
	return nil
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// samplingHealthChecker reports the engine unhealthy if its live settings
// could no longer be applied, and degraded once the ledger is full.
type samplingHealthChecker struct {
	engine  *engine.Engine
	maxKeys int
}

func (c samplingHealthChecker) CheckHealth(ctx context.Context) error {
	if c.engine == nil {
		return errwrap.NewInternalError("sampling engine not initialized")
	}
	if err := c.engine.Settings().Validate(); err != nil {
		return errwrap.NewConfigInvalidError(err.Error())
	}
	if c.maxKeys > 0 && c.engine.Ledger().Len() >= c.maxKeys {
		return handlers.Degraded("sampling ledger at capacity (%d windows), evicting least recently used", c.maxKeys)
	}
	return nil
}

// storeHealthChecker pings the settings store.
type storeHealthChecker struct {
	db *store.Store
}

func (c storeHealthChecker) CheckHealth(ctx context.Context) error {
	if c.db == nil || c.db.DB == nil {
		return errwrap.NewInternalError("store not initialized")
	}
	return c.db.DB.PingContext(ctx)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload sampling settings and name lists from config

On shutdown the server stops accepting requests, snapshots the sampling
ledger to the store when sampling.persist is enabled, and flushes logs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get app identity for telemetry namespace
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		ctx := cmd.Context()
		cfg, err := config.Load(ctx)
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "configuration rejected")
		}

		// Initialize server logger with namespace
		observability.InitServerLogger(observability.ServerLoggerOptions{
			Service:     identity.BinaryName,
			Level:       cfg.Logging.Level,
			Namespace:   namespace,
			Environment: cfg.Logging.Environment,
		})

		metricsPort := 0
		if cfg.Metrics.Enabled {
			metricsPort = cfg.Metrics.Port
			if metricsPort == 0 {
				metricsPort = observability.DefaultMetricsPort
			}
			if err := observability.InitMetrics(observability.MetricsOptions{
				Service:   identity.BinaryName,
				Namespace: namespace,
				Port:      metricsPort,
			}); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics",
					zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
			metricsPort = observability.GetMetricsPort()
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", serverHost),
			zap.Int("port", serverPort),
			zap.Int("metrics_port", metricsPort))

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("signal_handlers", signalHealthChecker{manager: signals.GetDefaultManager()})
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}
		hm.RegisterChecker("app_identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})

		eng, err := newEngine(cfg.Sampling, func(_ string, decision core.Decision, exempt bool) {
			metrics.RecordDecision(decision, exempt)
		})
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "sampling settings rejected")
		}
		eng.Ledger().OnEvict = metrics.RecordEvictions
		hm.RegisterChecker("sampling", samplingHealthChecker{engine: eng, maxKeys: cfg.Sampling.MaxKeys})

		var db *store.Store
		if cfg.Store.Enabled {
			db, err = openConfiguredStore(ctx, cfg.Store)
			if err != nil {
				return errwrap.WrapDatabaseError(ctx, err, "store initialization failed")
			}
			if err := restoreSamplingState(ctx, db, eng, cfg.Sampling.Persist); err != nil {
				_ = db.Close()
				return errwrap.WrapDatabaseError(ctx, err, "restore sampling state failed")
			}
			hm.RegisterChecker("store", storeHealthChecker{db: db})
		}

		objects := engine.NewObjectIndex()
		reporter := &engine.Reporter{Engine: eng, Objects: objects}
		if cfg.Logging.EmitWeirds {
			reporter.Sink = engine.LogSink{Logger: observability.ServerLogger}
		}

		api := &handlers.SamplingAPI{Reporter: reporter, Objects: objects}
		if db != nil {
			api.Persist = persistSetting(db, eng)
		}

		// Create server
		srv := server.New(serverHost, serverPort,
			server.WithSampling(api),
			server.WithTimeouts(server.Timeouts{
				Read:  cfg.Server.ReadTimeout,
				Write: cfg.Server.WriteTimeout,
				Idle:  cfg.Server.IdleTimeout,
			}),
		)

		janitorCtx, stopJanitor := context.WithCancel(ctx)
		janitorDone := make(chan struct{})
		go func() {
			defer close(janitorDone)
			runJanitor(janitorCtx, eng, objects, cfg.Sampling)
		}()

		// Set app identity for handlers
		handlers.SetAppIdentity(identity)

		// Get shutdown timeout from config
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Close the store
		if db != nil {
			signals.OnShutdown(func(ctx context.Context) error {
				if err := db.Close(); err != nil {
					observability.ServerLogger.Warn("Store close returned error", zap.Error(err))
				}
				return nil
			})
		}

		// Handler 3: Stop maintenance and snapshot the ledger
		signals.OnShutdown(func(ctx context.Context) error {
			stopJanitor()
			<-janitorDone

			if db == nil || !cfg.Sampling.Persist {
				return nil
			}
			entries := eng.Ledger().Snapshot("")
			err := db.SaveWindows(ctx, entries)
			metrics.RecordOperation("snapshot_windows", err)
			if err != nil {
				return errwrap.WrapDatabaseError(ctx, err, "ledger snapshot failed")
			}
			observability.ServerLogger.Info("Sampling ledger persisted", zap.Int("windows", len(entries)))
			return nil
		})

		// Handler 4: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			// Attempt to reload configuration
			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					observability.ServerLogger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				observability.ServerLogger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			reloaded, err := config.Load(ctx)
			if err != nil {
				observability.ServerLogger.Error("Reloaded config rejected; keeping current settings", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}
			if err := applySamplingConfig(eng, reloaded.Sampling); err != nil {
				return errwrap.WrapConfigInvalid(ctx, err, "sampling reload failed")
			}
			if db != nil {
				if err := restoreSamplingState(ctx, db, eng, false); err != nil {
					observability.ServerLogger.Warn("Failed to reapply stored overrides", zap.Error(err))
				}
			}
			settings := eng.Settings()
			observability.ServerLogger.Info("Configuration reloaded successfully",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Uint64("threshold", settings.Threshold),
				zap.Uint64("rate", settings.Rate),
				zap.Duration("window", settings.WindowDuration),
				zap.Int("exemptions", len(eng.GetExemptionList())))

			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		metrics.SetServerStartTime(time.Now().Unix())

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", serverHost),
				zap.Int("port", serverPort))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(ctx); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(ctx, err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

// restoreSamplingState layers stored overrides over the configured settings
// and, when withWindows is set, reloads the persisted ledger.
func restoreSamplingState(ctx context.Context, db *store.Store, eng *engine.Engine, withWindows bool) error {
	overrides, err := db.LoadOverrides(ctx)
	if err != nil {
		return err
	}
	if !overrides.IsEmpty() {
		if err := overrides.ApplyTo(eng); err != nil {
			return err
		}
		observability.ServerLogger.Info("Applied stored sampling overrides")
	}

	if !withWindows {
		return nil
	}
	entries, err := db.LoadWindows(ctx)
	metrics.RecordOperation("restore_windows", err)
	if err != nil {
		return err
	}
	eng.Ledger().Restore(entries)
	metrics.SetLedgerKeys(eng.Ledger().Len())
	observability.ServerLogger.Info("Restored sampling ledger", zap.Int("windows", len(entries)))
	return nil
}

// persistSetting saves the one setting an admin request changed, leaving
// every other setting to follow the config file across reloads.
func persistSetting(db *store.Store, eng *engine.Engine) func(ctx context.Context, setting string) error {
	return func(ctx context.Context, setting string) error {
		o, err := store.CaptureOverride(eng, setting)
		if err == nil {
			err = db.SaveOverrides(ctx, o)
		}
		metrics.RecordOperation("persist_overrides", err)
		return err
	}
}

// runJanitor sweeps idle windows and refreshes gauges until ctx is done.
func runJanitor(ctx context.Context, eng *engine.Engine, objects *engine.ObjectIndex, cfg config.SamplingConfig) {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	started := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if swept := eng.Ledger().Sweep(now, cfg.IdleExpiry); swept > 0 {
				metrics.RecordSwept(swept)
				observability.ServerLogger.Debug("Swept idle sampling windows", zap.Int("windows", swept))
			}
			metrics.SetLedgerKeys(eng.Ledger().Len())
			metrics.SetRegisteredObjects(objects.Len())
			metrics.SetServerUptime(int64(now.Sub(started).Seconds()))
		}
	}
}
