package cmd

import (
	"github.com/weirdgate/weirdgate/internal/config"
	"github.com/weirdgate/weirdgate/internal/core"
	"github.com/weirdgate/weirdgate/internal/core/engine"
)

// engineOptions maps the sampling section of cfg onto engine options.
func engineOptions(cfg config.SamplingConfig) engine.Options {
	return engine.Options{
		Settings: engine.Settings{
			Threshold:      cfg.Threshold,
			Rate:           cfg.Rate,
			WindowDuration: cfg.Window,
		},
		Exemptions:     cfg.Exemptions,
		GlobalNames:    cfg.Global,
		NormalizePairs: cfg.NormalizePairs,
		Shards:         cfg.Shards,
		MaxKeys:        cfg.MaxKeys,
	}
}

func newEngine(cfg config.SamplingConfig, onDecision func(string, core.Decision, bool)) (*engine.Engine, error) {
	opts := engineOptions(cfg)
	opts.OnDecision = onDecision
	return engine.New(opts)
}

// applySamplingConfig pushes reloaded settings into a running engine. The
// ledger sizing is fixed at startup and is not changed.
func applySamplingConfig(e *engine.Engine, cfg config.SamplingConfig) error {
	opts := engineOptions(cfg)
	if err := e.ApplySettings(opts.Settings); err != nil {
		return err
	}
	e.SetExemptionList(opts.Exemptions)
	e.SetGlobalList(opts.GlobalNames)
	e.SetNormalizePairs(opts.NormalizePairs)
	return nil
}
