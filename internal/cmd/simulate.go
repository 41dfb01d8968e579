package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/weirdgate/weirdgate/internal/config"
	"github.com/weirdgate/weirdgate/internal/core"
	"github.com/weirdgate/weirdgate/internal/core/engine"
	"github.com/weirdgate/weirdgate/internal/output"
)

const defaultSimulateName = "weird"

var (
	simulateBursts  []string
	simulateName    string
	simulateContext string
	simulateOutput  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay bursts of weirds against the sampling rules",
	Long: `Replay bursts of weirds against a fresh engine with a simulated clock and
report how many of each burst would be emitted.

Each --burst is OFFSET:COUNT[:NAME[:CONTEXT]], where OFFSET is a duration
from the start of the run and CONTEXT uses the same form as the windows
listing (none, pair:A,B, conn:ID, object:ID). Settings come from the
config file and environment unless overridden by flags.`,
	Example: `  weirdgate simulate --threshold 10 --rate 10 --window 5s \
    --burst 0s:30 --burst 2s:30 --burst 7s:30
  weirdgate simulate --burst 0s:100:bad_checksum:pair:10.0.0.1,10.0.0.2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(simulateOutput)
		if err != nil {
			return err
		}
		if len(simulateBursts) == 0 {
			return fmt.Errorf("at least one --burst is required")
		}

		defaultContext, err := core.ParseContext(strings.TrimSpace(simulateContext))
		if err != nil {
			return err
		}
		bursts := make([]engine.Burst, 0, len(simulateBursts))
		for _, value := range simulateBursts {
			burst, err := parseBurst(value, simulateName, defaultContext)
			if err != nil {
				return err
			}
			bursts = append(bursts, burst)
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		opts := engineOptions(cfg.Sampling)
		overrides, err := overridesFromFlags(cmd)
		if err != nil {
			return err
		}
		applyOptionOverrides(&opts, overrides.Threshold, overrides.Rate, overrides.Window, overrides.NormalizePairs)
		if overrides.Exemptions != nil {
			opts.Exemptions = overrides.Exemptions
		}
		if overrides.Global != nil {
			opts.GlobalNames = overrides.Global
		}

		report, err := engine.Simulate(opts, bursts)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatSimulation(&report)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	},
}

func applyOptionOverrides(opts *engine.Options, threshold, rate *uint64, window *time.Duration, normalize *bool) {
	if threshold != nil {
		opts.Settings.Threshold = *threshold
	}
	if rate != nil {
		opts.Settings.Rate = *rate
	}
	if window != nil {
		opts.Settings.WindowDuration = *window
	}
	if normalize != nil {
		opts.NormalizePairs = *normalize
	}
}

// parseBurst reads OFFSET:COUNT[:NAME[:CONTEXT]]. The context may itself
// contain colons, so everything after the third separator belongs to it.
func parseBurst(value, defaultName string, defaultContext core.Context) (engine.Burst, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 4)
	if len(parts) < 2 {
		return engine.Burst{}, fmt.Errorf("invalid burst %q: want OFFSET:COUNT[:NAME[:CONTEXT]]", value)
	}

	offset, err := time.ParseDuration(strings.TrimSpace(parts[0]))
	if err != nil {
		return engine.Burst{}, fmt.Errorf("invalid burst offset %q: %w", parts[0], err)
	}
	count, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return engine.Burst{}, fmt.Errorf("invalid burst count %q: %w", parts[1], err)
	}

	burst := engine.Burst{
		Offset:  offset,
		Count:   count,
		Name:    defaultName,
		Context: defaultContext,
	}
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		burst.Name = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		burst.Context, err = core.ParseContext(strings.TrimSpace(parts[3]))
		if err != nil {
			return engine.Burst{}, err
		}
	}
	if strings.TrimSpace(burst.Name) == "" {
		burst.Name = defaultSimulateName
	}
	return burst, nil
}

func init() {
	simulateCmd.Flags().StringArrayVar(&simulateBursts, "burst", nil, "Burst as OFFSET:COUNT[:NAME[:CONTEXT]] (repeatable)")
	simulateCmd.Flags().StringVar(&simulateName, "name", defaultSimulateName, "Weird name for bursts that do not set one")
	simulateCmd.Flags().StringVar(&simulateContext, "context", "none", "Context for bursts that do not set one")
	simulateCmd.Flags().StringVar(&simulateOutput, "output-format", string(output.FormatTable), "Output format: table|json|markdown")
	addOverrideFlags(simulateCmd)

	rootCmd.AddCommand(simulateCmd)
}
