package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weirdgate/weirdgate/internal/config"
	"github.com/weirdgate/weirdgate/internal/core"
	"github.com/weirdgate/weirdgate/internal/core/engine"
	"github.com/weirdgate/weirdgate/internal/core/store"
	"github.com/weirdgate/weirdgate/internal/output"
)

var (
	settingsOutput string
	settingsYes    bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and override sampling settings",
	Long: `Show the effective sampling settings and manage overrides persisted in
the store. Overrides are layered over the config file and environment when
"serve" starts, and are updated by the HTTP API at runtime.`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective sampling settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(settingsOutput)
		if err != nil {
			return err
		}

		report, err := effectiveSettings(cmd.Context())
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatSettings(report)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Persist sampling setting overrides",
	Example: `  weirdgate settings set --threshold 50 --rate 100
  weirdgate settings set --window 5m --exempt DNS_RR_unknown_type,bad_TCP_checksum
  weirdgate settings set --clear-global`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := overridesFromFlags(cmd)
		if err != nil {
			return err
		}
		if overrides.IsEmpty() {
			return errors.New("no settings given; see --help")
		}

		ctx := cmd.Context()
		cfg, err := config.Load(ctx)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if !cfg.Store.Enabled {
			return errStoreDisabled
		}
		db, err := openConfiguredStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		e, err := newEngine(cfg.Sampling, nil)
		if err != nil {
			return err
		}
		existing, err := db.LoadOverrides(ctx)
		if err != nil {
			return err
		}
		if err := existing.ApplyTo(e); err != nil {
			return fmt.Errorf("stored overrides: %w", err)
		}
		if err := overrides.ApplyTo(e); err != nil {
			return err
		}

		if err := db.SaveOverrides(ctx, overrides); err != nil {
			return err
		}

		format, err := output.ParseFormat(settingsOutput)
		if err != nil {
			return err
		}
		rendered, err := output.NewFormatter(format).FormatSettings(settingsReport(e, "config+store"))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all persisted setting overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !settingsYes {
			return errors.New("clear requires --yes")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		deleted, err := db.ClearOverrides(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d setting override(s)\n", deleted)
		return err
	},
}

// effectiveSettings resolves config plus any stored overrides, the same
// layering serve applies at startup.
func effectiveSettings(ctx context.Context) (*output.SettingsReport, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	e, err := newEngine(cfg.Sampling, nil)
	if err != nil {
		return nil, err
	}
	if !cfg.Store.Enabled {
		return settingsReport(e, "config"), nil
	}

	db, err := openConfiguredStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	overrides, err := db.LoadOverrides(ctx)
	if err != nil {
		return nil, err
	}
	if overrides.IsEmpty() {
		return settingsReport(e, "config"), nil
	}
	if err := overrides.ApplyTo(e); err != nil {
		return nil, fmt.Errorf("stored overrides: %w", err)
	}
	return settingsReport(e, "config+store"), nil
}

func settingsReport(e *engine.Engine, source string) *output.SettingsReport {
	return &output.SettingsReport{
		Settings:       e.Settings(),
		NormalizePairs: e.NormalizePairs(),
		Exemptions:     e.GetExemptionList(),
		Global:         e.GetGlobalList(),
		Source:         source,
	}
}

// overridesFromFlags collects only the flags the user set.
func overridesFromFlags(cmd *cobra.Command) (store.Overrides, error) {
	var o store.Overrides
	flags := cmd.Flags()

	if flags.Changed("threshold") {
		v, err := flags.GetUint64("threshold")
		if err != nil {
			return o, err
		}
		o.Threshold = &v
	}
	if flags.Changed("rate") {
		v, err := flags.GetUint64("rate")
		if err != nil {
			return o, err
		}
		o.Rate = &v
	}
	if flags.Changed("window") {
		v, err := flags.GetDuration("window")
		if err != nil {
			return o, err
		}
		o.Window = &v
	}
	if flags.Changed("normalize-pairs") {
		v, err := flags.GetBool("normalize-pairs")
		if err != nil {
			return o, err
		}
		o.NormalizePairs = &v
	}

	exemptions, err := namesFlag(cmd, "exempt", "clear-exemptions")
	if err != nil {
		return o, err
	}
	o.Exemptions = exemptions

	global, err := namesFlag(cmd, "global", "clear-global")
	if err != nil {
		return o, err
	}
	o.Global = global

	return o, nil
}

// namesFlag returns nil when neither flag was set, and an empty list when
// the clear flag was.
func namesFlag(cmd *cobra.Command, name, clearName string) ([]string, error) {
	flags := cmd.Flags()
	clearSet, err := flags.GetBool(clearName)
	if err != nil {
		return nil, err
	}
	if flags.Changed(name) && clearSet {
		return nil, fmt.Errorf("--%s and --%s are mutually exclusive", name, clearName)
	}
	if clearSet {
		return []string{}, nil
	}
	if !flags.Changed(name) {
		return nil, nil
	}

	values, err := flags.GetStringSlice(name)
	if err != nil {
		return nil, err
	}
	return core.CleanNames(values), nil
}

func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("threshold", 0, "Occurrences per window that always pass")
	cmd.Flags().Uint64("rate", 0, "Pass one in every N occurrences past the threshold (>= 1)")
	cmd.Flags().Duration("window", 0, "Counting window duration")
	cmd.Flags().Bool("normalize-pairs", true, "Count A->B and B->A endpoint pairs together")
	cmd.Flags().StringSlice("exempt", nil, "Replace the exemption list")
	cmd.Flags().StringSlice("global", nil, "Replace the list of names counted without context")
	cmd.Flags().Bool("clear-exemptions", false, "Persist an empty exemption list")
	cmd.Flags().Bool("clear-global", false, "Persist an empty global list")
}

func init() {
	settingsCmd.PersistentFlags().StringVar(&settingsOutput, "output-format", string(output.FormatTable), "Output format: table|json|markdown")
	addOverrideFlags(settingsSetCmd)
	settingsClearCmd.Flags().BoolVar(&settingsYes, "yes", false, "Confirm deleting overrides")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	rootCmd.AddCommand(settingsCmd)
}
