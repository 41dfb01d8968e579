package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weirdgate/weirdgate/internal/core/store"
	"github.com/weirdgate/weirdgate/internal/output"
)

var (
	windowsResetAll    bool
	windowsResetName   string
	windowsResetPrefix string
	windowsResetYes    bool
	windowsResetDryRun bool
	windowsResetOutput string
	windowsResetOut    string
	windowsResetOutDir string
)

var windowsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete persisted sampling windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(windowsResetOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		query := store.WindowQuery{
			All:    windowsResetAll,
			Name:   strings.TrimSpace(windowsResetName),
			Prefix: strings.TrimSpace(windowsResetPrefix),
		}
		if err := query.Validate(); err != nil {
			return err
		}

		if query.All && !windowsResetYes && !windowsResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountWindows(cmd.Context(), query)
		if err != nil {
			return err
		}

		outPath := strings.TrimSpace(windowsResetOut)
		outDir := strings.TrimSpace(windowsResetOutDir)
		if outPath != "" && outDir != "" {
			return fmt.Errorf("--out and --out-dir are mutually exclusive")
		}
		ext := outputExtension(format)
		if outDir != "" {
			var err error
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("windows.reset.%s", ext))
		}
		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if windowsResetDryRun {
			return writeWindowsResetResult(format, sink.writer, matched, 0, true)
		}

		deleted, err := db.ResetWindows(cmd.Context(), query)
		if err != nil {
			return err
		}

		return writeWindowsResetResult(format, sink.writer, matched, deleted, false)
	},
}

func writeWindowsResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would delete %d sampling window(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d sampling window(s)\n", deleted, matched)
	return err
}

func init() {
	windowsResetCmd.Flags().BoolVar(&windowsResetAll, "all", false, "Reset all windows")
	windowsResetCmd.Flags().StringVar(&windowsResetName, "name", "", "Reset windows for a single weird name (exact match)")
	windowsResetCmd.Flags().StringVar(&windowsResetPrefix, "prefix", "", "Reset windows whose weird name has this prefix")
	windowsResetCmd.Flags().BoolVar(&windowsResetYes, "yes", false, "Confirm destructive reset")
	windowsResetCmd.Flags().BoolVar(&windowsResetDryRun, "dry-run", false, "Show what would be deleted")
	windowsResetCmd.Flags().StringVar(&windowsResetOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	windowsResetCmd.Flags().StringVar(&windowsResetOut, "out", "", "Write output to a file (default stdout)")
	windowsResetCmd.Flags().StringVar(&windowsResetOutDir, "out-dir", "", "Write output to a directory")
}
