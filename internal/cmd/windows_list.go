package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/weirdgate/weirdgate/internal/core/store"
	"github.com/weirdgate/weirdgate/internal/output"
)

var (
	windowsListOutput string
	windowsListOut    string
	windowsListOutDir string
	windowsListAll    bool
	windowsListName   string
	windowsListPrefix string
)

var windowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted sampling windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(windowsListOutput)
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.WindowQuery{
			All:    windowsListAll,
			Name:   strings.TrimSpace(windowsListName),
			Prefix: strings.TrimSpace(windowsListPrefix),
		}
		if !query.All && query.Name == "" && query.Prefix == "" {
			query.All = true
		}

		entries, err := db.ListWindows(cmd.Context(), query)
		if err != nil {
			return err
		}

		outPath := strings.TrimSpace(windowsListOut)
		outDir := strings.TrimSpace(windowsListOutDir)
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
			outPath = filepath.Join(outDir, fmt.Sprintf("windows.list.%s", ext))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if len(entries) == 0 && format == output.FormatTable {
			_, _ = fmt.Fprint(sink.writer, ascii.DrawBox("Sampling Windows\n\n(no persisted windows)", 0))
			return nil
		}

		rendered, err := output.NewFormatter(format).FormatWindows(entries)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	windowsListCmd.Flags().StringVar(&windowsListOutput, "output-format", string(output.FormatTable), "Output format: table|json|markdown")
	windowsListCmd.Flags().StringVar(&windowsListOut, "out", "", "Write output to a file (default stdout)")
	windowsListCmd.Flags().StringVar(&windowsListOutDir, "out-dir", "", "Write output to a directory")
	windowsListCmd.Flags().BoolVar(&windowsListAll, "all", false, "List all windows")
	windowsListCmd.Flags().StringVar(&windowsListName, "name", "", "List windows for a single weird name (exact match)")
	windowsListCmd.Flags().StringVar(&windowsListPrefix, "prefix", "", "List windows whose weird name has this prefix")
}
