package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/weirdgate/weirdgate/internal/core/engine"
	"github.com/weirdgate/weirdgate/internal/server/handlers"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended to add build, API and built-in sampling defaults.",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := rootCmd.Name()
		if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
			name = identity.BinaryName
		}
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "%s %s\n", name, versionInfo.Version)
		if !extended {
			return nil
		}

		fmt.Fprintf(out, "Commit: %s\n", versionInfo.Commit)
		fmt.Fprintf(out, "Built: %s\n", versionInfo.BuildDate)
		fmt.Fprintf(out, "Go: %s\n", runtime.Version())
		fmt.Fprintln(out)

		deps := crucible.GetVersion()
		fmt.Fprintf(out, "Gofulmen: %s\n", deps.Gofulmen)
		fmt.Fprintf(out, "Crucible: %s\n", deps.Crucible)
		fmt.Fprintln(out)

		defaults := engine.DefaultSettings()
		fmt.Fprintf(out, "API: %s (scopes: %s)\n", handlers.APIVersion, strings.Join(handlers.APIScopes(), ", "))
		fmt.Fprintf(out, "Sampling defaults: threshold=%d rate=%d window=%s\n",
			defaults.Threshold, defaults.Rate, defaults.WindowDuration)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
