package cmd

import "github.com/spf13/cobra"

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "Inspect and reset persisted sampling windows",
	Long: `Inspect and reset the sampling windows persisted by "serve" when
sampling.persist is enabled. Changes take effect the next time the server
restores its ledger.`,
}

func init() {
	windowsCmd.AddCommand(windowsListCmd)
	windowsCmd.AddCommand(windowsResetCmd)
	rootCmd.AddCommand(windowsCmd)
}
