package cmd

import (
	"fmt"

	"github.com/rohmanhakim/krishield/internal/build"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "krishield %s (built %s)\n", build.FullVersion(), build.BuildTime)
	},
}
