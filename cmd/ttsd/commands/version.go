package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags, following the
// teacher's cmd/giztoy version.go pattern.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ttsd version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
