// Package commands implements the ttsd CLI: run/voices/version subcommands
// over a cobra root command.
package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ttsd",
	Short: "Session & synthesis scheduler daemon for text-to-speech",
	Long: `ttsd arbitrates client sessions, synthesis requests, and audio
playback for a text-to-speech daemon: one shared synthesis engine slot,
one shared audio-output slot, arbitrated across every connected client.

Use 'ttsd run' to start the daemon, 'ttsd voices' to list the voices the
configured engine supports, and 'ttsd version' to print build info.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-dir", ".", "directory to search for ttsd.yaml")
}
