// Package cli provides the command-line interface for medlake.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	configDir string
	debug     bool
)

var rootCmd = &cobra.Command{
	Use:   "medlake",
	Short: "Scrape Telegram medical channels into a local data lake",
	Long:  "medlake pulls messages and product photos from public Telegram channels, normalizes them, and stores them as date-partitioned files ready for warehouse loading.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("medlake %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".medlake", "config directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
