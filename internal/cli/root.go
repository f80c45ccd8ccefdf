// Package cli provides the command-line interface for starcrier.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkarayel/starcrier/internal/config"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "starcrier",
	Short: "Promote trending open-source repositories on X",
	Long:  "starcrier discovers trending repositories, writes promotional posts with a local Ollama model, screenshots the README, and publishes on a randomized schedule.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("starcrier %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "path to config file")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
