package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kitty/spec-kitty/internal/upgrade/migrations"
)

var (
	// Version is the current version of spec-kitty (overridden by ldflags at build time)
	Version = "0.7.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			outputJSON(map[string]string{
				"version":        Version,
				"build":          Build,
				"layout_version": migrations.CurrentVersion(),
			})
			return
		}
		fmt.Printf("spec-kitty version %s (%s)\n", Version, Build)
		fmt.Printf("Project layout version: %s\n", migrations.CurrentVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
