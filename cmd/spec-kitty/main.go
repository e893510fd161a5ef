package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kitty/spec-kitty/internal/config"
	"github.com/spec-kitty/spec-kitty/internal/debug"
)

var (
	jsonOutput bool
	verbose    bool
	noColor    bool
)

func init() {
	// Initialize viper configuration
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show every migration and debug output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.Flags().Bool("version", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:   "spec-kitty",
	Short: "spec-kitty - spec-driven development for AI coding agents",
	Long: `spec-kitty keeps feature specs, plans and work packages under kitty-specs/
and renders mission command templates into each AI agent's directory.

This binary carries the project upgrade engine: it brings a project created
by any earlier release to the current on-disk layout.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("spec-kitty version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Priority: flags > viper (config file + env vars) > defaults
		if !cmd.Flags().Changed("json") {
			jsonOutput = config.GetBool("json")
		}
		if !cmd.Flags().Changed("verbose") {
			verbose = config.GetBool("verbose")
		}
		if !cmd.Flags().Changed("no-color") {
			noColor = config.GetBool("no-color")
		}

		if noColor || jsonOutput {
			color.NoColor = true
		}
		if verbose {
			debug.SetEnabled(true)
		}
		if path := config.ConfigFileUsed(); path != "" {
			debug.Logf("using config %s", path)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = debug.Close()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
