package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kitty/spec-kitty/cmd/spec-kitty/doctor"
	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/upgrade/migrations"
)

type doctorResult struct {
	Path       string               `json:"path"`
	Checks     []doctor.DoctorCheck `json:"checks"`
	OverallOK  bool                 `json:"overall_ok"`
	CLIVersion string               `json:"cli_version"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor [path]",
	Short: "Check spec-kitty project health",
	Long: `Sanity check the spec-kitty project at the current directory or the
specified path. Nothing is changed.

This command checks:
  - If .kittify/ exists (or only the legacy .specify/)
  - Layout version and pending migrations
  - Leftover legacy directories (specs/, memory/, packaging copies)
  - Agent directories in .gitignore
  - Mission descriptors
  - Mission command-templates/ layout
  - The UTF-8 encoding pre-commit hook
  - Worktrees under .worktrees/ that lag behind

Examples:
  spec-kitty doctor               # Check current project
  spec-kitty doctor /path/to/repo # Check specific project
  spec-kitty doctor --json        # Machine-readable output`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		root, err := resolveRoot(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to resolve path: %v\n", err)
			setExitCode(1)
			return
		}

		result := runDiagnostics(root)
		if jsonOutput {
			outputJSON(result)
		} else {
			printDiagnostics(os.Stdout, result)
		}
		if !result.OverallOK {
			setExitCode(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDiagnostics(root string) doctorResult {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	result := doctorResult{Path: root, CLIVersion: Version, OverallOK: true}

	installation := doctor.CheckInstallation(root)
	result.Checks = append(result.Checks, installation)
	if installation.Status == doctor.StatusError {
		result.OverallOK = false
		return result
	}

	reg := migrations.Default()
	result.Checks = append(result.Checks,
		doctor.CheckVersion(root, reg),
		doctor.CheckLegacyLayout(root),
		doctor.CheckGitignore(root),
		doctor.CheckMissions(root),
		doctor.CheckCommandsLayout(root),
		doctor.CheckGitHooks(root),
	)
	if !kittify.DirExists(filepath.Join(root, kittify.WorktreesDir)) {
		return finish(result)
	}
	result.Checks = append(result.Checks, doctor.CheckWorktrees(root, reg))
	return finish(result)
}

func finish(result doctorResult) doctorResult {
	for _, c := range result.Checks {
		if c.Status == doctor.StatusError {
			result.OverallOK = false
		}
	}
	return result
}

func printDiagnostics(w io.Writer, result doctorResult) {
	fmt.Fprintf(w, "\nDiagnostics: %s\n", result.Path)

	for i, check := range result.Checks {
		prefix := "├"
		if i == len(result.Checks)-1 {
			prefix = "└"
		}

		var statusIcon string
		switch check.Status {
		case doctor.StatusWarning:
			statusIcon = color.YellowString(" ⚠")
		case doctor.StatusError:
			statusIcon = color.RedString(" ✗")
		}
		fmt.Fprintf(w, " %s %s: %s%s\n", prefix, check.Name, check.Message, statusIcon)

		if check.Detail != "" {
			detailPrefix := "│"
			if i == len(result.Checks)-1 {
				detailPrefix = " "
			}
			fmt.Fprintf(w, " %s   %s\n", detailPrefix, color.New(color.Faint).Sprint(check.Detail))
		}
	}
	fmt.Fprintln(w)

	hasIssues := false
	for _, check := range result.Checks {
		if check.Status == doctor.StatusOK || check.Fix == "" {
			continue
		}
		hasIssues = true
		switch check.Status {
		case doctor.StatusWarning:
			fmt.Fprintln(w, color.YellowString("⚠ Warning: %s", check.Message))
		case doctor.StatusError:
			fmt.Fprintln(w, color.RedString("✗ Error: %s", check.Message))
		}
		fmt.Fprintf(w, "  Fix: %s\n\n", check.Fix)
	}
	if !hasIssues {
		fmt.Fprintln(w, color.GreenString("✓ All checks passed"))
	}
}
