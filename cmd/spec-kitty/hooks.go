package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kitty/spec-kitty/internal/upgrade/migrations"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Manage the spec-kitty git hooks",
	Long: `Install or list the git hooks spec-kitty manages.

pre-commit-kittify rejects commits that stage spec-kitty markdown
(kitty-specs/, .kittify/) with invalid UTF-8. A pre-commit shim that runs it
is installed only when the repository has no pre-commit hook of its own.`,
}

var hooksInstallCmd = &cobra.Command{
	Use:   "install [path]",
	Short: "Install or refresh the encoding hook",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		setExitCode(runHooksInstall(path, os.Stdout, os.Stderr))
	},
}

var hooksListCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "Show the status of the spec-kitty git hooks",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		setExitCode(runHooksList(path, os.Stdout, os.Stderr))
	},
}

func runHooksInstall(path string, stdout, stderr io.Writer) int {
	root, err := resolveRoot(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	m := migrations.NewEncodingHooks()
	if ok, reason := m.CanApply(root); !ok {
		fmt.Fprintf(stderr, "Error: %s\n", reason)
		return 1
	}
	res := m.Apply(root, false)

	if jsonOutput {
		_ = writeJSON(stdout, res)
	} else {
		for _, c := range res.Changes {
			fmt.Fprintf(stdout, "%s %s\n", color.GreenString("✓"), c)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(stdout, "%s %s\n", color.YellowString("⚠"), w)
		}
		for _, e := range res.Errors {
			fmt.Fprintf(stderr, "%s %s\n", color.RedString("✗"), e)
		}
	}
	if !res.Success {
		return 1
	}
	return 0
}

func runHooksList(path string, stdout, stderr io.Writer) int {
	root, err := resolveRoot(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	statuses, err := migrations.CheckHooks(root)
	if err != nil {
		if jsonOutput {
			_ = writeJSON(stdout, map[string]interface{}{"error": err.Error()})
		} else {
			fmt.Fprintf(stderr, "Error checking hooks: %v\n", err)
		}
		return 1
	}

	if jsonOutput {
		_ = writeJSON(stdout, map[string]interface{}{"hooks": statuses})
		return 0
	}

	fmt.Fprintln(stdout, "Git hooks status:")
	for _, st := range statuses {
		switch {
		case !st.Installed:
			fmt.Fprintf(stdout, "  ✗ %s: not installed\n", st.Name)
		case st.Foreign:
			fmt.Fprintf(stdout, "  - %s: your own hook (left unchanged)\n", st.Name)
		case st.Outdated:
			fmt.Fprintf(stdout, "  ⚠ %s: installed (version %s) - outdated\n", st.Name, st.Version)
		default:
			fmt.Fprintf(stdout, "  ✓ %s: installed (version %s)\n", st.Name, st.Version)
		}
	}
	return 0
}

func init() {
	hooksCmd.AddCommand(hooksInstallCmd)
	hooksCmd.AddCommand(hooksListCmd)
	rootCmd.AddCommand(hooksCmd)
}
