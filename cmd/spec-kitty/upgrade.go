package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/spec-kitty/spec-kitty/internal/config"
	"github.com/spec-kitty/spec-kitty/internal/debug"
	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/upgrade"
	"github.com/spec-kitty/spec-kitty/internal/upgrade/migrations"
)

// upgradeFlags are the resolved upgrade options after config merging.
type upgradeFlags struct {
	dryRun      bool
	force       bool
	list        bool
	noWorktrees bool
	target      string
	jobs        int
}

// stdinIsTerminal gates the confirmation prompt.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) // #nosec G115 - file descriptors fit in int
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [path]",
	Short: "Upgrade a project to the current spec-kitty layout",
	Long: `Detect the layout version of a spec-kitty project and apply every
migration newer than it, in order. Each outcome is recorded in
.kittify/metadata.yaml right away, so an interrupted or failed upgrade
resumes where it stopped. Independent worktrees under .worktrees/ are
upgraded afterwards.

Examples:
  spec-kitty upgrade                  # Upgrade the project containing cwd
  spec-kitty upgrade --dry-run        # Show what would change
  spec-kitty upgrade --target 0.6.4   # Stop at an intermediate version
  spec-kitty upgrade --json --force   # Non-interactive, machine-readable
  spec-kitty upgrade --list           # Show registered migrations`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f := upgradeFlags{}
		f.dryRun, _ = cmd.Flags().GetBool("dry-run")
		f.force, _ = cmd.Flags().GetBool("force")
		f.list, _ = cmd.Flags().GetBool("list")
		f.target, _ = cmd.Flags().GetString("target")

		f.noWorktrees, _ = cmd.Flags().GetBool("no-worktrees")
		if !cmd.Flags().Changed("no-worktrees") {
			f.noWorktrees = config.GetBool("no-worktrees")
		}
		f.jobs, _ = cmd.Flags().GetInt("jobs")
		if !cmd.Flags().Changed("jobs") {
			f.jobs = config.GetInt("worktree-jobs")
		}

		path := ""
		if len(args) > 0 {
			path = args[0]
		}

		if !f.dryRun && !f.list {
			if err := debug.EnableFileLog(config.GetString("log-file")); err != nil {
				debug.Logf("upgrade log disabled: %v", err)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		setExitCode(runUpgrade(ctx, path, f, os.Stdout, os.Stderr, os.Stdin))
	},
}

func init() {
	upgradeCmd.Flags().Bool("dry-run", false, "Show planned changes without touching the project")
	upgradeCmd.Flags().BoolP("force", "f", false, "Skip the confirmation prompt")
	upgradeCmd.Flags().String("target", "", "Stop at this layout version (default: latest)")
	upgradeCmd.Flags().Bool("no-worktrees", false, "Do not upgrade worktrees under .worktrees/")
	upgradeCmd.Flags().Int("jobs", 0, "Worktrees upgraded in parallel (default: number of CPUs)")
	upgradeCmd.Flags().Bool("list", false, "List registered migrations and exit")
	rootCmd.AddCommand(upgradeCmd)
}

// resolveRoot picks the project to upgrade: the explicit path, else the
// nearest project root above cwd, else cwd itself (which then fails the
// project-root check with a clear error).
func resolveRoot(path string) (string, error) {
	if path != "" {
		return filepath.Abs(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if root := kittify.FindProjectRoot(cwd); root != "" {
		return root, nil
	}
	return cwd, nil
}

// runUpgrade runs the upgrade command and returns the process exit code.
func runUpgrade(ctx context.Context, path string, f upgradeFlags, stdout, stderr io.Writer, stdin io.Reader) int {
	reg := migrations.Default()
	if f.list {
		return listMigrations(stdout, reg)
	}

	root, err := resolveRoot(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	runner := upgrade.NewRunner(reg, upgrade.Options{
		DryRun:      f.dryRun,
		Target:      f.target,
		NoWorktrees: f.noWorktrees,
		Jobs:        f.jobs,
		LockDir:     config.GetString("lock-dir"),
		LockTimeout: config.GetDuration("lock-timeout"),
	})

	refused := false
	if !f.force {
		runner.Confirm = func(plan upgrade.Plan) bool {
			if jsonOutput || !stdinIsTerminal() {
				refused = true
				return false
			}
			return confirmPlan(stdout, stdin, plan)
		}
	}

	report, err := runner.Run(ctx, root)
	if report == nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if jsonOutput {
		if werr := writeJSON(stdout, report); werr != nil {
			fmt.Fprintf(stderr, "Error encoding JSON: %v\n", werr)
			return 1
		}
	} else {
		printReport(stdout, report)
	}

	switch {
	case err != nil:
		if !jsonOutput {
			fmt.Fprintf(stderr, "%s %v\n", color.RedString("✗ Error:"), err)
			if hint := errorHint(err); hint != "" {
				fmt.Fprintf(stderr, "Hint: %s\n", hint)
			}
		}
		return 1
	case refused:
		fmt.Fprintf(stderr, "Error: upgrade needs confirmation but stdin is not interactive\n")
		fmt.Fprintf(stderr, "Hint: re-run with --force to apply, or --dry-run to preview\n")
		return 1
	}
	return 0
}

func errorHint(err error) string {
	switch upgrade.KindName(err) {
	case "not_a_project_root":
		return "run from inside a spec-kitty project, or pass its path"
	case "not_a_git_repo":
		return "spec-kitty projects live in git repositories; run 'git init' first"
	case "conflicting_state":
		return "resolve the conflict by hand, then re-run 'spec-kitty upgrade'"
	case "migration_failed":
		return "fix the reported problem and re-run; completed migrations are not repeated"
	case "locked":
		return "wait for the other upgrade to finish, or raise lock-timeout"
	}
	return ""
}

func confirmPlan(w io.Writer, r io.Reader, plan upgrade.Plan) bool {
	fmt.Fprintf(w, "\nUpgrade %s from %s to %s:\n", plan.Root, plan.CurrentVersion, plan.TargetVersion)
	for _, m := range plan.Migrations {
		fmt.Fprintf(w, "  - %s: %s\n", m.ID(), m.Description())
	}
	if len(plan.Worktrees) > 0 {
		fmt.Fprintf(w, "  and %d worktree(s):", len(plan.Worktrees))
		for _, wt := range plan.Worktrees {
			fmt.Fprintf(w, " %s", wt.Name)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprint(w, "\nContinue? [y/N] ")

	var response string
	_, _ = fmt.Fscanln(r, &response) // ignore EOF on empty input
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func listMigrations(w io.Writer, reg *upgrade.Registry) int {
	type entry struct {
		ID            string `json:"id"`
		TargetVersion string `json:"target_version"`
		Description   string `json:"description"`
	}
	all := reg.All()
	if jsonOutput {
		entries := make([]entry, 0, len(all))
		for _, m := range all {
			entries = append(entries, entry{m.ID(), m.TargetVersion(), m.Description()})
		}
		if err := writeJSON(w, entries); err != nil {
			return 1
		}
		return 0
	}

	fmt.Fprintf(w, "Registered migrations (latest layout %s):\n\n", reg.Latest())
	for _, m := range all {
		fmt.Fprintf(w, "  %-8s %-28s %s\n", m.TargetVersion(), m.ID(), m.Description())
	}
	return 0
}

func migrationIcon(status string) string {
	switch status {
	case upgrade.MigrationApplied, upgrade.MigrationWouldApply:
		return color.GreenString("✓")
	case upgrade.MigrationFailed, upgrade.MigrationBlocked:
		return color.RedString("✗")
	case upgrade.MigrationPending:
		return color.YellowString("•")
	default:
		return color.New(color.Faint).Sprint("-")
	}
}

// printReport renders a human summary. Already-applied and skipped
// migrations only show with --verbose.
func printReport(w io.Writer, rep *upgrade.Report) {
	if rep.CurrentVersion == "" {
		return
	}
	fmt.Fprintf(w, "Project: %s\n", rep.ProjectRoot)
	fmt.Fprintf(w, "Layout version: %s (%s)", rep.CurrentVersion, rep.VersionSource)
	if rep.TargetVersion != "" {
		fmt.Fprintf(w, ", target %s", rep.TargetVersion)
	}
	fmt.Fprintln(w)
	if rep.DryRun {
		color.New(color.FgCyan).Fprintln(w, "Dry run: nothing will be changed")
	}
	fmt.Fprintln(w)

	printMigrations(w, rep.Migrations, "  ")

	for _, warning := range rep.Warnings {
		fmt.Fprintf(w, "%s %s\n", color.YellowString("⚠"), warning)
	}

	if len(rep.Worktrees) > 0 {
		fmt.Fprintf(w, "\nWorktrees:\n")
		for _, wt := range rep.Worktrees {
			line := fmt.Sprintf("%s: %s", wt.Name, wt.Status)
			if wt.CurrentVersion != "" && wt.FinalVersion != "" && wt.CurrentVersion != wt.FinalVersion {
				line += fmt.Sprintf(" (%s → %s)", wt.CurrentVersion, wt.FinalVersion)
			}
			if wt.Reason != "" {
				line += " - " + wt.Reason
			}
			switch wt.Status {
			case upgrade.StatusFailed:
				fmt.Fprintf(w, "  %s %s\n", color.RedString("✗"), line)
			case upgrade.StatusSuccess:
				fmt.Fprintf(w, "  %s %s\n", color.GreenString("✓"), line)
			default:
				fmt.Fprintf(w, "  - %s\n", line)
			}
			if verbose {
				printMigrations(w, wt.Migrations, "      ")
			}
		}
	}

	fmt.Fprintln(w)
	switch rep.Status {
	case upgrade.StatusSuccess:
		if rep.DryRun {
			fmt.Fprintf(w, "%s %d migration(s) would be applied\n", color.GreenString("✓"), rep.Count(upgrade.MigrationWouldApply))
		} else {
			fmt.Fprintf(w, "%s Upgraded to %s\n", color.GreenString("✓"), rep.FinalVersion)
		}
	case upgrade.StatusNothing:
		fmt.Fprintf(w, "%s Already up to date (%s)\n", color.GreenString("✓"), rep.FinalVersion)
	case upgrade.StatusCancelled:
		fmt.Fprintln(w, "Upgrade canceled")
	}
	if n := rep.FailedWorktrees(); n > 0 {
		fmt.Fprintf(w, "%s %d worktree(s) could not be upgraded\n", color.YellowString("⚠"), n)
	}
}

func printMigrations(w io.Writer, entries []upgrade.MigrationReport, indent string) {
	for _, m := range entries {
		quiet := m.Status == upgrade.MigrationAlreadyApplied || m.Status == upgrade.MigrationSkipped
		if quiet && !verbose {
			continue
		}
		fmt.Fprintf(w, "%s%s %s  %s\n", indent, migrationIcon(m.Status), m.ID, m.Description)
		if quiet {
			continue
		}
		for _, c := range m.Changes {
			fmt.Fprintf(w, "%s    %s\n", indent, c)
		}
		for _, warning := range m.Warnings {
			fmt.Fprintf(w, "%s    %s %s\n", indent, color.YellowString("⚠"), warning)
		}
		for _, e := range m.Errors {
			fmt.Fprintf(w, "%s    %s %s\n", indent, color.RedString("✗"), e)
		}
	}
}
