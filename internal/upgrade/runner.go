package upgrade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	kdebug "github.com/spec-kitty/spec-kitty/internal/debug"
	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/metadata"
)

// Options control one upgrade run.
type Options struct {
	DryRun bool
	// Target caps the plan. Empty means the latest registered version.
	Target      string
	NoWorktrees bool
	// Jobs bounds concurrent worktree upgrades. Zero means runtime.NumCPU().
	Jobs        int
	LockDir     string
	LockTimeout time.Duration

	// skipGitCheck is set for worktree runs: the main tree was already
	// verified to be a repository.
	skipGitCheck bool
}

// Plan is what a mutating run is about to do, shown before confirmation.
type Plan struct {
	Root           string
	CurrentVersion string
	TargetVersion  string
	Migrations     []Migration
	// Worktrees lists the independent worktrees that have pending migrations.
	Worktrees []kittify.Worktree
}

// Empty reports whether the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Migrations) == 0 && len(p.Worktrees) == 0
}

// Runner drives detect, plan, confirm, execute, persist and propagate for
// one project root.
type Runner struct {
	Registry *Registry
	Detector *Detector
	Options  Options
	// Confirm is asked before any mutating run with a non-empty plan. A nil
	// Confirm proceeds.
	Confirm func(Plan) bool
}

// NewRunner creates a runner over reg with the default detector.
func NewRunner(reg *Registry, opts Options) *Runner {
	return &Runner{Registry: reg, Detector: NewDetector(), Options: opts}
}

// Run upgrades root and, unless disabled, its worktrees. The report is
// always returned; err is non-nil when the main tree could not be brought
// to the target version. Worktree failures only show in the report.
func (r *Runner) Run(ctx context.Context, root string) (*Report, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	report := &Report{
		RunID:       uuid.NewString(),
		ProjectRoot: abs,
		DryRun:      r.Options.DryRun,
		Migrations:  []MigrationReport{},
		Worktrees:   []WorktreeReport{},
	}

	err = r.run(ctx, abs, report)
	if err != nil {
		report.Error = newErrorReport(err)
		if report.Status == "" {
			report.Status = StatusBlocked
		}
		kdebug.Logf("upgrade %s: %s: %v", report.RunID, abs, err)
	} else {
		kdebug.Logf("upgrade %s: %s: %s (%s -> %s)", report.RunID, abs, report.Status, report.CurrentVersion, report.FinalVersion)
	}
	return report, err
}

func (r *Runner) run(ctx context.Context, root string, report *Report) error {
	if !kittify.IsProjectRoot(root) {
		return &Error{
			Kind:    ErrNotAProjectRoot,
			Message: fmt.Sprintf("%s has neither %s/ nor %s/", root, kittify.ControlDir, kittify.LegacyControlDir),
		}
	}
	if !r.Options.skipGitCheck {
		if err := kittify.GitCheck(root); err != nil {
			return &Error{Kind: ErrNotAGitRepo, Err: err}
		}
	}

	// detect
	det := r.Detector.Detect(root)
	report.CurrentVersion = det.Version
	report.VersionSource = det.Source
	report.FinalVersion = det.Version
	if det.MetadataErr != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("ignored unreadable metadata: %v", det.MetadataErr))
	}
	if broken := BrokenMissions(root); len(broken) > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("unreadable mission descriptor in %v; run 'spec-kitty doctor' for details", broken))
	}
	if det.Version == Unknown {
		return &Error{
			Kind: ErrDetectionAmbiguous,
			Message: fmt.Sprintf("no known layout matched %s. Write %s with spec_kitty.version set to the release that created this project, then re-run",
				root, filepath.Join(kittify.ControlDir, metadata.FileName)),
		}
	}

	// plan
	target := r.Registry.Latest()
	if r.Options.Target != "" {
		if !ValidVersion(r.Options.Target) {
			return &Error{Kind: ErrInvalidTarget, Message: fmt.Sprintf("%q is not a semantic version", r.Options.Target)}
		}
		// Recording a version no migration leads to would hide every
		// migration a later release adds below it.
		if CompareVersions(r.Options.Target, target) > 0 {
			return &Error{Kind: ErrInvalidTarget, Message: fmt.Sprintf("%s is newer than the latest known layout %s", r.Options.Target, target)}
		}
		target = r.Options.Target
	}
	report.TargetVersion = target
	chain := r.Registry.Applicable(det.Version, target)

	meta := loadOrCreateMetadata(root, det)

	var pending []Migration
	for _, m := range chain {
		if !meta.HasSucceeded(m.ID()) {
			pending = append(pending, m)
		}
	}

	var worktrees []kittify.Worktree
	if !r.Options.NoWorktrees {
		var err error
		worktrees, err = kittify.ListWorktrees(root)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("listing worktrees: %v", err))
		}
	}

	if r.Options.DryRun {
		err := r.dryRun(root, chain, meta, report)
		if err == nil || isFailure(err) {
			report.Worktrees = r.propagate(ctx, worktrees)
		}
		return err
	}

	// confirm
	if r.Confirm != nil {
		plan := Plan{
			Root:           root,
			CurrentVersion: det.Version,
			TargetVersion:  target,
			Migrations:     pending,
			Worktrees:      r.pendingWorktrees(worktrees, target),
		}
		if !plan.Empty() && !r.Confirm(plan) {
			report.Status = StatusCancelled
			for _, m := range chain {
				report.Migrations = append(report.Migrations, newMigrationReport(m, MigrationPending))
			}
			return nil
		}
	}

	// execute
	lock, err := AcquireLock(ctx, r.lockDir(), root, r.Options.LockTimeout)
	if err != nil {
		return err
	}
	execErr := r.execute(ctx, root, chain, meta, report)
	if rerr := lock.Release(); rerr != nil {
		kdebug.Logf("releasing lock %s: %v", lock.Path(), rerr)
	}

	// propagate
	if execErr == nil || isFailure(execErr) {
		report.Worktrees = r.propagate(ctx, worktrees)
	}
	return execErr
}

// isFailure is true for a recorded migration failure, after which worktrees
// are still processed. Blocked chains stop everything.
func isFailure(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrMigrationFailed
}

// loadOrCreateMetadata starts a fresh record at the detected version when
// the file is missing or unreadable. An unreadable file is moved aside on
// the first write.
func loadOrCreateMetadata(root string, det Detection) *metadata.ProjectMetadata {
	meta, err := metadata.Load(kittify.ResolveControlDir(root))
	if err != nil || meta == nil {
		return metadata.New(det.Version)
	}
	return meta
}

func (r *Runner) dryRun(root string, chain []Migration, meta *metadata.ProjectMetadata, report *Report) error {
	for _, m := range chain {
		if meta.HasSucceeded(m.ID()) {
			report.Migrations = append(report.Migrations, newMigrationReport(m, MigrationAlreadyApplied))
			continue
		}
		if !m.Detect(root) {
			mr := newMigrationReport(m, MigrationSkipped)
			mr.Changes = append(mr.Changes, "Nothing to migrate")
			report.Migrations = append(report.Migrations, mr)
			continue
		}
		if ok, reason := m.CanApply(root); !ok {
			mr := newMigrationReport(m, MigrationBlocked)
			mr.Errors = append(mr.Errors, strings.TrimPrefix(reason, conflictPrefix))
			report.Migrations = append(report.Migrations, mr)
			report.Status = StatusBlocked
			return blockedError(m.ID(), reason)
		}

		res := safeApply(m, root, true)
		mr := newMigrationReport(m, MigrationWouldApply)
		mr.absorb(res)
		if !res.Success {
			mr.Status = MigrationFailed
			report.Migrations = append(report.Migrations, mr)
			report.Status = StatusFailed
			return &Error{Kind: ErrMigrationFailed, MigrationID: m.ID(), Message: firstOr(res.Errors, "dry run failed")}
		}
		report.Migrations = append(report.Migrations, mr)
	}

	if report.Count(MigrationWouldApply) > 0 {
		report.Status = StatusSuccess
	} else {
		report.Status = StatusNothing
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, root string, chain []Migration, meta *metadata.ProjectMetadata, report *Report) error {
	wrote := false
	save := func() error {
		control := kittify.ResolveControlDir(root)
		if control == "" {
			return fmt.Errorf("control directory disappeared from %s", root)
		}
		backupCorruptMetadata(control, report)
		meta.MarkUpgraded()
		if err := meta.Save(control); err != nil {
			return err
		}
		wrote = true
		return nil
	}

	for i, m := range chain {
		if err := ctx.Err(); err != nil {
			report.Status = StatusFailed
			return &Error{Kind: ErrMigrationFailed, MigrationID: m.ID(), Message: "interrupted before this migration started", Err: err}
		}

		if meta.HasSucceeded(m.ID()) {
			report.Migrations = append(report.Migrations, newMigrationReport(m, MigrationAlreadyApplied))
			continue
		}

		if !m.Detect(root) {
			meta.RecordMigration(m.ID(), m.TargetVersion(), metadata.OutcomeSkipped)
			advance(meta, m.TargetVersion())
			mr := newMigrationReport(m, MigrationSkipped)
			mr.Changes = append(mr.Changes, "Nothing to migrate")
			report.Migrations = append(report.Migrations, mr)
			if err := save(); err != nil {
				report.Status = StatusFailed
				return &Error{Kind: ErrMigrationFailed, MigrationID: m.ID(), Message: "recording outcome", Err: err}
			}
			continue
		}

		if ok, reason := m.CanApply(root); !ok {
			mr := newMigrationReport(m, MigrationBlocked)
			mr.Errors = append(mr.Errors, strings.TrimPrefix(reason, conflictPrefix))
			report.Migrations = append(report.Migrations, mr)
			report.Status = StatusBlocked
			report.FinalVersion = meta.Version()
			return blockedError(m.ID(), reason)
		}

		kdebug.Logf("upgrade %s: applying %s", report.RunID, m.ID())
		res := safeApply(m, root, false)
		mr := newMigrationReport(m, MigrationApplied)
		mr.absorb(res)

		if !res.Success {
			mr.Status = MigrationFailed
			report.Migrations = append(report.Migrations, mr)
			meta.RecordMigration(m.ID(), m.TargetVersion(), metadata.OutcomeFailed)
			report.Status = StatusFailed
			if err := save(); err != nil {
				kdebug.Logf("upgrade %s: recording failure of %s: %v", report.RunID, m.ID(), err)
			}
			report.FinalVersion = meta.Version()
			remaining := len(chain) - i - 1
			return &Error{
				Kind:        ErrMigrationFailed,
				MigrationID: m.ID(),
				Message:     fmt.Sprintf("%s (%d later migration(s) not attempted; re-run upgrade after fixing)", firstOr(res.Errors, "apply failed"), remaining),
			}
		}

		meta.RecordMigration(m.ID(), m.TargetVersion(), metadata.OutcomeSuccess)
		advance(meta, m.TargetVersion())
		report.Migrations = append(report.Migrations, mr)
		if err := save(); err != nil {
			report.Status = StatusFailed
			return &Error{Kind: ErrMigrationFailed, MigrationID: m.ID(), Message: "applied but could not record outcome", Err: err}
		}
	}

	if wrote && CompareVersions(report.TargetVersion, meta.Version()) > 0 {
		meta.SetVersion(report.TargetVersion)
		if err := save(); err != nil {
			report.Status = StatusFailed
			return &Error{Kind: ErrMigrationFailed, Message: "recording final version", Err: err}
		}
	}
	report.FinalVersion = meta.Version()

	if report.Count(MigrationApplied) > 0 || report.Count(MigrationSkipped) > 0 {
		report.Status = StatusSuccess
	} else {
		report.Status = StatusNothing
	}
	return nil
}

// advance moves the recorded version forward, never back.
func advance(meta *metadata.ProjectMetadata, v string) {
	if CompareVersions(v, meta.Version()) > 0 {
		meta.SetVersion(v)
	}
}

// safeApply turns a panicking migration into a failed result.
func safeApply(m Migration, root string, dryRun bool) (res *Result) {
	defer func() {
		if p := recover(); p != nil {
			kdebug.Logf("migration %s panicked: %v\n%s", m.ID(), p, debug.Stack())
			res = NewResult()
			res.Failf("migration panicked: %v", p)
		}
	}()
	res = m.Apply(root, dryRun)
	if res == nil {
		res = NewResult()
		res.Failf("migration returned no result")
	}
	return res
}

// backupCorruptMetadata moves an unreadable metadata file aside before the
// first write replaces it.
func backupCorruptMetadata(control string, report *Report) {
	path := metadata.Path(control)
	if _, err := os.Stat(path); err != nil {
		return
	}
	if _, err := metadata.Load(control); err == nil {
		return
	}
	backup := path + ".corrupt-" + time.Now().UTC().Format("20060102T150405")
	if err := os.Rename(path, backup); err != nil {
		kdebug.Logf("backing up corrupt metadata: %v", err)
		return
	}
	report.Warnings = append(report.Warnings, fmt.Sprintf("unreadable metadata moved to %s", backup))
}

func (r *Runner) lockDir() string {
	if r.Options.LockDir != "" {
		return r.Options.LockDir
	}
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, "spec-kitty", "locks")
	}
	return filepath.Join(os.TempDir(), "spec-kitty-locks")
}

func firstOr(list []string, fallback string) string {
	if len(list) > 0 {
		return list[0]
	}
	return fallback
}
