package upgrade

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	kdebug "github.com/spec-kitty/spec-kitty/internal/debug"
	"github.com/spec-kitty/spec-kitty/internal/kittify"
)

// Reasons a worktree is not upgraded.
const (
	ReasonLinked         = "linked to the main control directory"
	ReasonNotInitialized = "no control directory"
)

func (r *Runner) jobs() int {
	if r.Options.Jobs > 0 {
		return r.Options.Jobs
	}
	return runtime.NumCPU()
}

// propagate upgrades each worktree on a bounded pool. One worktree failing
// or panicking never stops its siblings. Results keep the input order.
func (r *Runner) propagate(ctx context.Context, worktrees []kittify.Worktree) []WorktreeReport {
	reports := make([]WorktreeReport, len(worktrees))
	if len(worktrees) == 0 {
		return reports
	}

	// A plain Group: a worktree error must not cancel the others.
	var g errgroup.Group
	g.SetLimit(r.jobs())

	for i, wt := range worktrees {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					err := &Error{Kind: ErrWorktreeUpgradeFailed, Message: fmt.Sprintf("%s: panic: %v", wt.Name, p)}
					reports[i] = WorktreeReport{
						Name:       wt.Name,
						Path:       wt.Path,
						Status:     StatusFailed,
						Reason:     err.Message,
						Migrations: []MigrationReport{},
						Error:      newErrorReport(err),
					}
				}
			}()
			reports[i] = r.upgradeWorktree(ctx, wt)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func (r *Runner) upgradeWorktree(ctx context.Context, wt kittify.Worktree) WorktreeReport {
	wr := WorktreeReport{
		Name:       wt.Name,
		Path:       wt.Path,
		Branch:     kittify.CurrentBranch(wt.Path),
		Migrations: []MigrationReport{},
	}

	switch {
	case wt.Linked:
		wr.Status = StatusSkipped
		wr.Reason = ReasonLinked
		return wr
	case !wt.Initialized:
		wr.Status = StatusSkipped
		wr.Reason = ReasonNotInitialized
		return wr
	}

	if !r.Options.DryRun {
		if err := kittify.CheckWritable(kittify.ResolveControlDir(wt.Path)); err != nil {
			return failWorktree(wr, err)
		}
	}

	sub := &Runner{
		Registry: r.Registry,
		Detector: r.Detector,
		Options:  r.Options,
	}
	sub.Options.NoWorktrees = true
	sub.Options.skipGitCheck = true

	rep, err := sub.Run(ctx, wt.Path)
	if rep != nil {
		wr.CurrentVersion = rep.CurrentVersion
		wr.FinalVersion = rep.FinalVersion
		wr.Migrations = rep.Migrations
		wr.Status = rep.Status
	}
	if err != nil {
		return failWorktree(wr, err)
	}
	return wr
}

func failWorktree(wr WorktreeReport, cause error) WorktreeReport {
	err := &Error{Kind: ErrWorktreeUpgradeFailed, Message: wr.Name, Err: cause}
	kdebug.Logf("%v", err)
	wr.Status = StatusFailed
	wr.Reason = cause.Error()
	wr.Error = newErrorReport(err)
	return wr
}

// pendingWorktrees returns the independent worktrees with at least one
// migration left to apply below target.
func (r *Runner) pendingWorktrees(worktrees []kittify.Worktree, target string) []kittify.Worktree {
	var out []kittify.Worktree
	for _, wt := range worktrees {
		if wt.Linked || !wt.Initialized {
			continue
		}
		det := r.Detector.Detect(wt.Path)
		if det.Version == Unknown || len(r.Registry.Applicable(det.Version, target)) > 0 {
			out = append(out, wt)
		}
	}
	return out
}
