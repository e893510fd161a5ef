// Package speckitty exposes the spec-kitty upgrade engine to Go programs that
// want to inspect or migrate projects without shelling out to the CLI.
//
// Most callers only need Upgrade. DetectVersion and PendingMigrations are
// read-only and safe to call on any directory.
package speckitty

import (
	"context"

	"github.com/spec-kitty/spec-kitty/internal/upgrade"
	"github.com/spec-kitty/spec-kitty/internal/upgrade/migrations"
)

// Core types from internal/upgrade
type (
	Options         = upgrade.Options
	Plan            = upgrade.Plan
	Report          = upgrade.Report
	Status          = upgrade.Status
	MigrationReport = upgrade.MigrationReport
	WorktreeReport  = upgrade.WorktreeReport
	Error           = upgrade.Error
	Detection       = upgrade.Detection
	Migration       = upgrade.Migration
)

// Run statuses
const (
	StatusSuccess   = upgrade.StatusSuccess
	StatusNothing   = upgrade.StatusNothing
	StatusBlocked   = upgrade.StatusBlocked
	StatusFailed    = upgrade.StatusFailed
	StatusCancelled = upgrade.StatusCancelled
	StatusSkipped   = upgrade.StatusSkipped
)

// Error kinds, for use with errors.Is
var (
	ErrNotAProjectRoot       = upgrade.ErrNotAProjectRoot
	ErrNotAGitRepo           = upgrade.ErrNotAGitRepo
	ErrDetectionAmbiguous    = upgrade.ErrDetectionAmbiguous
	ErrConflictingState      = upgrade.ErrConflictingState
	ErrPreconditionBlocked   = upgrade.ErrPreconditionBlocked
	ErrMigrationFailed       = upgrade.ErrMigrationFailed
	ErrWorktreeUpgradeFailed = upgrade.ErrWorktreeUpgradeFailed
	ErrInvalidTarget         = upgrade.ErrInvalidTarget
	ErrLocked                = upgrade.ErrLocked
)

// LatestVersion is the layout version the built-in migrations lead to.
func LatestVersion() string {
	return migrations.CurrentVersion()
}

// DetectVersion reports the layout version of the project at root and how
// it was found. Version is "unknown" when nothing matched.
func DetectVersion(root string) Detection {
	return upgrade.NewDetector().Detect(root)
}

// PendingMigrations lists the built-in migrations newer than the detected
// version of root, up to target (latest when empty).
func PendingMigrations(root, target string) []Migration {
	reg := migrations.Default()
	if target == "" {
		target = reg.Latest()
	}
	v := upgrade.DetectVersion(root)
	if v == upgrade.Unknown {
		return nil
	}
	return reg.Applicable(v, target)
}

// Upgrade brings root and its worktrees to opts.Target (latest when empty)
// with the built-in migrations. confirm may be nil to proceed without asking.
func Upgrade(ctx context.Context, root string, opts Options, confirm func(Plan) bool) (*Report, error) {
	r := upgrade.NewRunner(migrations.Default(), opts)
	r.Confirm = confirm
	return r.Run(ctx, root)
}
