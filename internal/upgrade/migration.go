// Package upgrade brings a spec-kitty project forward to the current on-disk
// layout.
//
// A Runner detects the project's structural version, plans the registered
// migrations newer than it, applies them one at a time while recording each
// outcome in the project's metadata, and then repeats the plan for every
// independent worktree under .worktrees/.
package upgrade

import "fmt"

// Migration is a single idempotent structural transformation.
//
// Detect inspects only the filesystem, never metadata. Apply on a tree that
// is already migrated must be a no-op, because the runner re-attempts
// migrations recorded as failed.
type Migration interface {
	ID() string
	Description() string
	TargetVersion() string

	// Detect reports whether the structure this migration fixes is present.
	Detect(root string) bool
	// CanApply reports blocking conflicts. Use ConflictReason for layouts
	// that must be resolved by hand.
	CanApply(root string) (bool, string)
	// Apply performs the change. With dryRun set it must not touch the
	// filesystem and reports "Would ..." changes instead.
	Apply(root string, dryRun bool) *Result
}

// Result is what one Apply call did (or would do).
type Result struct {
	Success       bool     `json:"success"`
	Changes       []string `json:"changes"`
	Warnings      []string `json:"warnings"`
	Errors        []string `json:"errors"`
	FilesAffected int      `json:"files_affected"`
}

// NewResult returns a successful, empty result.
func NewResult() *Result {
	return &Result{Success: true, Changes: []string{}, Warnings: []string{}, Errors: []string{}}
}

// Changef records a change line.
func (r *Result) Changef(format string, args ...interface{}) {
	r.Changes = append(r.Changes, fmt.Sprintf(format, args...))
}

// Warnf records a warning.
func (r *Result) Warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Failf records an error and marks the result failed.
func (r *Result) Failf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Success = false
}

// Base carries the static descriptor fields of a migration. Concrete
// migrations embed it.
type Base struct {
	id          string
	description string
	target      string
}

// NewBase builds the descriptor for a migration.
func NewBase(id, description, targetVersion string) Base {
	return Base{id: id, description: description, target: targetVersion}
}

func (b Base) ID() string            { return b.id }
func (b Base) Description() string   { return b.description }
func (b Base) TargetVersion() string { return b.target }
