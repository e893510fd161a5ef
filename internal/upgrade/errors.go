package upgrade

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every *Error unwraps to exactly one of these.
var (
	ErrDetectionAmbiguous    = errors.New("project version could not be determined")
	ErrConflictingState      = errors.New("conflicting project layout")
	ErrPreconditionBlocked   = errors.New("migration precondition not met")
	ErrMigrationFailed       = errors.New("migration failed")
	ErrWorktreeUpgradeFailed = errors.New("worktree upgrade failed")
	ErrNotAProjectRoot       = errors.New("not a spec-kitty project")
	ErrNotAGitRepo           = errors.New("not a git repository")
	ErrLocked                = errors.New("another upgrade is already running")
	ErrInvalidTarget         = errors.New("invalid target version")
)

// Error carries the kind of failure plus enough context to tell the user
// what to do about it.
type Error struct {
	Kind        error
	Message     string
	MigrationID string
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.MigrationID != "" {
		fmt.Fprintf(&b, " (%s)", e.MigrationID)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Is matches the sentinel kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// kindNames is ordered: when a chain matches several kinds, the first wins.
var kindNames = []struct {
	kind error
	name string
}{
	{ErrWorktreeUpgradeFailed, "worktree_upgrade_failed"},
	{ErrMigrationFailed, "migration_failed"},
	{ErrConflictingState, "conflicting_state"},
	{ErrPreconditionBlocked, "precondition_blocked"},
	{ErrDetectionAmbiguous, "detection_ambiguous"},
	{ErrNotAProjectRoot, "not_a_project_root"},
	{ErrNotAGitRepo, "not_a_git_repo"},
	{ErrLocked, "locked"},
	{ErrInvalidTarget, "invalid_target"},
}

// KindName is the stable snake_case name used in JSON output. The outermost
// *Error decides, so a worktree failure caused by a conflict is still a
// worktree failure.
func KindName(err error) string {
	var e *Error
	if errors.As(err, &e) {
		for _, k := range kindNames {
			if k.kind == e.Kind {
				return k.name
			}
		}
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "internal"
}

// conflictPrefix marks a CanApply reason as a hard layout conflict.
const conflictPrefix = "conflict: "

// ConflictReason formats a CanApply reason for two mutually exclusive
// layouts. The runner reports it as ErrConflictingState.
func ConflictReason(a, b, advice string) string {
	return fmt.Sprintf("%sboth %s and %s exist. %s", conflictPrefix, a, b, advice)
}

func isConflictReason(reason string) bool {
	return strings.HasPrefix(reason, conflictPrefix)
}

func blockedError(id, reason string) *Error {
	if isConflictReason(reason) {
		return &Error{
			Kind:        ErrConflictingState,
			MigrationID: id,
			Message:     strings.TrimPrefix(reason, conflictPrefix),
		}
	}
	return &Error{Kind: ErrPreconditionBlocked, MigrationID: id, Message: reason}
}
