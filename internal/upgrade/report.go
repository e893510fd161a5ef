package upgrade

// Status is the overall outcome of a run against one tree.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusNothing   Status = "nothing_to_do"
	StatusBlocked   Status = "blocked"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
)

// Per-migration statuses in a report.
const (
	MigrationApplied        = "applied"
	MigrationWouldApply     = "would_apply"
	MigrationAlreadyApplied = "already_applied"
	MigrationSkipped        = "skipped"
	MigrationBlocked        = "blocked"
	MigrationFailed         = "failed"
	MigrationPending        = "pending"
)

// Report is the machine-readable result of Runner.Run.
type Report struct {
	RunID          string            `json:"run_id"`
	ProjectRoot    string            `json:"project_root"`
	CurrentVersion string            `json:"current_version"`
	VersionSource  string            `json:"version_source"`
	TargetVersion  string            `json:"target_version"`
	FinalVersion   string            `json:"final_version"`
	DryRun         bool              `json:"dry_run"`
	Status         Status            `json:"status"`
	Migrations     []MigrationReport `json:"migrations"`
	Worktrees      []WorktreeReport  `json:"worktrees"`
	Warnings       []string          `json:"warnings,omitempty"`
	Error          *ErrorReport      `json:"error,omitempty"`
}

// MigrationReport describes one planned migration. migration_id and id
// carry the same value for consumers of either name.
type MigrationReport struct {
	MigrationID   string   `json:"migration_id"`
	ID            string   `json:"id"`
	Description   string   `json:"description"`
	TargetVersion string   `json:"target_version"`
	Status        string   `json:"status"`
	Changes       []string `json:"changes"`
	Warnings      []string `json:"warnings"`
	Errors        []string `json:"errors"`
	FilesAffected int      `json:"files_affected"`
}

// WorktreeReport is the outcome for one secondary checkout.
type WorktreeReport struct {
	Name           string            `json:"name"`
	Path           string            `json:"path"`
	Branch         string            `json:"branch,omitempty"`
	Status         Status            `json:"status"`
	Reason         string            `json:"reason,omitempty"`
	CurrentVersion string            `json:"current_version,omitempty"`
	FinalVersion   string            `json:"final_version,omitempty"`
	Migrations     []MigrationReport `json:"migrations"`
	Error          *ErrorReport      `json:"error,omitempty"`
}

// ErrorReport is the JSON form of an error.
type ErrorReport struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func newErrorReport(err error) *ErrorReport {
	if err == nil {
		return nil
	}
	return &ErrorReport{Kind: KindName(err), Message: err.Error()}
}

func newMigrationReport(m Migration, status string) MigrationReport {
	return MigrationReport{
		MigrationID:   m.ID(),
		ID:            m.ID(),
		Description:   m.Description(),
		TargetVersion: m.TargetVersion(),
		Status:        status,
		Changes:       []string{},
		Warnings:      []string{},
		Errors:        []string{},
	}
}

func (mr *MigrationReport) absorb(res *Result) {
	if res == nil {
		return
	}
	if res.Changes != nil {
		mr.Changes = res.Changes
	}
	if res.Warnings != nil {
		mr.Warnings = res.Warnings
	}
	if res.Errors != nil {
		mr.Errors = res.Errors
	}
	mr.FilesAffected = res.FilesAffected
}

// Count returns how many migrations in the report have status.
func (r *Report) Count(status string) int {
	n := 0
	for _, m := range r.Migrations {
		if m.Status == status {
			n++
		}
	}
	return n
}

// IDs returns the ids of migrations with status, in order.
func (r *Report) IDs(status string) []string {
	var ids []string
	for _, m := range r.Migrations {
		if m.Status == status {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// FailedWorktrees counts worktrees whose upgrade failed.
func (r *Report) FailedWorktrees() int {
	n := 0
	for _, w := range r.Worktrees {
		if w.Status == StatusFailed {
			n++
		}
	}
	return n
}
