// Package doctor holds the read-only project health checks behind
// 'spec-kitty doctor'.
package doctor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/upgrade"
	"github.com/spec-kitty/spec-kitty/internal/upgrade/migrations"
)

// Check statuses.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// DoctorCheck represents a single diagnostic check result
type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", or "error"
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Fix     string `json:"fix,omitempty"`
}

const upgradeFix = "Run: spec-kitty upgrade"

// CheckInstallation verifies root holds a control directory.
func CheckInstallation(root string) DoctorCheck {
	switch control := kittify.ResolveControlDir(root); {
	case control == "":
		return DoctorCheck{
			Name:    "Installation",
			Status:  StatusError,
			Message: fmt.Sprintf("No %s/ directory found", kittify.ControlDir),
			Fix:     "Run: spec-kitty init (or cd into a spec-kitty project)",
		}
	case filepath.Base(control) == kittify.LegacyControlDir:
		return DoctorCheck{
			Name:    "Installation",
			Status:  StatusWarning,
			Message: fmt.Sprintf("Using legacy %s/ directory", kittify.LegacyControlDir),
			Fix:     upgradeFix,
		}
	default:
		return DoctorCheck{
			Name:    "Installation",
			Status:  StatusOK,
			Message: fmt.Sprintf("%s/ directory present", kittify.ControlDir),
		}
	}
}

// CheckVersion compares the detected layout version with the latest one
// the registry knows.
func CheckVersion(root string, reg *upgrade.Registry) DoctorCheck {
	det := upgrade.NewDetector().Detect(root)
	latest := reg.Latest()
	detail := "Detected from " + det.Source
	if det.Fingerprint != "" {
		detail += " (" + det.Fingerprint + ")"
	}

	if det.Version == upgrade.Unknown {
		return DoctorCheck{
			Name:    "Layout Version",
			Status:  StatusError,
			Message: "Unable to determine layout version",
			Detail:  "No metadata and no known layout fingerprint matched",
			Fix:     "Write .kittify/metadata.yaml with spec_kitty.version set to the release that created the project",
		}
	}

	if det.MetadataErr != nil {
		detail = fmt.Sprintf("metadata unreadable (%v); guessed from layout", det.MetadataErr)
	}

	pending := reg.Applicable(det.Version, latest)
	switch {
	case upgrade.CompareVersions(det.Version, latest) > 0:
		return DoctorCheck{
			Name:    "Layout Version",
			Status:  StatusWarning,
			Message: fmt.Sprintf("%s is newer than this CLI knows (%s)", det.Version, latest),
			Detail:  detail,
			Fix:     "Upgrade the spec-kitty CLI",
		}
	case len(pending) > 0:
		ids := make([]string, 0, len(pending))
		for _, m := range pending {
			ids = append(ids, m.ID())
		}
		return DoctorCheck{
			Name:    "Layout Version",
			Status:  StatusWarning,
			Message: fmt.Sprintf("%s (latest %s, %d migration(s) pending)", det.Version, latest, len(pending)),
			Detail:  strings.Join(ids, ", "),
			Fix:     upgradeFix,
		}
	}
	return DoctorCheck{
		Name:    "Layout Version",
		Status:  StatusOK,
		Message: det.Version + " (current)",
		Detail:  detail,
	}
}

// CheckLegacyLayout flags directories older releases left behind.
func CheckLegacyLayout(root string) DoctorCheck {
	var leftovers []string
	for _, dir := range []string{kittify.LegacyControlDir, kittify.LegacySpecsDir, kittify.MemoryDir} {
		if kittify.DirExists(filepath.Join(root, dir)) {
			leftovers = append(leftovers, dir+"/")
		}
	}
	if control := kittify.ResolveControlDir(root); control != "" && kittify.Exists(filepath.Join(control, kittify.PollutionDir)) {
		leftovers = append(leftovers, filepath.Join(filepath.Base(control), kittify.PollutionDir)+"/")
	}

	if len(leftovers) == 0 {
		return DoctorCheck{Name: "Legacy Layout", Status: StatusOK, Message: "No legacy directories"}
	}
	return DoctorCheck{
		Name:    "Legacy Layout",
		Status:  StatusWarning,
		Message: fmt.Sprintf("Legacy directories found: %s", strings.Join(leftovers, ", ")),
		Fix:     upgradeFix,
	}
}

// CheckGitignore verifies every agent directory is ignored.
func CheckGitignore(root string) DoctorCheck {
	state, err := kittify.ReadIgnoreFile(root)
	if err != nil {
		return DoctorCheck{Name: "Gitignore", Status: StatusError, Message: err.Error()}
	}
	missing := state.Missing(kittify.AgentDirs)
	if len(missing) == 0 {
		return DoctorCheck{Name: "Gitignore", Status: StatusOK, Message: "All agent directories ignored"}
	}
	return DoctorCheck{
		Name:    "Gitignore",
		Status:  StatusWarning,
		Message: fmt.Sprintf("%d agent director(ies) not ignored", len(missing)),
		Detail:  strings.Join(missing, " "),
		Fix:     upgradeFix,
	}
}

// CheckMissions reports mission descriptors that fail to parse.
func CheckMissions(root string) DoctorCheck {
	missions, err := kittify.ListMissions(root)
	if err != nil {
		return DoctorCheck{Name: "Missions", Status: StatusError, Message: err.Error()}
	}
	if len(missions) == 0 {
		return DoctorCheck{Name: "Missions", Status: StatusWarning, Message: "No missions installed", Fix: "Run: spec-kitty init --here"}
	}

	var problems []string
	for _, m := range missions {
		if _, err := m.LoadDescriptor(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return DoctorCheck{
			Name:    "Missions",
			Status:  StatusError,
			Message: fmt.Sprintf("%d of %d mission descriptor(s) unreadable", len(problems), len(missions)),
			Detail:  strings.Join(problems, "; "),
			Fix:     "Restore the mission.yaml files from a fresh 'spec-kitty init' in a scratch directory",
		}
	}
	return DoctorCheck{Name: "Missions", Status: StatusOK, Message: fmt.Sprintf("%d mission(s)", len(missions))}
}

// CheckCommandsLayout flags missions still holding commands/.
func CheckCommandsLayout(root string) DoctorCheck {
	missions, _ := kittify.ListMissions(root)
	var legacy []string
	for _, m := range missions {
		if m.HasLegacyCommands() {
			legacy = append(legacy, m.Name)
		}
	}
	if len(legacy) == 0 {
		return DoctorCheck{Name: "Command Templates", Status: StatusOK, Message: "All missions use " + kittify.CommandTemplatesDir + "/"}
	}
	return DoctorCheck{
		Name:    "Command Templates",
		Status:  StatusWarning,
		Message: fmt.Sprintf("Missions still using %s/: %s", kittify.LegacyCommandTemplatesDir, strings.Join(legacy, ", ")),
		Fix:     upgradeFix,
	}
}

// CheckGitHooks reports the encoding hook.
func CheckGitHooks(root string) DoctorCheck {
	if !kittify.IsGitRepo(root) {
		return DoctorCheck{Name: "Git Hooks", Status: StatusError, Message: "Not a git repository", Fix: "Run: git init"}
	}
	statuses, err := migrations.CheckHooks(root)
	if err != nil {
		return DoctorCheck{Name: "Git Hooks", Status: StatusWarning, Message: err.Error()}
	}

	var aux, preCommit migrations.HookStatus
	for _, st := range statuses {
		switch st.Name {
		case migrations.AuxHookName:
			aux = st
		case migrations.PreCommitName:
			preCommit = st
		}
	}

	switch {
	case !aux.Installed:
		return DoctorCheck{Name: "Git Hooks", Status: StatusWarning, Message: "Encoding hook not installed", Fix: "Run: spec-kitty hooks install"}
	case aux.Outdated:
		return DoctorCheck{Name: "Git Hooks", Status: StatusWarning, Message: "Encoding hook outdated (version " + aux.Version + ")", Fix: "Run: spec-kitty hooks install"}
	case preCommit.Foreign:
		return DoctorCheck{
			Name:    "Git Hooks",
			Status:  StatusWarning,
			Message: "Custom pre-commit hook present",
			Detail:  "The encoding check only runs if your pre-commit calls " + migrations.AuxHookName,
		}
	}
	return DoctorCheck{Name: "Git Hooks", Status: StatusOK, Message: "Encoding hook installed (version " + aux.Version + ")"}
}

// CheckWorktrees summarizes feature worktrees and whether any lag behind.
func CheckWorktrees(root string, reg *upgrade.Registry) DoctorCheck {
	worktrees, err := kittify.ListWorktrees(root)
	if err != nil {
		return DoctorCheck{Name: "Worktrees", Status: StatusWarning, Message: err.Error()}
	}
	if len(worktrees) == 0 {
		return DoctorCheck{Name: "Worktrees", Status: StatusOK, Message: "None"}
	}

	linked := 0
	var behind []string
	for _, wt := range worktrees {
		if wt.Linked || !wt.Initialized {
			linked++
			continue
		}
		v := upgrade.DetectVersion(wt.Path)
		if v == upgrade.Unknown || len(reg.Applicable(v, reg.Latest())) > 0 {
			behind = append(behind, fmt.Sprintf("%s (%s)", wt.Name, v))
		}
	}

	msg := fmt.Sprintf("%d worktree(s), %d linked or uninitialized", len(worktrees), linked)
	if len(behind) == 0 {
		return DoctorCheck{Name: "Worktrees", Status: StatusOK, Message: msg}
	}
	return DoctorCheck{
		Name:    "Worktrees",
		Status:  StatusWarning,
		Message: msg,
		Detail:  "Behind: " + strings.Join(behind, ", "),
		Fix:     upgradeFix,
	}
}
