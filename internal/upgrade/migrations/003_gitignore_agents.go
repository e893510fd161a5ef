package migrations

import (
	"os"
	"strings"

	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/upgrade"
)

// GitignoreAgents appends the agent directories to .gitignore. Existing
// lines, custom entries and negations are never touched, and an agent
// directory the user negated is not added back.
type GitignoreAgents struct{ upgrade.Base }

func NewGitignoreAgents() *GitignoreAgents {
	return &GitignoreAgents{upgrade.NewBase(
		"0.4.8_gitignore_agents",
		"Add AI agent directories to .gitignore",
		"0.4.8",
	)}
}

func (m *GitignoreAgents) Detect(root string) bool {
	state, err := kittify.ReadIgnoreFile(root)
	if err != nil {
		return true
	}
	return len(state.Missing(kittify.AgentDirs)) > 0
}

func (m *GitignoreAgents) CanApply(root string) (bool, string) {
	return true, ""
}

func (m *GitignoreAgents) Apply(root string, dryRun bool) *upgrade.Result {
	res := upgrade.NewResult()
	state, err := kittify.ReadIgnoreFile(root)
	if err != nil {
		res.Failf("%v", err)
		return res
	}

	for _, e := range state.Negated(kittify.AgentDirs) {
		res.Warnf("%s un-ignores %s; left as is, make sure no credentials are committed from it", kittify.IgnoreFile, e)
	}

	missing := state.Missing(kittify.AgentDirs)
	if len(missing) == 0 {
		res.Changef("%s already lists all agent directories", kittify.IgnoreFile)
		return res
	}
	res.FilesAffected = 1

	if dryRun {
		verb := "update"
		if !state.Exists {
			verb = "create"
		}
		res.Changef("Would %s %s with %d agent directories: %s", verb, kittify.IgnoreFile, len(missing), strings.Join(missing, ", "))
		return res
	}

	var b strings.Builder
	b.WriteString(state.Content)
	if state.Content != "" && !strings.HasSuffix(state.Content, "\n") {
		b.WriteString("\n")
	}
	if state.Content != "" {
		b.WriteString("\n")
	}
	if !strings.Contains(state.Content, kittify.IgnoreHeader) {
		b.WriteString(kittify.IgnoreHeader + "\n")
	}
	for _, e := range missing {
		b.WriteString(e + "\n")
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(state.Path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := kittify.WriteFileAtomic(state.Path, []byte(b.String()), perm); err != nil {
		res.Failf("writing %s: %v", kittify.IgnoreFile, err)
		return res
	}
	res.Changef("Added %d agent directories to %s", len(missing), kittify.IgnoreFile)
	return res
}
