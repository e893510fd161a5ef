package kittify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AgentDirs are the per-agent directories that hold rendered commands and
// agent credentials. They must be listed in the project ignore file.
var AgentDirs = []string{
	".claude/",
	".codex/",
	".opencode/",
	".windsurf/",
	".gemini/",
	".cursor/",
	".qwen/",
	".kilocode/",
	".augment/",
	".roo/",
	".amazonq/",
	".github/copilot/",
}

// AgentCommandDir maps an agent directory to where rendered commands live.
type AgentCommandDir struct {
	Agent string
	Dir   string
}

// AgentCommandDirs lists where each agent keeps rendered spec-kitty commands.
var AgentCommandDirs = []AgentCommandDir{
	{"claude", filepath.Join(".claude", "commands")},
	{"codex", filepath.Join(".codex", "prompts")},
	{"opencode", filepath.Join(".opencode", "command")},
	{"windsurf", filepath.Join(".windsurf", "workflows")},
	{"gemini", filepath.Join(".gemini", "commands")},
	{"cursor", filepath.Join(".cursor", "commands")},
	{"qwen", filepath.Join(".qwen", "commands")},
	{"kilocode", filepath.Join(".kilocode", "workflows")},
	{"augment", filepath.Join(".augment", "commands")},
	{"roo", filepath.Join(".roo", "commands")},
	{"amazonq", filepath.Join(".amazonq", "prompts")},
	{"copilot", filepath.Join(".github", "prompts")},
}

// IgnoreHeader precedes entries appended by the upgrade engine.
const IgnoreHeader = "# spec-kitty agent directories"

// IgnoreFileState is a parsed ignore file.
type IgnoreFileState struct {
	Path    string
	Exists  bool
	Content string
	entries map[string]bool
	// negated holds entries the user un-ignores with a "!" line.
	negated map[string]bool
}

// ReadIgnoreFile parses the ignore file at root. A missing file is not an
// error; the result reports Exists=false.
func ReadIgnoreFile(root string) (*IgnoreFileState, error) {
	path := filepath.Join(root, IgnoreFile)
	state := &IgnoreFileState{Path: path, entries: make(map[string]bool), negated: make(map[string]bool)}

	data, err := os.ReadFile(path) // #nosec G304 - path built from project layout
	if os.IsNotExist(err) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	state.Exists = true
	state.Content = string(data)

	for _, line := range strings.Split(state.Content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
		case strings.HasPrefix(line, "!"):
			state.negated[NormalizeIgnoreEntry(line[1:])] = true
		default:
			state.entries[NormalizeIgnoreEntry(line)] = true
		}
	}
	return state, nil
}

// NormalizeIgnoreEntry makes "x", "x/", "/x" and "/x/" compare equal.
func NormalizeIgnoreEntry(entry string) string {
	entry = strings.TrimSpace(entry)
	entry = strings.TrimPrefix(entry, "/")
	entry = strings.TrimSuffix(entry, "/")
	return entry
}

// Has reports whether entry (in any equivalent spelling) is listed.
func (s *IgnoreFileState) Has(entry string) bool {
	return s.entries[NormalizeIgnoreEntry(entry)]
}

// IsNegated reports whether the user un-ignores entry with a "!" line.
func (s *IgnoreFileState) IsNegated(entry string) bool {
	return s.negated[NormalizeIgnoreEntry(entry)]
}

// Negated returns the entries from want that the user explicitly un-ignores.
func (s *IgnoreFileState) Negated(want []string) []string {
	var negated []string
	for _, e := range want {
		if s.IsNegated(e) {
			negated = append(negated, e)
		}
	}
	return negated
}

// Missing returns the entries from want that are neither listed nor
// negated, in order. Appending a negated entry would override the user's
// "!" line, since the last matching pattern wins.
func (s *IgnoreFileState) Missing(want []string) []string {
	var missing []string
	for _, e := range want {
		if !s.Has(e) && !s.IsNegated(e) {
			missing = append(missing, e)
		}
	}
	return missing
}

// HasAnyAgentEntry reports whether at least one agent directory is listed.
// Releases before 0.4 wrote none at all.
func (s *IgnoreFileState) HasAnyAgentEntry() bool {
	for _, e := range AgentDirs {
		if s.Has(e) {
			return true
		}
	}
	return false
}
