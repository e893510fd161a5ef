// Package fixtures builds spec-kitty project trees in the layouts older
// releases left behind, for upgrade tests.
package fixtures

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5"

	"github.com/spec-kitty/spec-kitty/internal/kittify"
)

// ProjectConfig describes the layout to generate.
type ProjectConfig struct {
	LegacyControlDir bool // .specify/ instead of .kittify/
	LegacySpecsDir   bool // specs/ instead of kitty-specs/
	AgentIgnore      bool // .gitignore lists the agent directories
	LegacyCommands   bool // missions keep commands/ instead of command-templates/
	RootMemory       bool // memory/ at the repository root
	Pollution        bool // <control>/templates/command-templates exists
	RenderedAgents   []string
	Missions         []string
	Features         []string
	// MetadataVersion writes metadata.yaml at this version when non-empty.
	MetadataVersion string
}

// mission command templates by mission name
var missionCommands = map[string][]string{
	"software-dev": {"specify", "plan", "tasks", "implement", "review"},
	"research":     {"specify", "research", "review"},
}

// EarliestLegacy is the layout of the very first releases.
func EarliestLegacy() ProjectConfig {
	return ProjectConfig{
		LegacyControlDir: true,
		LegacySpecsDir:   true,
		AgentIgnore:      false,
		LegacyCommands:   true,
		RootMemory:       true,
		Missions:         []string{"software-dev", "research"},
		Features:         []string{"001-checkout-flow", "002-search"},
		RenderedAgents:   []string{"claude"},
	}
}

// Buggy064 is a 0.6.4 tree: current names everywhere except mission commands/.
func Buggy064() ProjectConfig {
	return ProjectConfig{
		AgentIgnore:    true,
		LegacyCommands: true,
		Pollution:      true,
		Missions:       []string{"software-dev"},
		Features:       []string{"001-checkout-flow"},
		RenderedAgents: []string{"claude", "codex"},
	}
}

// Current is a fully migrated tree with metadata.
func Current(version string) ProjectConfig {
	return ProjectConfig{
		AgentIgnore:     true,
		Missions:        []string{"software-dev"},
		Features:        []string{"001-checkout-flow"},
		RenderedAgents:  []string{"claude"},
		MetadataVersion: version,
	}
}

// NewProject creates a git repository in a temp dir and lays out cfg in it.
func NewProject(t testing.TB, cfg ProjectConfig) string {
	t.Helper()
	root := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	if _, err := git.PlainInit(root, false); err != nil {
		t.Fatalf("git init %s: %v", root, err)
	}
	Build(t, root, cfg)
	return root
}

// Build writes the cfg layout under root.
func Build(t testing.TB, root string, cfg ProjectConfig) {
	t.Helper()

	control := kittify.ControlDir
	if cfg.LegacyControlDir {
		control = kittify.LegacyControlDir
	}
	specs := kittify.SpecsDir
	if cfg.LegacySpecsDir {
		specs = kittify.LegacySpecsDir
	}
	cmdDir := kittify.CommandTemplatesDir
	if cfg.LegacyCommands {
		cmdDir = kittify.LegacyCommandTemplatesDir
	}

	for _, mission := range cfg.Missions {
		base := filepath.Join(root, control, kittify.MissionsDir, mission)
		WriteFile(t, filepath.Join(base, kittify.MissionDescriptor), fmt.Sprintf("name: %s\ndescription: %s mission\nversion: 1.0.0\n", mission, mission))
		for _, cmd := range missionCommands[mission] {
			WriteFile(t, filepath.Join(base, cmdDir, cmd+".md"), fmt.Sprintf("# /spec-kitty.%s (%s)\n", cmd, mission))
		}
	}
	WriteFile(t, filepath.Join(root, control, "scripts", "bash", "common.sh"), "#!/usr/bin/env bash\n")

	for _, feature := range cfg.Features {
		WriteFile(t, filepath.Join(root, specs, feature, "spec.md"), "# "+feature+"\n")
		WriteFile(t, filepath.Join(root, specs, feature, "tasks", "WP01.md"), "lane: planned\n")
	}

	ignore := "node_modules/\n.env\n!.env.example\n"
	if cfg.AgentIgnore {
		ignore += "\n" + kittify.IgnoreHeader + "\n" + strings.Join(kittify.AgentDirs, "\n") + "\n"
	}
	WriteFile(t, filepath.Join(root, kittify.IgnoreFile), ignore)

	if cfg.RootMemory {
		WriteFile(t, filepath.Join(root, kittify.MemoryDir, "constitution.md"), "# Constitution\n")
	}
	if cfg.Pollution {
		WriteFile(t, filepath.Join(root, control, kittify.PollutionDir, "specify.md"), "packaged copy\n")
	}

	for _, agent := range cfg.RenderedAgents {
		for _, acd := range kittify.AgentCommandDirs {
			if acd.Agent != agent {
				continue
			}
			for _, cmd := range []string{"specify", "plan", "tasks"} {
				WriteFile(t, filepath.Join(root, acd.Dir, "spec-kitty."+cmd+".md"), "rendered "+cmd+"\n")
			}
		}
	}

	if cfg.MetadataVersion != "" {
		WriteFile(t, filepath.Join(root, control, "metadata.yaml"), fmt.Sprintf(
			"spec_kitty:\n  version: %s\n  initialized_at: 2026-01-02T10:00:00Z\nmigrations:\n  applied: []\n", cfg.MetadataVersion))
	}
}

// AddWorktree creates <root>/.worktrees/<name> as a linked git checkout
// (a .git file plus its admin dir under the main .git) with its own layout.
func AddWorktree(t testing.TB, root, name string, cfg ProjectConfig) string {
	t.Helper()
	path := addWorktreeCheckout(t, root, name)
	Build(t, path, cfg)
	return path
}

// AddLinkedWorktree creates a worktree whose .kittify is a symlink to the
// main tree's control directory.
func AddLinkedWorktree(t testing.TB, root, name string) string {
	t.Helper()
	path := addWorktreeCheckout(t, root, name)
	target := filepath.Join(root, kittify.ControlDir)
	if !kittify.DirExists(target) {
		target = filepath.Join(root, kittify.LegacyControlDir)
	}
	if err := os.Symlink(target, filepath.Join(path, kittify.ControlDir)); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	return path
}

func addWorktreeCheckout(t testing.TB, root, name string) string {
	t.Helper()
	path := filepath.Join(root, kittify.WorktreesDir, name)
	admin := filepath.Join(root, ".git", "worktrees", name)

	WriteFile(t, filepath.Join(admin, "HEAD"), "ref: refs/heads/"+name+"\n")
	WriteFile(t, filepath.Join(admin, "commondir"), "../..\n")
	WriteFile(t, filepath.Join(admin, "gitdir"), filepath.Join(path, ".git")+"\n")
	WriteFile(t, filepath.Join(path, ".git"), "gitdir: "+admin+"\n")
	return path
}

// WriteFile writes content, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Snapshot maps every path under root to its mode and content. Directories
// map to their mode alone, so empty directories count.
func Snapshot(t testing.TB, root string) map[string]string {
	t.Helper()
	snap := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		info, err := os.Lstat(path)
		if err != nil {
			return err
		}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, _ := os.Readlink(path)
			snap[rel] = "symlink:" + target
		case d.IsDir():
			snap[rel+"/"] = info.Mode().String()
		default:
			data, err := os.ReadFile(path) // #nosec G304 - test fixture
			if err != nil {
				return err
			}
			snap[rel] = info.Mode().String() + "\n" + string(data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("snapshot %s: %v", root, err)
	}
	return snap
}

// Paths returns the sorted keys of a snapshot under prefix.
func Paths(snap map[string]string, prefix string) []string {
	var out []string
	for p := range snap {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
