package kittify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/google/go-cmp/cmp"
)

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveControlDir(t *testing.T) {
	tests := []struct {
		name string
		dirs []string
		want string
	}{
		{"none", nil, ""},
		{"current", []string{ControlDir}, ControlDir},
		{"legacy", []string{LegacyControlDir}, LegacyControlDir},
		{"both prefers current", []string{ControlDir, LegacyControlDir}, ControlDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			mkdirs(t, root, tt.dirs...)

			got := ResolveControlDir(root)
			want := ""
			if tt.want != "" {
				want = filepath.Join(root, tt.want)
			}
			if got != want {
				t.Errorf("ResolveControlDir() = %q, want %q", got, want)
			}
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	mkdirs(t, root, ControlDir, filepath.Join(SpecsDir, "001-feature", "tasks"))

	got := FindProjectRoot(filepath.Join(root, SpecsDir, "001-feature", "tasks"))
	if got != root {
		t.Errorf("FindProjectRoot() = %q, want %q", got, root)
	}

	if got := FindProjectRoot(t.TempDir()); got != "" {
		t.Errorf("FindProjectRoot(no project) = %q, want empty", got)
	}
}

func TestIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, IgnoreFile), "node_modules\n/.claude\n!.codex/keep\n# .gemini/\n.cursor/\n")

	state, err := ReadIgnoreFile(root)
	if err != nil {
		t.Fatalf("ReadIgnoreFile: %v", err)
	}
	if !state.Exists {
		t.Fatal("Exists = false, want true")
	}

	for _, e := range []string{".claude/", ".claude", "/.claude/", ".cursor"} {
		if !state.Has(e) {
			t.Errorf("Has(%q) = false, want true", e)
		}
	}
	// Negations and comments do not count as entries.
	for _, e := range []string{".codex/", ".gemini/"} {
		if state.Has(e) {
			t.Errorf("Has(%q) = true, want false", e)
		}
	}
	if !state.HasAnyAgentEntry() {
		t.Error("HasAnyAgentEntry() = false, want true")
	}

	missing := state.Missing([]string{".claude/", ".codex/", ".cursor/", ".roo/"})
	if diff := cmp.Diff([]string{".codex/", ".roo/"}, missing); diff != "" {
		t.Errorf("Missing() mismatch (-want +got):\n%s", diff)
	}
}

func TestIgnoreFileNegations(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, IgnoreFile), "node_modules/\n!.claude/\n!/.roo\n")

	state, err := ReadIgnoreFile(root)
	if err != nil {
		t.Fatalf("ReadIgnoreFile: %v", err)
	}
	if state.Has(".claude/") {
		t.Error("Has(.claude/) = true for a negated entry")
	}
	if diff := cmp.Diff([]string{".claude/", ".roo/"}, state.Negated(AgentDirs)); diff != "" {
		t.Errorf("Negated() mismatch (-want +got):\n%s", diff)
	}
	missing := state.Missing([]string{".claude/", ".codex/", ".roo/"})
	if diff := cmp.Diff([]string{".codex/"}, missing); diff != "" {
		t.Errorf("Missing() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadIgnoreFileMissing(t *testing.T) {
	state, err := ReadIgnoreFile(t.TempDir())
	if err != nil {
		t.Fatalf("ReadIgnoreFile: %v", err)
	}
	if state.Exists || state.HasAnyAgentEntry() {
		t.Errorf("missing ignore file: Exists=%v HasAnyAgentEntry=%v, want false/false", state.Exists, state.HasAnyAgentEntry())
	}
}

func TestListMissions(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root,
		filepath.Join(ControlDir, MissionsDir, "software-dev", LegacyCommandTemplatesDir),
		filepath.Join(ControlDir, MissionsDir, "research", CommandTemplatesDir),
	)
	writeFile(t, filepath.Join(root, ControlDir, MissionsDir, "README.md"), "not a mission")

	missions, err := ListMissions(root)
	if err != nil {
		t.Fatalf("ListMissions: %v", err)
	}

	var names []string
	for _, m := range missions {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"research", "software-dev"}, names); diff != "" {
		t.Errorf("mission names mismatch (-want +got):\n%s", diff)
	}
	if !missions[1].HasLegacyCommands() || missions[1].HasCommandTemplates() {
		t.Errorf("software-dev: legacy=%v templates=%v", missions[1].HasLegacyCommands(), missions[1].HasCommandTemplates())
	}
}

func TestMissionDescriptor(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ControlDir, MissionsDir, "software-dev")
	m := Mission{Name: "software-dev", Path: dir}

	if desc, err := m.LoadDescriptor(); desc != nil || err != nil {
		t.Errorf("missing descriptor: got (%v, %v), want (nil, nil)", desc, err)
	}

	writeFile(t, filepath.Join(dir, MissionDescriptor), "name: Software Dev Kitty\nversion: 1.0.0\n")
	desc, err := m.LoadDescriptor()
	if err != nil {
		t.Fatalf("LoadDescriptor: %v", err)
	}
	if desc.Name != "Software Dev Kitty" {
		t.Errorf("Name = %q, want %q", desc.Name, "Software Dev Kitty")
	}

	writeFile(t, filepath.Join(dir, MissionDescriptor), "name: [unterminated\n")
	if _, err := m.LoadDescriptor(); err == nil {
		t.Error("LoadDescriptor on broken YAML returned nil error")
	}

	writeFile(t, filepath.Join(dir, MissionDescriptor), "description: no name\n")
	if _, err := m.LoadDescriptor(); err == nil {
		t.Error("LoadDescriptor without name returned nil error")
	}
}

func TestListWorktrees(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, ControlDir)

	independent := filepath.Join(root, WorktreesDir, "001-independent")
	mkdirs(t, independent, ControlDir)
	writeFile(t, filepath.Join(independent, ".git"), "gitdir: ../../.git/worktrees/001-independent\n")

	linked := filepath.Join(root, WorktreesDir, "002-linked")
	mkdirs(t, linked)
	writeFile(t, filepath.Join(linked, ".git"), "gitdir: ../../.git/worktrees/002-linked\n")
	if err := os.Symlink(filepath.Join(root, ControlDir), filepath.Join(linked, ControlDir)); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	bare := filepath.Join(root, WorktreesDir, "003-bare")
	mkdirs(t, bare)
	writeFile(t, filepath.Join(bare, ".git"), "gitdir: ../../.git/worktrees/003-bare\n")

	mkdirs(t, root, filepath.Join(WorktreesDir, "scratch"))

	got, err := ListWorktrees(root)
	if err != nil {
		t.Fatalf("ListWorktrees: %v", err)
	}
	want := []Worktree{
		{Name: "001-independent", Path: independent, Linked: false, Initialized: true},
		{Name: "002-linked", Path: linked, Linked: true, Initialized: true},
		{Name: "003-bare", Path: bare, Linked: false, Initialized: false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListWorktrees() mismatch (-want +got):\n%s", diff)
	}
}

func TestHooksDir(t *testing.T) {
	root := t.TempDir()
	if _, err := git.PlainInit(root, false); err != nil {
		t.Fatalf("git init: %v", err)
	}

	got, err := HooksDir(root)
	if err != nil {
		t.Fatalf("HooksDir: %v", err)
	}
	if want := filepath.Join(root, ".git", "hooks"); got != want {
		t.Errorf("HooksDir() = %q, want %q", got, want)
	}

	// Linked worktree: .git file -> gitdir with commondir back to main .git.
	wtGitDir := filepath.Join(root, ".git", "worktrees", "feature")
	mkdirs(t, wtGitDir)
	writeFile(t, filepath.Join(wtGitDir, "commondir"), "../..\n")
	wt := filepath.Join(root, WorktreesDir, "feature")
	writeFile(t, filepath.Join(wt, ".git"), "gitdir: "+wtGitDir+"\n")

	gitDir, err := findGitDir(wt)
	if err != nil {
		t.Fatalf("findGitDir: %v", err)
	}
	if got := resolveCommonDir(gitDir); got != filepath.Join(root, ".git") {
		t.Errorf("resolveCommonDir() = %q, want %q", got, filepath.Join(root, ".git"))
	}
}

func TestGitCheck(t *testing.T) {
	root := t.TempDir()
	if err := GitCheck(root); err == nil {
		t.Error("GitCheck on plain directory returned nil")
	}
	if IsGitRepo(root) {
		t.Error("IsGitRepo on plain directory = true")
	}
	if _, err := git.PlainInit(root, false); err != nil {
		t.Fatalf("git init: %v", err)
	}
	if err := GitCheck(root); err != nil {
		t.Errorf("GitCheck after init = %v, want nil", err)
	}
}

func TestCheckWritable(t *testing.T) {
	dir := t.TempDir()
	if err := CheckWritable(dir); err != nil {
		t.Errorf("CheckWritable(tempdir) = %v", err)
	}
	if err := CheckWritable(filepath.Join(dir, "missing")); err == nil {
		t.Error("CheckWritable(missing) returned nil")
	}
}
