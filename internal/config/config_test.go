package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitializeDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("SPEC_KITTY_CONFIG", "")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	if GetBool("json") {
		t.Errorf("GetBool(json) = true, want false")
	}
	if GetBool("no-worktrees") {
		t.Errorf("GetBool(no-worktrees) = true, want false")
	}
	if got := GetDuration("lock-timeout"); got != 5*time.Second {
		t.Errorf("GetDuration(lock-timeout) = %v, want 5s", got)
	}
	if got := GetInt("worktree-jobs"); got != 0 {
		t.Errorf("GetInt(worktree-jobs) = %d, want 0", got)
	}
}

func TestEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("SPEC_KITTY_NO_WORKTREES", "true")
	t.Setenv("SPEC_KITTY_WORKTREE_JOBS", "3")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	if !GetBool("no-worktrees") {
		t.Errorf("GetBool(no-worktrees) = false, want true from env")
	}
	if got := GetInt("worktree-jobs"); got != 3 {
		t.Errorf("GetInt(worktree-jobs) = %d, want 3", got)
	}
}

func TestProjectConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	controlDir := filepath.Join(tmpDir, ".kittify")
	if err := os.MkdirAll(controlDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "no-worktrees: true\nlock-timeout: 250ms\n"
	if err := os.WriteFile(filepath.Join(controlDir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(tmpDir, "kitty-specs", "001-feature")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	if !GetBool("no-worktrees") {
		t.Errorf("GetBool(no-worktrees) = false, want true from project config")
	}
	if got := GetDuration("lock-timeout"); got != 250*time.Millisecond {
		t.Errorf("GetDuration(lock-timeout) = %v, want 250ms", got)
	}
	if ConfigFileUsed() == "" {
		t.Errorf("ConfigFileUsed() is empty, want project config path")
	}
}

func TestGettersBeforeInitialize(t *testing.T) {
	saved := v
	v = nil
	defer func() { v = saved }()

	if GetString("log-file") != "" {
		t.Errorf("GetString before Initialize should be empty")
	}
	if GetBool("json") {
		t.Errorf("GetBool before Initialize should be false")
	}
	Set("json", true) // must not panic
}
