package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"

	"github.com/spec-kitty/spec-kitty/internal/debug"
	"github.com/spec-kitty/spec-kitty/internal/testutil/fixtures"
	"github.com/spec-kitty/spec-kitty/internal/upgrade"
	"github.com/spec-kitty/spec-kitty/internal/upgrade/migrations"
)

var (
	inProcessMutex sync.Mutex // Protects concurrent access to rootCmd and global state
)

// runInProcess runs spec-kitty in dir and returns captured stdout, failing
// the test on a non-zero exit code.
func runInProcess(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, code := runInProcessCode(t, dir, args...)
	if code != 0 {
		t.Fatalf("spec-kitty %s exited %d", strings.Join(args, " "), code)
	}
	return out
}

// runInProcessCode runs spec-kitty in dir by calling rootCmd.Execute and
// returns captured stdout with the exit code main would use.
func runInProcessCode(t *testing.T, dir string, args ...string) (string, int) {
	t.Helper()

	// rootCmd, cobra state, and viper are not thread-safe
	inProcessMutex.Lock()
	defer inProcessMutex.Unlock()

	if os.Getenv("SPEC_KITTY_LOG_FILE") == "" {
		t.Setenv("SPEC_KITTY_LOG_FILE", filepath.Join(t.TempDir(), "upgrade.log"))
	}
	t.Setenv("SPEC_KITTY_LOCK_DIR", t.TempDir())

	oldStdout := os.Stdout
	oldStderr := os.Stderr
	oldDir, _ := os.Getwd()
	oldNoColor := color.NoColor

	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to chdir to %s: %v", dir, err)
	}

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = io.Copy(&outBuf, rOut) }()
	go func() { defer wg.Done(); _, _ = io.Copy(&errBuf, rErr) }()

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	wg.Wait()
	os.Stdout = oldStdout
	os.Stderr = oldStderr
	_ = os.Chdir(oldDir)

	code := exitCode

	// Reset global flags and state between runs
	exitCode = 0
	jsonOutput = false
	verbose = false
	noColor = false
	color.NoColor = oldNoColor
	debug.SetEnabled(false)

	if err != nil {
		t.Fatalf("spec-kitty %s failed: %v\nstderr: %s", strings.Join(args, " "), err, errBuf.String())
	}
	return outBuf.String(), code
}

func TestCLI_Version(t *testing.T) {
	out := runInProcess(t, t.TempDir(), "version")
	if !strings.Contains(out, "spec-kitty version "+Version) {
		t.Errorf("unexpected output: %s", out)
	}

	out = runInProcess(t, t.TempDir(), "version", "--json")
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("bad JSON: %v\n%s", err, out)
	}
	if info["layout_version"] != migrations.CurrentVersion() {
		t.Errorf("layout_version = %q", info["layout_version"])
	}
}

func TestCLI_UpgradeFromSubdirectory(t *testing.T) {
	root := fixtures.NewProject(t, fixtures.Buggy064())
	sub := filepath.Join(root, "kitty-specs", "001-checkout-flow")

	out := runInProcess(t, sub, "upgrade", "--json", "--force", "--no-worktrees")
	var rep upgrade.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("bad JSON: %v\n%s", err, out)
	}
	if rep.ProjectRoot != root {
		t.Errorf("project_root = %s, want %s", rep.ProjectRoot, root)
	}
	if rep.Status != upgrade.StatusSuccess || rep.FinalVersion != "0.7.0" {
		t.Errorf("status %s, final %s", rep.Status, rep.FinalVersion)
	}

	out = runInProcess(t, root, "upgrade")
	if !strings.Contains(out, "Already up to date") {
		t.Errorf("second upgrade output:\n%s", out)
	}
}

func TestCLI_HooksInstallAndList(t *testing.T) {
	root := fixtures.NewProject(t, fixtures.Current("0.7.0"))

	out := runInProcess(t, root, "hooks", "install", "--no-color")
	if !strings.Contains(out, "✓") {
		t.Errorf("install output:\n%s", out)
	}

	out = runInProcess(t, root, "hooks", "list", "--json")
	var listed struct {
		Hooks []migrations.HookStatus `json:"hooks"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("bad JSON: %v\n%s", err, out)
	}
	if len(listed.Hooks) != 2 {
		t.Fatalf("got %d hooks, want 2", len(listed.Hooks))
	}
	for _, h := range listed.Hooks {
		if !h.Installed || h.Outdated || h.Foreign {
			t.Errorf("%s: %+v", h.Name, h)
		}
	}
}

func TestCLI_DoctorJSON(t *testing.T) {
	root := fixtures.NewProject(t, fixtures.Current("0.7.0"))

	out := runInProcess(t, root, "doctor", "--json")
	var result doctorResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("bad JSON: %v\n%s", err, out)
	}
	if !result.OverallOK {
		t.Errorf("doctor failed: %+v", result.Checks)
	}
	if result.Path != root {
		t.Errorf("path = %s, want %s", result.Path, root)
	}
}

func TestCLI_FailureStillRunsPostRun(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "upgrade.log")
	t.Setenv("SPEC_KITTY_LOG_FILE", logPath)
	notAProject := t.TempDir()

	if _, code := runInProcessCode(t, notAProject, "upgrade", "--force"); code != 1 {
		t.Errorf("upgrade exit code = %d, want 1", code)
	}
	// The log was closed by the post-run hook, so this must not reach it.
	debug.Logf("written after the command returned")

	data, err := os.ReadFile(logPath) // #nosec G304 - test file
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "not a spec-kitty project") {
		t.Errorf("log lacks the failure:\n%s", data)
	}
	if strings.Contains(string(data), "after the command returned") {
		t.Error("log file still open after the command finished")
	}

	if _, code := runInProcessCode(t, notAProject, "doctor"); code != 1 {
		t.Errorf("doctor exit code = %d, want 1", code)
	}
}

func TestHooksListNotARepo(t *testing.T) {
	withJSON(t, false)
	var stdout, stderr bytes.Buffer
	if code := runHooksList(t.TempDir(), &stdout, &stderr); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error checking hooks") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestHooksInstallKeepsForeignPreCommit(t *testing.T) {
	withJSON(t, false)
	color.NoColor = true
	root := fixtures.NewProject(t, fixtures.Current("0.7.0"))
	fixtures.WriteFile(t, filepath.Join(root, ".git", "hooks", migrations.PreCommitName), "#!/bin/sh\nmake lint\n")

	var stdout, stderr bytes.Buffer
	if code := runHooksInstall(root, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "⚠") {
		t.Errorf("expected a warning about the existing pre-commit:\n%s", stdout.String())
	}
	data, err := os.ReadFile(filepath.Join(root, ".git", "hooks", migrations.PreCommitName))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "#!/bin/sh\nmake lint\n" {
		t.Errorf("pre-commit rewritten: %q", data)
	}
}
