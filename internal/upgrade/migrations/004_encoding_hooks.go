package migrations

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/upgrade"
)

//go:embed templates/hooks/*
var hooksFS embed.FS

// Hook file names inside the git hooks directory.
const (
	AuxHookName    = "pre-commit-kittify"
	PreCommitName  = "pre-commit"
	HookVersionTag = "# spec-kitty-hook-version: "
)

func embeddedHook(name string) ([]byte, error) {
	content, err := hooksFS.ReadFile("templates/hooks/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded hook %s: %w", name, err)
	}
	return content, nil
}

// EncodingHooks installs the pre-commit encoding check. It writes its own
// pre-commit-kittify script and only adds a pre-commit shim when the user
// has no pre-commit hook of their own.
type EncodingHooks struct{ upgrade.Base }

func NewEncodingHooks() *EncodingHooks {
	return &EncodingHooks{upgrade.NewBase(
		"0.5.0_encoding_hooks",
		"Install the UTF-8 encoding pre-commit hook",
		"0.5.0",
	)}
}

func (m *EncodingHooks) Detect(root string) bool {
	hooksDir, err := kittify.HooksDir(root)
	if err != nil {
		return false
	}
	want, err := embeddedHook(AuxHookName)
	if err != nil {
		return true
	}
	aux := filepath.Join(hooksDir, AuxHookName)
	got, err := os.ReadFile(aux) // #nosec G304 - hook inside the repository
	if err != nil || !bytes.Equal(got, want) {
		return true
	}
	return !isExecutable(aux)
}

func (m *EncodingHooks) CanApply(root string) (bool, string) {
	if _, err := kittify.HooksDir(root); err != nil {
		return false, fmt.Sprintf("cannot locate git hooks directory: %v", err)
	}
	return true, ""
}

func (m *EncodingHooks) Apply(root string, dryRun bool) *upgrade.Result {
	res := upgrade.NewResult()
	hooksDir, err := kittify.HooksDir(root)
	if err != nil {
		res.Failf("locating hooks directory: %v", err)
		return res
	}
	aux, err := embeddedHook(AuxHookName)
	if err != nil {
		res.Failf("%v", err)
		return res
	}
	shim, err := embeddedHook(PreCommitName)
	if err != nil {
		res.Failf("%v", err)
		return res
	}

	auxPath := filepath.Join(hooksDir, AuxHookName)
	preCommitPath := filepath.Join(hooksDir, PreCommitName)
	userHook := kittify.Exists(preCommitPath) && hookVersion(preCommitPath) == ""

	if dryRun {
		res.Changef("Would install %s", auxPath)
		res.FilesAffected = 1
		if !kittify.Exists(preCommitPath) {
			res.Changef("Would install %s to run it", preCommitPath)
			res.FilesAffected++
		}
		if userHook {
			res.Warnf("Existing %s would be left unchanged", preCommitPath)
		}
		return res
	}

	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		res.Failf("creating %s: %v", hooksDir, err)
		return res
	}
	if err := writeExecutable(auxPath, aux); err != nil {
		res.Failf("installing %s: %v", AuxHookName, err)
		return res
	}
	res.Changef("Installed %s", auxPath)
	res.FilesAffected = 1

	switch {
	case userHook:
		res.Warnf("Existing %s left unchanged; call %s from it to enable the encoding check", preCommitPath, AuxHookName)
	case !kittify.Exists(preCommitPath):
		if err := writeExecutable(preCommitPath, shim); err != nil {
			res.Failf("installing %s: %v", PreCommitName, err)
			return res
		}
		res.Changef("Installed %s", preCommitPath)
		res.FilesAffected++
	}
	return res
}

// hookVersion returns the spec-kitty version marker of a hook, or "" for a
// hook spec-kitty did not write.
func hookVersion(path string) string {
	f, err := os.Open(path) // #nosec G304 - hook inside the repository
	if err != nil {
		return ""
	}
	defer f.Close()
	return scanHookVersion(f)
}

func scanHookVersion(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for i := 0; scanner.Scan() && i < 10; i++ {
		if v, ok := strings.CutPrefix(scanner.Text(), HookVersionTag); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func writeExecutable(path string, content []byte) error {
	if err := os.WriteFile(path, content, 0o755); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0o755)
}

func isExecutable(path string) bool {
	if runtime.GOOS == "windows" {
		return kittify.FileExists(path)
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().Perm()&0o111 != 0
}

// HookStatus describes one hook file spec-kitty manages.
type HookStatus struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
	// Foreign is set for a hook spec-kitty did not write.
	Foreign  bool `json:"foreign,omitempty"`
	Outdated bool `json:"outdated,omitempty"`
}

// CheckHooks reports the encoding hook and the pre-commit entry point for
// the checkout at root.
func CheckHooks(root string) ([]HookStatus, error) {
	hooksDir, err := kittify.HooksDir(root)
	if err != nil {
		return nil, err
	}

	statuses := make([]HookStatus, 0, 2)
	for _, name := range []string{AuxHookName, PreCommitName} {
		path := filepath.Join(hooksDir, name)
		st := HookStatus{Name: name, Path: path, Installed: kittify.FileExists(path)}
		if st.Installed {
			st.Version = hookVersion(path)
			st.Foreign = st.Version == ""
		}
		if st.Installed && !st.Foreign {
			want, err := embeddedHook(name)
			if err != nil {
				return nil, err
			}
			got, err := os.ReadFile(path) // #nosec G304 - hook inside the repository
			st.Outdated = err != nil || !bytes.Equal(got, want) || !isExecutable(path)
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
