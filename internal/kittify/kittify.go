// Package kittify knows the on-disk layout of a spec-kitty project.
//
// Directory names here are a stable contract: older releases of the tool
// wrote them, and the upgrade engine reads them back to infer which release
// produced a tree. Renaming any constant breaks version detection for
// existing projects.
package kittify

import (
	"os"
	"path/filepath"
)

// ControlDir is the canonical hidden control directory.
const ControlDir = ".kittify"

// LegacyControlDir is the control directory written by the earliest releases.
const LegacyControlDir = ".specify"

// SpecsDir holds feature specifications.
const SpecsDir = "kitty-specs"

// LegacySpecsDir is the pre-0.3 feature content directory.
const LegacySpecsDir = "specs"

// WorktreesDir holds per-feature git worktrees of the main checkout.
const WorktreesDir = ".worktrees"

// MissionsDir is relative to the control directory.
const MissionsDir = "missions"

// MissionDescriptor is the per-mission YAML file.
const MissionDescriptor = "mission.yaml"

// Per-mission command template directory names.
const (
	CommandTemplatesDir       = "command-templates"
	LegacyCommandTemplatesDir = "commands"
)

// MemoryDir is the project constitution/memory directory.
const MemoryDir = "memory"

// IgnoreFile is the project-local ignore file the agent entries go into.
const IgnoreFile = ".gitignore"

// PollutionDir is a packaging artifact that older releases copied into
// user projects. It shadows mission templates and must never exist.
var PollutionDir = filepath.Join("templates", CommandTemplatesDir)

// ResolveControlDir returns the control directory of root, preferring the
// canonical name. Returns "" when neither exists.
func ResolveControlDir(root string) string {
	if p := filepath.Join(root, ControlDir); DirExists(p) {
		return p
	}
	if p := filepath.Join(root, LegacyControlDir); DirExists(p) {
		return p
	}
	return ""
}

// IsProjectRoot reports whether root holds a current or legacy control dir.
func IsProjectRoot(root string) bool {
	return ResolveControlDir(root) != ""
}

// FindProjectRoot walks up from start looking for a control directory.
// Returns "" if none is found before the filesystem root.
func FindProjectRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	for {
		if IsProjectRoot(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// DirExists checks if a directory exists
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileExists checks if a regular file exists
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Exists reports whether anything (file, dir, or dangling symlink) is at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// IsSymlink reports whether path itself is a symbolic link.
func IsSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// IsEmptyDir reports whether path is a directory with no entries.
func IsEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) == 0
}
