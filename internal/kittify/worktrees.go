package kittify

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Worktree is a secondary checkout under <root>/.worktrees.
type Worktree struct {
	Name string
	Path string
	// Linked worktrees reach the main tree's control directory through a
	// symlink and inherit its state.
	Linked bool
	// Initialized is false when the worktree has no control directory at all.
	Initialized bool
}

// ListWorktrees scans <root>/.worktrees for checkouts, sorted by name.
// Plain files and non-checkout directories are ignored.
func ListWorktrees(root string) ([]Worktree, error) {
	dir := filepath.Join(root, WorktreesDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	mainControl := ResolveControlDir(root)
	if resolved, err := filepath.EvalSymlinks(mainControl); err == nil {
		mainControl = resolved
	}

	var worktrees []Worktree
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !Exists(filepath.Join(path, ".git")) && !IsProjectRoot(path) {
			continue
		}
		wt := Worktree{Name: e.Name(), Path: path}
		wt.Linked = isLinkedControl(path, mainControl)
		wt.Initialized = wt.Linked || IsProjectRoot(path)
		worktrees = append(worktrees, wt)
	}
	sort.Slice(worktrees, func(i, j int) bool { return worktrees[i].Name < worktrees[j].Name })
	return worktrees, nil
}

func isLinkedControl(worktree, mainControl string) bool {
	for _, name := range []string{ControlDir, LegacyControlDir} {
		p := filepath.Join(worktree, name)
		if IsSymlink(p) {
			return true
		}
		if mainControl == "" {
			continue
		}
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			continue
		}
		if resolved == mainControl || strings.HasPrefix(resolved, mainControl+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
