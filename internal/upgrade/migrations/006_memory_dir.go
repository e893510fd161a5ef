package migrations

import (
	"os"
	"path/filepath"

	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/upgrade"
)

// MemoryDir moves the project memory (constitution and notes) from the
// repository root into the control directory. Files already in the control
// directory win; differing root copies are kept beside them as *.legacy.
type MemoryDir struct{ upgrade.Base }

func NewMemoryDir() *MemoryDir {
	return &MemoryDir{upgrade.NewBase(
		"0.7.0_memory_dir",
		"Move memory/ into the control directory",
		"0.7.0",
	)}
}

func (m *MemoryDir) Detect(root string) bool {
	return kittify.DirExists(filepath.Join(root, kittify.MemoryDir)) && kittify.ResolveControlDir(root) != ""
}

func (m *MemoryDir) CanApply(root string) (bool, string) {
	if kittify.ResolveControlDir(root) == "" {
		return false, "no control directory found"
	}
	return true, ""
}

func (m *MemoryDir) Apply(root string, dryRun bool) *upgrade.Result {
	res := upgrade.NewResult()
	src := filepath.Join(root, kittify.MemoryDir)
	control := kittify.ResolveControlDir(root)
	dst := filepath.Join(control, kittify.MemoryDir)
	rel := filepath.Join(filepath.Base(control), kittify.MemoryDir)

	if !kittify.DirExists(src) {
		res.Changef("memory/ already lives in %s", filepath.Base(control))
		return res
	}

	if !kittify.Exists(dst) {
		res.FilesAffected = countFiles(src)
		if dryRun {
			res.Changef("Would move memory/ to %s (%d files)", rel, res.FilesAffected)
			return res
		}
		if err := os.Rename(src, dst); err != nil {
			res.Failf("moving memory/: %v", err)
			return res
		}
		res.Changef("Moved memory/ to %s (%d files)", rel, res.FilesAffected)
		return res
	}

	var legacyCopies []string
	resolve := func(srcPath, dstPath, relPath string) error {
		if sameContent(srcPath, dstPath) {
			return os.Remove(srcPath)
		}
		legacyCopies = append(legacyCopies, relPath)
		return keepAsLegacy(srcPath, dstPath, relPath)
	}

	stats, err := mergeTree(src, dst, dryRun, resolve)
	if err != nil {
		res.Failf("merging memory/: %v", err)
		return res
	}
	res.FilesAffected = len(stats.Moved) + len(stats.Conflicts)

	if dryRun {
		res.Changef("Would merge memory/ into %s (%d moved, %d already present)", rel, len(stats.Moved), len(stats.Conflicts))
		if len(stats.Conflicts) > 0 {
			res.Warnf("Differing copies would be kept as *.legacy in %s", rel)
		}
		return res
	}
	res.Changef("Merged memory/ into %s (%d moved, %d already present)", rel, len(stats.Moved), len(stats.Conflicts))
	for _, p := range legacyCopies {
		res.Warnf("%s differed from the copy in %s; kept as %s.legacy", p, rel, p)
	}
	return res
}
