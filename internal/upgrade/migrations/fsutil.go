package migrations

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// mergeStats describes a tree merge.
type mergeStats struct {
	Moved     []string // relative paths carried over from src
	Conflicts []string // relative paths present on both sides
}

// conflictFunc resolves one path present in both trees. It runs only
// outside dry-run and must leave nothing at srcPath.
type conflictFunc func(srcPath, dstPath, rel string) error

// mergeTree moves every file of src into dst, one rename at a time, then
// removes src. Paths that exist in both are handed to resolve. A crash part
// way leaves both trees in place, and re-running finishes the merge.
func mergeTree(src, dst string, dryRun bool, resolve conflictFunc) (mergeStats, error) {
	var stats mergeStats
	var files []string

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("scanning %s: %w", src, err)
	}
	sort.Strings(files)

	for _, rel := range files {
		srcPath := filepath.Join(src, rel)
		dstPath := filepath.Join(dst, rel)

		_, err := os.Lstat(dstPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			// A file in dst where src has a directory is a conflict on
			// that file, not a failure.
			blocker, ok := fileAncestor(dst, rel)
			if !ok {
				return stats, err
			}
			dstPath, err = blocker, nil
		}
		if err == nil {
			stats.Conflicts = append(stats.Conflicts, rel)
			if dryRun {
				continue
			}
			if err := resolve(srcPath, dstPath, rel); err != nil {
				return stats, fmt.Errorf("resolving %s: %w", rel, err)
			}
			continue
		}

		stats.Moved = append(stats.Moved, rel)
		if dryRun {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
			return stats, err
		}
		if err := os.Rename(srcPath, dstPath); err != nil {
			return stats, fmt.Errorf("moving %s: %w", rel, err)
		}
	}

	if dryRun {
		return stats, nil
	}
	if err := os.RemoveAll(src); err != nil {
		return stats, fmt.Errorf("removing %s: %w", src, err)
	}
	return stats, nil
}

// fileAncestor returns the first non-directory on the way from dst to
// dst/rel, excluding dst/rel itself.
func fileAncestor(dst, rel string) (string, bool) {
	path := dst
	parts := strings.Split(filepath.Dir(rel), string(filepath.Separator))
	for _, part := range parts {
		if part == "." {
			break
		}
		path = filepath.Join(path, part)
		info, err := os.Lstat(path)
		if err != nil {
			return "", false
		}
		if !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// dropSource discards the source copy of a conflicting path.
func dropSource(srcPath, _, _ string) error {
	return os.Remove(srcPath)
}

// keepAsLegacy moves the source copy next to the destination with a
// ".legacy" suffix, picking a free name.
func keepAsLegacy(srcPath, dstPath, _ string) error {
	candidate := dstPath + ".legacy"
	for i := 1; ; i++ {
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			break
		}
		candidate = fmt.Sprintf("%s.legacy.%d", dstPath, i)
	}
	return os.Rename(srcPath, candidate)
}

// countFiles counts regular files under dir.
func countFiles(dir string) int {
	n := 0
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

// sameContent reports whether two files have identical bytes.
func sameContent(a, b string) bool {
	da, err := os.ReadFile(a) // #nosec G304 - project files
	if err != nil {
		return false
	}
	db, err := os.ReadFile(b) // #nosec G304 - project files
	if err != nil {
		return false
	}
	return string(da) == string(db)
}
