package migrations

import (
	"os"
	"path/filepath"

	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/upgrade"
)

// SpecsToKittySpecs renames the specs/ feature directory to kitty-specs/.
type SpecsToKittySpecs struct{ upgrade.Base }

func NewSpecsToKittySpecs() *SpecsToKittySpecs {
	return &SpecsToKittySpecs{upgrade.NewBase(
		"0.3.0_specs_to_kitty_specs",
		"Rename specs/ feature directory to kitty-specs/",
		"0.3.0",
	)}
}

func (m *SpecsToKittySpecs) Detect(root string) bool {
	return kittify.DirExists(filepath.Join(root, kittify.LegacySpecsDir))
}

// An empty kitty-specs/ (left by a newer init) is not a conflict; it is
// replaced.
func (m *SpecsToKittySpecs) CanApply(root string) (bool, string) {
	src := filepath.Join(root, kittify.LegacySpecsDir)
	dst := filepath.Join(root, kittify.SpecsDir)
	if m.Detect(root) && kittify.Exists(dst) && !kittify.IsEmptyDir(dst) {
		return false, upgrade.ConflictReason(src, dst,
			"Move the features you want to keep into kitty-specs/ and remove specs/")
	}
	return true, ""
}

func (m *SpecsToKittySpecs) Apply(root string, dryRun bool) *upgrade.Result {
	res := upgrade.NewResult()
	src := filepath.Join(root, kittify.LegacySpecsDir)
	dst := filepath.Join(root, kittify.SpecsDir)

	if !kittify.DirExists(src) {
		res.Changef("%s already renamed", kittify.LegacySpecsDir)
		return res
	}
	replaceEmpty := kittify.IsEmptyDir(dst)
	if kittify.Exists(dst) && !replaceEmpty {
		res.Failf("refusing to rename: %s is not empty", dst)
		return res
	}

	res.FilesAffected = countFiles(src)
	if dryRun {
		res.Changef("Would rename %s/ to %s/ (%d files)", kittify.LegacySpecsDir, kittify.SpecsDir, res.FilesAffected)
		return res
	}
	if replaceEmpty {
		if err := os.Remove(dst); err != nil {
			res.Failf("remove empty %s: %v", dst, err)
			return res
		}
	}
	if err := os.Rename(src, dst); err != nil {
		res.Failf("rename %s: %v", src, err)
		return res
	}
	res.Changef("Renamed %s/ to %s/ (%d files)", kittify.LegacySpecsDir, kittify.SpecsDir, res.FilesAffected)
	return res
}
