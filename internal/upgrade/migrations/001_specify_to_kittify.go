package migrations

import (
	"os"
	"path/filepath"

	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/upgrade"
)

// SpecifyToKittify renames the original .specify/ control directory.
type SpecifyToKittify struct{ upgrade.Base }

func NewSpecifyToKittify() *SpecifyToKittify {
	return &SpecifyToKittify{upgrade.NewBase(
		"0.2.0_specify_to_kittify",
		"Rename .specify/ control directory to .kittify/",
		"0.2.0",
	)}
}

func (m *SpecifyToKittify) Detect(root string) bool {
	return kittify.DirExists(filepath.Join(root, kittify.LegacyControlDir))
}

func (m *SpecifyToKittify) CanApply(root string) (bool, string) {
	if kittify.Exists(filepath.Join(root, kittify.ControlDir)) && m.Detect(root) {
		return false, upgrade.ConflictReason(
			filepath.Join(root, kittify.LegacyControlDir),
			filepath.Join(root, kittify.ControlDir),
			"Their contents may differ; merge what you need into .kittify/ and delete .specify/ by hand",
		)
	}
	return true, ""
}

func (m *SpecifyToKittify) Apply(root string, dryRun bool) *upgrade.Result {
	res := upgrade.NewResult()
	src := filepath.Join(root, kittify.LegacyControlDir)
	dst := filepath.Join(root, kittify.ControlDir)

	if !kittify.DirExists(src) {
		res.Changef("%s already renamed", kittify.LegacyControlDir)
		return res
	}
	if kittify.Exists(dst) {
		res.Failf("refusing to rename: %s already exists", dst)
		return res
	}

	res.FilesAffected = countFiles(src)
	if dryRun {
		res.Changef("Would rename %s/ to %s/ (%d files)", kittify.LegacyControlDir, kittify.ControlDir, res.FilesAffected)
		return res
	}
	if err := os.Rename(src, dst); err != nil {
		res.Failf("rename %s: %v", src, err)
		return res
	}
	res.Changef("Renamed %s/ to %s/ (%d files)", kittify.LegacyControlDir, kittify.ControlDir, res.FilesAffected)
	return res
}
