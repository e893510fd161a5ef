package migrations

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/upgrade"
)

// renderedPrefix starts every command file rendered into an agent directory.
const renderedPrefix = "spec-kitty."

// CommandTemplates moves per-mission commands/ to command-templates/,
// removes the packaging pollution directory, and deletes rendered agent
// commands whose template no longer exists.
//
// When both directories exist the trees are merged: command-templates/ wins
// on paths present in both, files only in commands/ are carried over, and
// commands/ is removed.
type CommandTemplates struct{ upgrade.Base }

func NewCommandTemplates() *CommandTemplates {
	return &CommandTemplates{upgrade.NewBase(
		"0.6.5_commands_rename",
		"Rename mission commands/ to command-templates/ and clean stale agent commands",
		"0.6.5",
	)}
}

func (m *CommandTemplates) Detect(root string) bool {
	missions, _ := kittify.ListMissions(root)
	for _, mission := range missions {
		if mission.HasLegacyCommands() {
			return true
		}
	}
	control := kittify.ResolveControlDir(root)
	return control != "" && kittify.Exists(filepath.Join(control, kittify.PollutionDir))
}

func (m *CommandTemplates) CanApply(root string) (bool, string) {
	if kittify.ResolveControlDir(root) == "" {
		return false, "no control directory found"
	}
	return true, ""
}

func (m *CommandTemplates) Apply(root string, dryRun bool) *upgrade.Result {
	res := upgrade.NewResult()
	say := func(done, planned string) string {
		if dryRun {
			return planned
		}
		return done
	}

	missions, err := kittify.ListMissions(root)
	if err != nil {
		res.Failf("%v", err)
		return res
	}

	changed := false
	for _, mission := range missions {
		old := filepath.Join(mission.Path, kittify.LegacyCommandTemplatesDir)
		cur := filepath.Join(mission.Path, kittify.CommandTemplatesDir)
		if !kittify.DirExists(old) {
			continue
		}
		changed = true

		if !kittify.Exists(cur) {
			n := countFiles(old)
			res.FilesAffected += n
			if !dryRun {
				if err := os.Rename(old, cur); err != nil {
					res.Failf("rename %s: %v", old, err)
					return res
				}
			}
			res.Changef(say("Renamed %s/%s to %s (%d files)", "Would rename %s/%s to %s (%d files)"), mission.Name, kittify.LegacyCommandTemplatesDir, kittify.CommandTemplatesDir, n)
			continue
		}

		stats, err := mergeTree(old, cur, dryRun, dropSource)
		if err != nil {
			res.Failf("merging %s: %v", mission.Name, err)
			return res
		}
		res.FilesAffected += len(stats.Moved) + len(stats.Conflicts)
		res.Changef(say("Merged %s/%s into %s (%d carried over, %d kept from %s)", "Would merge %s/%s into %s (%d carried over, %d kept from %s)"),
			mission.Name, kittify.LegacyCommandTemplatesDir, kittify.CommandTemplatesDir,
			len(stats.Moved), len(stats.Conflicts), kittify.CommandTemplatesDir)
	}

	control := kittify.ResolveControlDir(root)
	if pollution := filepath.Join(control, kittify.PollutionDir); control != "" && kittify.Exists(pollution) {
		changed = true
		n := countFiles(pollution)
		res.FilesAffected += n
		if !dryRun {
			if err := os.RemoveAll(pollution); err != nil {
				res.Failf("removing %s: %v", pollution, err)
				return res
			}
		}
		res.Changef(say("Removed %s (%d files)", "Would remove %s (%d files)"), filepath.Join(filepath.Base(control), kittify.PollutionDir), n)
	}

	stale := staleRenderedCommands(root, availableCommands(missions))
	for _, path := range stale {
		changed = true
		res.FilesAffected++
		if !dryRun {
			if err := os.Remove(path); err != nil {
				res.Failf("removing stale %s: %v", path, err)
				return res
			}
		}
		rel, _ := filepath.Rel(root, path)
		res.Changef(say("Removed stale agent command %s", "Would remove stale agent command %s"), rel)
	}

	if !changed {
		res.Changef("Mission commands already use %s", kittify.CommandTemplatesDir)
		return res
	}
	res.Warnf("Re-render agent commands so every agent picks up the current templates")
	return res
}

// availableCommands is the set of command names any mission provides, from
// either directory name.
func availableCommands(missions []kittify.Mission) map[string]bool {
	cmds := make(map[string]bool)
	for _, mission := range missions {
		for _, dir := range []string{kittify.CommandTemplatesDir, kittify.LegacyCommandTemplatesDir} {
			entries, err := os.ReadDir(filepath.Join(mission.Path, dir))
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				name := e.Name()
				if i := strings.IndexByte(name, '.'); i > 0 {
					name = name[:i]
				}
				cmds[name] = true
			}
		}
	}
	return cmds
}

// staleRenderedCommands finds spec-kitty.<command>.* files in agent command
// directories whose command has no template. With no templates at all,
// nothing is considered stale.
func staleRenderedCommands(root string, available map[string]bool) []string {
	if len(available) == 0 {
		return nil
	}
	var stale []string
	for _, acd := range kittify.AgentCommandDirs {
		dir := filepath.Join(root, acd.Dir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasPrefix(name, renderedPrefix) {
				continue
			}
			cmd := strings.TrimPrefix(name, renderedPrefix)
			if i := strings.IndexByte(cmd, '.'); i > 0 {
				cmd = cmd[:i]
			}
			if !available[cmd] {
				stale = append(stale, filepath.Join(dir, name))
			}
		}
	}
	sort.Strings(stale)
	return stale
}
