package kittify

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Mission is one directory under <control>/missions.
type Mission struct {
	Name string
	Path string
}

// MissionDescriptorFile is the subset of mission.yaml the engine reads.
type MissionDescriptorFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Version     string `yaml:"version,omitempty"`
}

// ListMissions returns the missions of the project at root, sorted by name.
// A project without a missions directory has none.
func ListMissions(root string) ([]Mission, error) {
	control := ResolveControlDir(root)
	if control == "" {
		return nil, nil
	}
	return listMissionsIn(filepath.Join(control, MissionsDir))
}

func listMissionsIn(dir string) ([]Mission, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading missions: %w", err)
	}

	var missions []Mission
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		missions = append(missions, Mission{Name: e.Name(), Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(missions, func(i, j int) bool { return missions[i].Name < missions[j].Name })
	return missions, nil
}

// HasLegacyCommands reports whether the mission still has a commands/ dir.
func (m Mission) HasLegacyCommands() bool {
	return DirExists(filepath.Join(m.Path, LegacyCommandTemplatesDir))
}

// HasCommandTemplates reports whether the mission has command-templates/.
func (m Mission) HasCommandTemplates() bool {
	return DirExists(filepath.Join(m.Path, CommandTemplatesDir))
}

// LoadDescriptor parses the mission's mission.yaml. A missing file returns
// (nil, nil).
func (m Mission) LoadDescriptor() (*MissionDescriptorFile, error) {
	path := filepath.Join(m.Path, MissionDescriptor)
	data, err := os.ReadFile(path) // #nosec G304 - path built from project layout
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var desc MissionDescriptorFile
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if desc.Name == "" {
		return nil, fmt.Errorf("parsing %s: missing required field 'name'", path)
	}
	return &desc, nil
}
