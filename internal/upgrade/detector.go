package upgrade

import (
	"path/filepath"

	"github.com/spec-kitty/spec-kitty/internal/debug"
	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/metadata"
)

// Unknown is returned when neither metadata nor any fingerprint identifies
// the tree. It never means "latest".
const Unknown = "unknown"

// Where a detected version came from.
const (
	SourceMetadata  = "metadata"
	SourceHeuristic = "heuristic"
	SourceNone      = "none"
)

// Layout is a snapshot of the structural signals fingerprints look at.
type Layout struct {
	LegacyControlDir bool
	ControlDir       bool
	LegacySpecsDir   bool
	SpecsDir         bool
	IgnoreHasAgents  bool
	RootMemoryDir    bool
	ControlMemoryDir bool

	// Mission counts by which command directories they hold.
	MissionsLegacyOnly    int
	MissionsTemplatesOnly int
	MissionsBoth          int
}

// Fingerprint maps a structural signal to the release that leaves it.
type Fingerprint struct {
	Name    string
	Version string
	Match   func(Layout) bool
}

// Fingerprints are evaluated top to bottom and the first match wins. Keep
// the most specific signal first; later entries may assume earlier ones did
// not match.
var Fingerprints = []Fingerprint{
	{
		Name:    "legacy control directory",
		Version: "0.1.0",
		Match:   func(l Layout) bool { return l.LegacyControlDir },
	},
	{
		Name:    "legacy specs directory",
		Version: "0.2.0",
		Match:   func(l Layout) bool { return l.LegacySpecsDir && !l.SpecsDir },
	},
	{
		Name:    "ignore file without agent directories",
		Version: "0.3.0",
		Match:   func(l Layout) bool { return l.ControlDir && !l.IgnoreHasAgents },
	},
	{
		Name:    "mission commands directory",
		Version: "0.6.4",
		Match:   func(l Layout) bool { return l.MissionsLegacyOnly > 0 || l.MissionsBoth > 0 },
	},
	{
		Name:    "command templates with control-dir memory",
		Version: "0.7.0",
		Match: func(l Layout) bool {
			return l.MissionsTemplatesOnly > 0 && l.ControlMemoryDir && !l.RootMemoryDir
		},
	},
	{
		Name:    "command templates",
		Version: "0.6.5",
		Match:   func(l Layout) bool { return l.MissionsTemplatesOnly > 0 },
	},
}

// MatchFingerprint runs fps against l and returns the first match.
func MatchFingerprint(fps []Fingerprint, l Layout) (Fingerprint, bool) {
	for _, fp := range fps {
		if fp.Match(l) {
			return fp, true
		}
	}
	return Fingerprint{}, false
}

// ScanLayout collects the structural signals of root.
func ScanLayout(root string) Layout {
	l := Layout{
		LegacyControlDir: kittify.DirExists(filepath.Join(root, kittify.LegacyControlDir)),
		ControlDir:       kittify.DirExists(filepath.Join(root, kittify.ControlDir)),
		LegacySpecsDir:   kittify.DirExists(filepath.Join(root, kittify.LegacySpecsDir)),
		SpecsDir:         kittify.DirExists(filepath.Join(root, kittify.SpecsDir)),
		RootMemoryDir:    kittify.DirExists(filepath.Join(root, kittify.MemoryDir)),
	}
	if control := kittify.ResolveControlDir(root); control != "" {
		l.ControlMemoryDir = kittify.DirExists(filepath.Join(control, kittify.MemoryDir))
	}

	if ignore, err := kittify.ReadIgnoreFile(root); err == nil {
		l.IgnoreHasAgents = ignore.HasAnyAgentEntry()
	} else {
		debug.Logf("detector: %v", err)
	}

	missions, err := kittify.ListMissions(root)
	if err != nil {
		debug.Logf("detector: %v", err)
	}
	for _, m := range missions {
		legacy, current := m.HasLegacyCommands(), m.HasCommandTemplates()
		switch {
		case legacy && current:
			l.MissionsBoth++
		case legacy:
			l.MissionsLegacyOnly++
		case current:
			l.MissionsTemplatesOnly++
		}
	}
	return l
}

// Detection is the outcome of version detection.
type Detection struct {
	Version string
	Source  string
	// Fingerprint names the heuristic that matched, if any.
	Fingerprint string
	// MetadataErr is set when a metadata file exists but could not be read;
	// detection then falls back to fingerprints.
	MetadataErr error
}

// Detector infers a tree's structural version.
type Detector struct {
	Fingerprints []Fingerprint
}

// NewDetector uses the package fingerprint table.
func NewDetector() *Detector {
	return &Detector{Fingerprints: Fingerprints}
}

// Detect returns the version of root. Parsable metadata always wins, even
// when the structure says otherwise.
func (d *Detector) Detect(root string) Detection {
	var metaErr error
	if control := kittify.ResolveControlDir(root); control != "" {
		meta, err := metadata.Load(control)
		switch {
		case err != nil:
			metaErr = err
			debug.Logf("detector: ignoring unreadable metadata: %v", err)
		case meta != nil:
			return Detection{Version: meta.Version(), Source: SourceMetadata}
		}
	}

	if fp, ok := MatchFingerprint(d.Fingerprints, ScanLayout(root)); ok {
		return Detection{Version: fp.Version, Source: SourceHeuristic, Fingerprint: fp.Name, MetadataErr: metaErr}
	}
	return Detection{Version: Unknown, Source: SourceNone, MetadataErr: metaErr}
}

// DetectVersion returns only the version string of root.
func DetectVersion(root string) string {
	return NewDetector().Detect(root).Version
}

// DetectBrokenMissionSystem reports whether any mission descriptor exists
// but cannot be parsed. Such projects need a targeted repair rather than a
// version migration.
func DetectBrokenMissionSystem(root string) bool {
	return len(BrokenMissions(root)) > 0
}

// BrokenMissions returns the names of missions whose descriptor is broken.
func BrokenMissions(root string) []string {
	missions, err := kittify.ListMissions(root)
	if err != nil {
		return nil
	}
	var broken []string
	for _, m := range missions {
		if _, err := m.LoadDescriptor(); err != nil {
			broken = append(broken, m.Name)
		}
	}
	return broken
}
