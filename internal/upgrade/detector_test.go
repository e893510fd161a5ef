package upgrade

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spec-kitty/spec-kitty/internal/kittify"
	"github.com/spec-kitty/spec-kitty/internal/metadata"
	"github.com/spec-kitty/spec-kitty/internal/testutil/fixtures"
)

func TestMatchFingerprint(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		want   string
	}{
		{
			name:   "legacy control dir beats everything",
			layout: Layout{LegacyControlDir: true, ControlDir: true, IgnoreHasAgents: true, MissionsTemplatesOnly: 2},
			want:   "0.1.0",
		},
		{
			name:   "legacy specs only",
			layout: Layout{ControlDir: true, LegacySpecsDir: true},
			want:   "0.2.0",
		},
		{
			name:   "both specs dirs falls through",
			layout: Layout{ControlDir: true, LegacySpecsDir: true, SpecsDir: true},
			want:   "0.3.0",
		},
		{
			name:   "no agent ignore entries",
			layout: Layout{ControlDir: true, SpecsDir: true, MissionsTemplatesOnly: 1},
			want:   "0.3.0",
		},
		{
			name:   "legacy mission commands",
			layout: Layout{ControlDir: true, SpecsDir: true, IgnoreHasAgents: true, MissionsLegacyOnly: 1},
			want:   "0.6.4",
		},
		{
			name:   "half migrated missions",
			layout: Layout{ControlDir: true, IgnoreHasAgents: true, MissionsTemplatesOnly: 1, MissionsBoth: 1},
			want:   "0.6.4",
		},
		{
			name:   "templates with root memory",
			layout: Layout{ControlDir: true, IgnoreHasAgents: true, MissionsTemplatesOnly: 1, RootMemoryDir: true},
			want:   "0.6.5",
		},
		{
			name:   "templates with control memory",
			layout: Layout{ControlDir: true, IgnoreHasAgents: true, MissionsTemplatesOnly: 1, ControlMemoryDir: true},
			want:   "0.7.0",
		},
		{
			name:   "nothing recognisable",
			layout: Layout{ControlDir: true, IgnoreHasAgents: true},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, ok := MatchFingerprint(Fingerprints, tt.layout)
			if tt.want == "" {
				if ok {
					t.Fatalf("matched %q (%s), want no match", fp.Name, fp.Version)
				}
				return
			}
			if !ok {
				t.Fatalf("no fingerprint matched, want %s", tt.want)
			}
			if fp.Version != tt.want {
				t.Errorf("matched %q = %s, want %s", fp.Name, fp.Version, tt.want)
			}
		})
	}
}

func TestDetectHeuristic(t *testing.T) {
	tests := []struct {
		name string
		cfg  fixtures.ProjectConfig
		want string
	}{
		{"earliest legacy", fixtures.EarliestLegacy(), "0.1.0"},
		{"buggy 0.6.4", fixtures.Buggy064(), "0.6.4"},
		{"current without metadata", fixtures.Current(""), "0.6.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := fixtures.NewProject(t, tt.cfg)
			det := NewDetector().Detect(root)
			if det.Version != tt.want {
				t.Errorf("Detect() = %s (%s), want %s", det.Version, det.Fingerprint, tt.want)
			}
			if det.Source != SourceHeuristic {
				t.Errorf("Source = %s, want %s", det.Source, SourceHeuristic)
			}
		})
	}
}

func TestDetectMetadataWins(t *testing.T) {
	cfg := fixtures.EarliestLegacy()
	cfg.MetadataVersion = "0.4.8"
	root := fixtures.NewProject(t, cfg)

	det := NewDetector().Detect(root)
	if det.Version != "0.4.8" || det.Source != SourceMetadata {
		t.Errorf("Detect() = %s from %s, want 0.4.8 from metadata", det.Version, det.Source)
	}
	if got := DetectVersion(root); got != "0.4.8" {
		t.Errorf("DetectVersion() = %s, want 0.4.8", got)
	}
}

func TestDetectCorruptMetadataFallsBack(t *testing.T) {
	root := fixtures.NewProject(t, fixtures.Buggy064())
	fixtures.WriteFile(t, filepath.Join(root, kittify.ControlDir, metadata.FileName), "spec_kitty: [not, a, map\n")

	det := NewDetector().Detect(root)
	if det.Version != "0.6.4" {
		t.Errorf("Detect() = %s, want heuristic 0.6.4", det.Version)
	}
	var perr *metadata.ParseError
	if !errors.As(det.MetadataErr, &perr) {
		t.Errorf("MetadataErr = %v, want *metadata.ParseError", det.MetadataErr)
	}
}

func TestDetectUnknown(t *testing.T) {
	root := fixtures.NewProject(t, fixtures.ProjectConfig{AgentIgnore: true})

	det := NewDetector().Detect(root)
	if det.Version != Unknown || det.Source != SourceNone {
		t.Errorf("Detect() = %s from %s, want %s from %s", det.Version, det.Source, Unknown, SourceNone)
	}
}

func TestBrokenMissions(t *testing.T) {
	root := fixtures.NewProject(t, fixtures.Current("0.7.0"))
	if DetectBrokenMissionSystem(root) {
		t.Fatal("healthy project reported as broken")
	}

	fixtures.WriteFile(t, filepath.Join(root, kittify.ControlDir, kittify.MissionsDir, "software-dev", kittify.MissionDescriptor), "name: [oops\n")
	if got := BrokenMissions(root); len(got) != 1 || got[0] != "software-dev" {
		t.Errorf("BrokenMissions() = %v, want [software-dev]", got)
	}
}
