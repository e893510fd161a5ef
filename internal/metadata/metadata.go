// Package metadata reads and writes the per-project upgrade record kept in
// <control-dir>/metadata.yaml.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/spec-kitty/spec-kitty/internal/kittify"
)

const FileName = "metadata.yaml"

// Outcome is the recorded result of one migration attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// AppliedMigration is one entry of the migration history.
type AppliedMigration struct {
	ID            string    `yaml:"id"`
	Result        Outcome   `yaml:"result"`
	AppliedAt     time.Time `yaml:"applied_at"`
	TargetVersion string    `yaml:"target_version,omitempty"`
}

type toolSection struct {
	Version        string    `yaml:"version"`
	InitializedAt  time.Time `yaml:"initialized_at"`
	LastUpgradedAt time.Time `yaml:"last_upgraded_at,omitempty"`
}

type environmentSection struct {
	PythonVersion   string `yaml:"python_version,omitempty"`
	Platform        string `yaml:"platform,omitempty"`
	PlatformVersion string `yaml:"platform_version,omitempty"`
}

type migrationsSection struct {
	Applied []AppliedMigration `yaml:"applied"`
}

// ProjectMetadata is the on-disk record of a project's structural version.
// The history is only mutated through RecordMigration.
type ProjectMetadata struct {
	Tool        toolSection        `yaml:"spec_kitty"`
	Environment environmentSection `yaml:"environment"`
	Migrations  migrationsSection  `yaml:"migrations"`
}

// ParseError reports an unreadable metadata file. The file is left alone.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC().Truncate(time.Second) }

// New creates metadata for a tree at version, stamping initialized_at.
func New(version string) *ProjectMetadata {
	m := &ProjectMetadata{}
	m.Tool.Version = version
	m.Tool.InitializedAt = now()
	m.captureEnvironment()
	return m
}

// Path returns the metadata file location inside controlDir.
func Path(controlDir string) string {
	return filepath.Join(controlDir, FileName)
}

// Exists reports whether controlDir has a metadata file.
func Exists(controlDir string) bool {
	_, err := os.Stat(Path(controlDir))
	return err == nil
}

// Load reads metadata from controlDir. A missing file returns (nil, nil).
// A file that exists but does not parse returns a *ParseError and never a
// partially populated value.
func Load(controlDir string) (*ProjectMetadata, error) {
	path := Path(controlDir)

	data, err := os.ReadFile(path) // #nosec G304 - controlled path from project layout
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var m ProjectMetadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if m.Tool.Version == "" {
		return nil, &ParseError{Path: path, Err: errors.New("missing spec_kitty.version")}
	}
	if !semver.IsValid("v" + m.Tool.Version) {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("invalid version %q", m.Tool.Version)}
	}
	return &m, nil
}

// Save writes the metadata atomically into controlDir.
func (m *ProjectMetadata) Save(controlDir string) error {
	m.captureEnvironment()

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	if err := kittify.WriteFileAtomic(Path(controlDir), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

func (m *ProjectMetadata) captureEnvironment() {
	m.Environment.PythonVersion = runtime.Version()
	m.Environment.Platform = runtime.GOOS
	m.Environment.PlatformVersion = runtime.GOARCH
}

// Version is the structural version of the tree.
func (m *ProjectMetadata) Version() string { return m.Tool.Version }

// SetVersion advances the structural version.
func (m *ProjectMetadata) SetVersion(v string) { m.Tool.Version = v }

// InitializedAt is set once when the record is created.
func (m *ProjectMetadata) InitializedAt() time.Time { return m.Tool.InitializedAt }

// LastUpgradedAt is the time of the last upgrade run that changed anything.
func (m *ProjectMetadata) LastUpgradedAt() time.Time { return m.Tool.LastUpgradedAt }

// MarkUpgraded stamps last_upgraded_at.
func (m *ProjectMetadata) MarkUpgraded() { m.Tool.LastUpgradedAt = now() }

// Applied returns a copy of the migration history.
func (m *ProjectMetadata) Applied() []AppliedMigration {
	out := make([]AppliedMigration, len(m.Migrations.Applied))
	copy(out, m.Migrations.Applied)
	return out
}

// HasSucceeded reports whether id is recorded with result success.
func (m *ProjectMetadata) HasSucceeded(id string) bool {
	for _, a := range m.Migrations.Applied {
		if a.ID == id && a.Result == OutcomeSuccess {
			return true
		}
	}
	return false
}

// RecordMigration adds an entry to the history with the current time.
//
// The history stays sorted by ascending target version: a record whose
// target is lower than the tail (for example after a manual version rewind)
// is inserted after the last entry with an equal or lower target. A second
// success for an id that already succeeded is ignored.
func (m *ProjectMetadata) RecordMigration(id, targetVersion string, result Outcome) {
	if result == OutcomeSuccess && m.HasSucceeded(id) {
		return
	}

	rec := AppliedMigration{
		ID:            id,
		Result:        result,
		AppliedAt:     now(),
		TargetVersion: targetVersion,
	}

	applied := m.Migrations.Applied
	pos := len(applied)
	for pos > 0 && compareVersions(recordTarget(applied[pos-1]), targetVersion) > 0 {
		pos--
	}
	applied = append(applied, AppliedMigration{})
	copy(applied[pos+1:], applied[pos:])
	applied[pos] = rec
	m.Migrations.Applied = applied
}

// recordTarget returns the target version of a history entry. Records
// written without target_version fall back to the id's version prefix
// ("0.6.5_commands_rename" -> "0.6.5").
func recordTarget(a AppliedMigration) string {
	if a.TargetVersion != "" {
		return a.TargetVersion
	}
	for i, r := range a.ID {
		if r == '_' {
			return a.ID[:i]
		}
	}
	return a.ID
}

// compareVersions compares two bare semver strings. Invalid versions sort
// before every valid one.
func compareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}
