package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func fixedClock(t *testing.T) {
	t.Helper()
	saved := now
	tick := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	t.Cleanup(func() { now = saved })
}

func TestLoadMissing(t *testing.T) {
	m, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if m != nil {
		t.Errorf("Load() = %+v, want nil", m)
	}
}

func TestLoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "spec_kitty: [version\n"},
		{"empty file", ""},
		{"scalar document", "hello\n"},
		{"missing version", "spec_kitty:\n  initialized_at: 2026-01-01T00:00:00Z\n"},
		{"bad version", "spec_kitty:\n  version: banana\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(Path(dir), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			m, err := Load(dir)
			if m != nil {
				t.Errorf("Load() returned partial metadata %+v", m)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Load() error = %v, want *ParseError", err)
			}
			if pe.Path != Path(dir) {
				t.Errorf("ParseError.Path = %q, want %q", pe.Path, Path(dir))
			}
		})
	}
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	dir := t.TempDir()
	content := `spec_kitty:
  version: 0.6.4
  initialized_at: 2025-11-01T09:00:00Z
  future_field: yes
environment:
  python_version: 3.12.1
  platform: darwin
dashboard:
  port: 9237
migrations:
  applied:
    - id: 0.2.0_specify_to_kittify
      result: success
      applied_at: 2025-11-02T09:00:00Z
      notes: carried over
`
	if err := os.WriteFile(Path(dir), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Version() != "0.6.4" {
		t.Errorf("Version() = %q, want 0.6.4", m.Version())
	}
	if !m.HasSucceeded("0.2.0_specify_to_kittify") {
		t.Error("HasSucceeded(0.2.0_specify_to_kittify) = false, want true")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	fixedClock(t)
	dir := t.TempDir()

	m := New("0.6.4")
	m.RecordMigration("0.6.5_commands_rename", "0.6.5", OutcomeSuccess)
	m.SetVersion("0.6.5")
	m.MarkUpgraded()
	if err := m.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if !got.InitializedAt().Before(got.LastUpgradedAt()) {
		t.Errorf("initialized_at %v should precede last_upgraded_at %v", got.InitializedAt(), got.LastUpgradedAt())
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestSaveKeepsInitializedAt(t *testing.T) {
	fixedClock(t)
	dir := t.TempDir()

	m := New("0.2.0")
	if err := m.Save(dir); err != nil {
		t.Fatal(err)
	}
	first := m.InitializedAt()

	loaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	loaded.RecordMigration("0.3.0_specs_to_kitty_specs", "0.3.0", OutcomeSuccess)
	loaded.MarkUpgraded()
	if err := loaded.Save(dir); err != nil {
		t.Fatal(err)
	}

	again, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !again.InitializedAt().Equal(first) {
		t.Errorf("InitializedAt changed: %v -> %v", first, again.InitializedAt())
	}
}

func TestRecordMigrationOrdering(t *testing.T) {
	fixedClock(t)

	m := New("0.1.0")
	m.RecordMigration("0.2.0_specify_to_kittify", "0.2.0", OutcomeSuccess)
	m.RecordMigration("0.5.0_encoding_hooks", "0.5.0", OutcomeFailed)
	// A rewound project re-runs an earlier migration.
	m.RecordMigration("0.3.0_specs_to_kitty_specs", "0.3.0", OutcomeSkipped)
	m.RecordMigration("0.5.0_encoding_hooks", "0.5.0", OutcomeSuccess)
	// Duplicate success is ignored.
	m.RecordMigration("0.2.0_specify_to_kittify", "0.2.0", OutcomeSuccess)

	var got []string
	for _, a := range m.Applied() {
		got = append(got, a.ID+":"+string(a.Result))
	}
	want := []string{
		"0.2.0_specify_to_kittify:success",
		"0.3.0_specs_to_kitty_specs:skipped",
		"0.5.0_encoding_hooks:failed",
		"0.5.0_encoding_hooks:success",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordMigrationLegacyRecords(t *testing.T) {
	fixedClock(t)
	dir := t.TempDir()
	content := `spec_kitty:
  version: 0.6.5
  initialized_at: 2025-11-01T09:00:00Z
migrations:
  applied:
    - id: 0.6.5_commands_rename
      result: success
      applied_at: 2025-11-02T09:00:00Z
`
	if err := os.WriteFile(Path(dir), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	m.RecordMigration("0.5.0_encoding_hooks", "0.5.0", OutcomeSuccess)

	applied := m.Applied()
	if applied[0].ID != "0.5.0_encoding_hooks" {
		t.Errorf("first record = %q, want 0.5.0_encoding_hooks before the untagged 0.6.5 record", applied[0].ID)
	}
}

func TestAppliedReturnsCopy(t *testing.T) {
	m := New("0.1.0")
	m.RecordMigration("0.2.0_specify_to_kittify", "0.2.0", OutcomeSuccess)

	applied := m.Applied()
	applied[0].Result = OutcomeFailed

	if !m.HasSucceeded("0.2.0_specify_to_kittify") {
		t.Error("mutating Applied() result changed the history")
	}
}

func TestSaveIntoMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	if err := New("0.7.0").Save(dir); err == nil {
		t.Error("Save() into missing directory returned nil error")
	}
}
