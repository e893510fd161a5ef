package upgrade

import (
	"fmt"
	"sort"

	"golang.org/x/mod/semver"
)

// Registry is a validated, immutable catalog of migrations in
// chronological order.
type Registry struct {
	ordered []Migration
	byID    map[string]Migration
}

// NewRegistry validates ms and orders them by target version, keeping
// registration order among equal targets. Any missing field, invalid target
// version, or duplicate id is an error.
func NewRegistry(ms ...Migration) (*Registry, error) {
	r := &Registry{byID: make(map[string]Migration, len(ms))}
	for i, m := range ms {
		if m == nil {
			return nil, fmt.Errorf("migration #%d is nil", i)
		}
		id := m.ID()
		switch {
		case id == "":
			return nil, fmt.Errorf("migration #%d has no id", i)
		case m.Description() == "":
			return nil, fmt.Errorf("migration %s has no description", id)
		case m.TargetVersion() == "":
			return nil, fmt.Errorf("migration %s has no target version", id)
		case !semver.IsValid(canonical(m.TargetVersion())):
			return nil, fmt.Errorf("migration %s has invalid target version %q", id, m.TargetVersion())
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("duplicate migration id %s", id)
		}
		r.byID[id] = m
		r.ordered = append(r.ordered, m)
	}

	sort.SliceStable(r.ordered, func(i, j int) bool {
		return CompareVersions(r.ordered[i].TargetVersion(), r.ordered[j].TargetVersion()) < 0
	})
	return r, nil
}

// MustRegistry is NewRegistry for static migration lists; it panics on an
// invalid list.
func MustRegistry(ms ...Migration) *Registry {
	r, err := NewRegistry(ms...)
	if err != nil {
		panic(err)
	}
	return r
}

// All returns every migration in chronological order.
func (r *Registry) All() []Migration {
	out := make([]Migration, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Applicable returns the migrations with from < target <= to, in order. An
// empty to is unbounded.
func (r *Registry) Applicable(from, to string) []Migration {
	var out []Migration
	for _, m := range r.ordered {
		t := m.TargetVersion()
		if CompareVersions(t, from) <= 0 {
			continue
		}
		if to != "" && CompareVersions(t, to) > 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Lookup finds a migration by id.
func (r *Registry) Lookup(id string) (Migration, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// Latest is the highest target version in the registry, or "" when empty.
func (r *Registry) Latest() string {
	if len(r.ordered) == 0 {
		return ""
	}
	return r.ordered[len(r.ordered)-1].TargetVersion()
}

// Len is the number of registered migrations.
func (r *Registry) Len() int { return len(r.ordered) }

// canonical adds the "v" prefix x/mod/semver requires.
func canonical(v string) string {
	if len(v) > 0 && v[0] == 'v' {
		return v
	}
	return "v" + v
}

// CompareVersions compares two version strings with or without a leading
// "v". Invalid versions sort before all valid ones.
func CompareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

// ValidVersion reports whether v is a semantic version.
func ValidVersion(v string) bool {
	return v != "" && semver.IsValid(canonical(v))
}
