// Package migrations holds every structural migration spec-kitty knows,
// one file per migration, named by target version.
package migrations

import (
	"sync"

	"github.com/spec-kitty/spec-kitty/internal/upgrade"
)

// All returns a fresh instance of every migration in registration order.
// Add new migrations at the end.
func All() []upgrade.Migration {
	return []upgrade.Migration{
		NewSpecifyToKittify(),
		NewSpecsToKittySpecs(),
		NewGitignoreAgents(),
		NewEncodingHooks(),
		NewCommandTemplates(),
		NewMemoryDir(),
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *upgrade.Registry
)

// Default is the process-wide registry, validated on first use. An invalid
// migration list panics at startup rather than mid-upgrade.
func Default() *upgrade.Registry {
	defaultOnce.Do(func() {
		defaultRegistry = upgrade.MustRegistry(All()...)
	})
	return defaultRegistry
}

// CurrentVersion is the structural version a fully migrated project has.
func CurrentVersion() string {
	return Default().Latest()
}
