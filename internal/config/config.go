package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
func Initialize() error {
	v = viper.New()

	v.SetConfigType("yaml")

	// Explicit path wins: SPEC_KITTY_CONFIG=/path/to/config.yaml
	if explicit := os.Getenv("SPEC_KITTY_CONFIG"); explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")

		// Walk up from cwd looking for a project control directory so the
		// project-local config is found from any subdirectory.
		if cwd, err := os.Getwd(); err == nil {
			for dir := cwd; ; {
				for _, name := range []string{".kittify", ".specify"} {
					candidate := filepath.Join(dir, name)
					if info, err := os.Stat(candidate); err == nil && info.IsDir() {
						v.AddConfigPath(candidate)
					}
				}
				parent := filepath.Dir(dir)
				if parent == dir {
					break
				}
				dir = parent
			}
		}

		// User config: ~/.config/spec-kitty/config.yaml
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "spec-kitty"))
		}
	}

	// SPEC_KITTY_NO_WORKTREES, SPEC_KITTY_WORKTREE_JOBS, ...
	v.SetEnvPrefix("SPEC_KITTY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("json", false)
	v.SetDefault("verbose", false)
	v.SetDefault("no-color", false)
	v.SetDefault("no-worktrees", false)
	v.SetDefault("worktree-jobs", 0)
	v.SetDefault("lock-dir", "")
	v.SetDefault("lock-timeout", "5s")
	v.SetDefault("log-file", DefaultLogFile())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// An explicit path that does not exist is also just "no config".
			if !os.IsNotExist(err) {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	return nil
}

// DefaultLogFile is the rotating upgrade log under the user cache directory.
// Returns "" when no cache directory can be determined.
func DefaultLogFile() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cacheDir, "spec-kitty", "logs", "upgrade.log")
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value (used by tests)
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
