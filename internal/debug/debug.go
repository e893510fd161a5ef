package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	enabled = os.Getenv("SPEC_KITTY_DEBUG") != ""

	mu      sync.Mutex
	fileLog *log.Logger
	rotator *lumberjack.Logger
)

// Enabled reports whether debug output goes to stderr.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetEnabled toggles stderr debug output (wired to --verbose).
func SetEnabled(on bool) {
	mu.Lock()
	enabled = on
	mu.Unlock()
}

// Logf writes to stderr when debugging is enabled and always to the
// rotating log file when one is open.
func Logf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		fmt.Fprintf(os.Stderr, format, args...)
		if len(format) == 0 || format[len(format)-1] != '\n' {
			fmt.Fprintln(os.Stderr)
		}
	}
	if fileLog != nil {
		fileLog.Printf(format, args...)
	}
}

// EnableFileLog opens a size-rotated log at path. An empty path is a no-op.
func EnableFileLog(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if rotator != nil {
		_ = rotator.Close()
	}
	rotator = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	fileLog = log.New(rotator, "", log.LstdFlags|log.LUTC)
	return nil
}

// SetOutput redirects the file log to w (tests).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		fileLog = nil
		return
	}
	fileLog = log.New(w, "", 0)
}

// Close flushes and closes the rotating log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	fileLog = nil
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}
