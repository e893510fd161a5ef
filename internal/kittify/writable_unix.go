//go:build unix

package kittify

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CheckWritable returns an error if the current user cannot create entries
// in dir.
func CheckWritable(dir string) error {
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	return nil
}
