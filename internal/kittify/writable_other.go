//go:build !unix

package kittify

import (
	"fmt"
	"os"
)

// CheckWritable returns an error if the current user cannot create entries
// in dir.
func CheckWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".kittify-write-probe-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}
