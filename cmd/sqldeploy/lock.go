package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// withLogDirLock guards against two concurrent sqldeploy invocations
// writing into the same log directory (spec.md §6.3 log files are
// per-target, but two engine invocations racing against the same target
// could otherwise interleave file creation), using the same advisory
// file lock pattern as a pre-sync exclusive lock.
func withLogDirLock(dir string, fn func() error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory %s: %w", dir, err)
	}
	lockPath := filepath.Join(dir, ".sqldeploy.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire log directory lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another sqldeploy invocation is already writing to %s", dir)
	}
	defer lock.Unlock()

	return fn()
}
