// Package cmdutil holds helpers shared by the CLI commands.
package cmdutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".rats.lock"

// LockExportsDir creates dir if needed and takes an exclusive lock on it so
// that two runs never share one exports folder. The returned function
// releases the lock.
func LockExportsDir(dir string) (func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock exports directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another rats run is using %s", dir)
	}
	return lock.Unlock, nil
}
