package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// lockFilePermissions matches the standard config file permissions (owner rw, group/other r).
const lockFilePermissions = 0o644

// lockDirPermissions matches the standard directory permissions (owner rwx, group/other rx).
const lockDirPermissions = 0o755

// lockFileName lives next to the state database so concurrent runs against
// the same state always collide.
const lockFileName = "tasksync.lock"

// acquireLock writes the current process ID to the lock file next to the
// state database and takes an exclusive flock. Returns a cleanup function
// that removes the file and releases the lock. If the lock cannot be
// acquired, another sync run is already in progress.
func acquireLock(statePath string) (cleanup func(), err error) {
	if statePath == "" {
		return nil, fmt.Errorf("state database path is empty — cannot determine lock location")
	}

	path := filepath.Join(filepath.Dir(statePath), lockFileName)

	dir := filepath.Dir(path)
	if mkdirErr := os.MkdirAll(dir, lockDirPermissions); mkdirErr != nil {
		return nil, fmt.Errorf("creating lock directory: %w", mkdirErr)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	// Non-blocking exclusive lock — fails immediately if another process holds it.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		return nil, fmt.Errorf("another sync is already running (could not lock %s)", path)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()

		return nil, fmt.Errorf("truncating lock file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()

		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return nil, fmt.Errorf("syncing lock file: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}
