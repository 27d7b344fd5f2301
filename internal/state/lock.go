package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// staleLockAge is the age past which an abandoned lock is reclaimed.
const staleLockAge = 10 * time.Minute

// Lock takes an advisory file lock next to the record so concurrent runs
// fail fast instead of interleaving provider calls.
func (m *Manager) Lock() error {
	lockPath := m.lockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(lockPath); err == nil {
		if time.Since(info.ModTime()) > staleLockAge {
			os.Remove(lockPath)
		} else {
			holder := ""
			if raw, err := os.ReadFile(lockPath); err == nil {
				holder = " held by " + strings.TrimSpace(string(raw))
			}
			return fmt.Errorf("deployment record is locked%s (lock file: %s); "+
				"remove the file if that run is no longer alive", holder, lockPath)
		}
	}

	content := fmt.Sprintf("pid=%d time=%s", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(lockPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	return nil
}

// Unlock releases the lock taken by Lock.
func (m *Manager) Unlock() error {
	if err := os.Remove(m.lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (m *Manager) lockPath() string {
	return m.path + ".lock"
}
