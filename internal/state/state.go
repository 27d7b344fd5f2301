package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stockpile-io/stockpile/internal/ir"
)

// Manager handles reading and writing of the deployment record.
type Manager struct {
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the record file location.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the record from disk. A missing file yields (nil, nil):
// no deployment exists yet.
func (m *Manager) Load() (*ir.Record, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record file %s: %w", m.path, err)
	}

	var rec ir.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record file %s: %w", m.path, err)
	}
	return &rec, nil
}

// Save writes the record atomically: marshal into a temp file in the same
// directory, sync, then rename over the target. A crash mid-save leaves
// either the old record or the new one, never a torn file.
func (m *Manager) Save(rec *ir.Record) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	raw = append(raw, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp record file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp record file: %w", err)
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace record file %s: %w", m.path, err)
	}
	return nil
}

// Clear removes the record file. A missing file is not an error.
func (m *Manager) Clear() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove record file %s: %w", m.path, err)
	}
	return nil
}
