package assets

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// PackageFunction zips a function source directory into a deployable
// archive. Files sit at the archive root, the layout the runtime expects
// for single-file handlers. An unreadable or empty directory is an error:
// functions cannot deploy without code.
func PackageFunction(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read function source %s: %w", dir, err)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	packed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		f, err := w.Create(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", entry.Name(), err)
		}
		if _, err := f.Write(body); err != nil {
			return nil, fmt.Errorf("failed to write %s to archive: %w", entry.Name(), err)
		}
		packed++
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if packed == 0 {
		return nil, fmt.Errorf("function source %s contains no files", dir)
	}
	return buf.Bytes(), nil
}
