// Package output persists refreshed manifests and removes stale ones.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Write stores content at path, creating missing parent directories. The file
// is staged at PartialPath and renamed, so readers never see a half-written
// manifest. Writing the same content twice yields the same file.
func Write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	partial := PartialPath(path)
	if err := os.WriteFile(partial, []byte(content), 0644); err != nil {
		os.Remove(partial)
		return fmt.Errorf("write %s: %w", partial, err)
	}
	if err := os.Rename(partial, path); err != nil {
		os.Remove(partial)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Remove deletes a previously written manifest so a failed refresh never
// leaves a stale one behind. It reports whether a file was deleted; a missing
// file is not an error.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
