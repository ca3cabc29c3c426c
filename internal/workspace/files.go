// Package workspace holds the file, editor and subprocess helpers used by the
// interactive shell.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReadText returns the file contents, or "" if the file cannot be read.
func ReadText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteText writes text to path, creating parent directories as needed.
func WriteText(path, text string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
