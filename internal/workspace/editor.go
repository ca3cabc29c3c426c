package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ResolveEditor picks $VISUAL, then $EDITOR, then the configured editor,
// then vi.
func ResolveEditor(configured string) string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	return "vi"
}

// Edit opens path in editor attached to the current terminal and waits for
// it to exit. editor may carry arguments, e.g. "code -w".
func Edit(ctx context.Context, editor, path string) error {
	fields := strings.Fields(editor)
	if len(fields) == 0 {
		return errors.New("no editor configured")
	}
	args := append(fields[1:], path)
	cmd := exec.CommandContext(ctx, fields[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run editor %s: %w", fields[0], err)
	}
	return nil
}

// EditText lets the user edit text in a temporary file and returns the
// result. ext sets the temp file suffix so editors pick a syntax mode.
func EditText(ctx context.Context, editor, text, ext string) (string, error) {
	dir, err := os.MkdirTemp("", "diver-edit-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "answer"+ext)
	if err := WriteText(path, text); err != nil {
		return "", err
	}
	if err := Edit(ctx, editor, path); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read edited text: %w", err)
	}
	return string(data), nil
}
