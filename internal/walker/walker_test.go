package walker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestList_FiltersByExtensionInLexicalOrder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py":          "print(1)",
		"a.py":          "print(2)",
		"src/lib.CPP":   "int x;",
		"src/notes.md":  "# notes",
		"src/z/deep.py": "x = 1",
	})

	files, err := List(context.Background(), root, Options{Extensions: []string{".py", "cpp"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.py", "src/lib.CPP", "src/z/deep.py"}, relPaths(files))
}

func TestList_SkipsDefaultIgnoresEmptyAndLargeFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.py":                   "x = 1",
		"empty.py":                  "",
		"big.py":                    strings.Repeat("x", 200),
		"node_modules/dep/index.py": "x = 1",
		".git/hooks/pre.py":         "x = 1",
		".diver/cache.py":           "x = 1",
	})

	files, err := List(context.Background(), root, Options{Extensions: []string{".py"}, MaxFileSize: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.py"}, relPaths(files))
}

func TestList_IgnoreFileReplacesDefaults(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		IgnoreFile:           "# custom\ngenerated\nthird_party/*\n",
		"main.go":            "package main",
		"generated/api.go":   "package api",
		"third_party/x/x.go": "package x",
		"vendor/dep/dep.go":  "package dep",
	})

	files, err := List(context.Background(), root, Options{Extensions: []string{".go"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "vendor/dep/dep.go"}, relPaths(files))
}

func TestList_NoExtensionsMeansAll(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a", "b.rs": "b"})

	files, err := List(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestWalk_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "a", "b.py": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := List(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirs_SkipsIgnored(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/a.py":          "a",
		"src/pkg/b.py":      "b",
		"node_modules/x.js": "x",
	})

	dirs, err := Dirs(root)
	require.NoError(t, err)

	var rels []string
	for _, d := range dirs {
		rel, err := filepath.Rel(root, d)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{".", "src", "src/pkg"}, rels)
}

func TestIgnored(t *testing.T) {
	root := t.TempDir()
	assert.True(t, Ignored(root, ".diver/index.db"))
	assert.True(t, Ignored(root, "a/node_modules/b.js"))
	assert.False(t, Ignored(root, "src/main.py"))
	assert.False(t, Ignored(root, "main.py"))
}
