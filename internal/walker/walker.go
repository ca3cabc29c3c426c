package walker

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileInfo holds metadata about a discovered source file.
type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
}

// IgnoreFile lists directory patterns to skip, one per line.
const IgnoreFile = ".diverignore"

// DefaultMaxFileSize is the largest file considered when Options leaves it unset.
const DefaultMaxFileSize = 1 << 20

// defaultIgnores are used when no ignore file exists.
var defaultIgnores = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	"vendor",
	"__pycache__",
	".idea",
	".vscode",
	".diver",
	".venv",
	"dist",
	"build",
}

// Options filters the walk.
type Options struct {
	// Extensions are matched case-insensitively against the file suffix,
	// e.g. ".py". Empty means every file.
	Extensions  []string
	MaxFileSize int64
}

func (o Options) allowed() map[string]bool {
	exts := make(map[string]bool, len(o.Extensions))
	for _, e := range o.Extensions {
		e = strings.ToLower(e)
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return exts
}

// Walk traverses the tree rooted at root in lexical order and streams the
// matching files. Unreadable entries are skipped. The file channel closes
// when the walk ends; the error channel carries at most one error.
func Walk(ctx context.Context, root string, opts Options) (<-chan FileInfo, <-chan error) {
	files := make(chan FileInfo, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}

		allowed := opts.allowed()
		maxSize := opts.MaxFileSize
		if maxSize <= 0 {
			maxSize = DefaultMaxFileSize
		}
		ignores := loadIgnorePatterns(absRoot)

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			if d.IsDir() {
				if path == absRoot {
					return nil
				}
				rel, _ := filepath.Rel(absRoot, path)
				if matchesIgnore(d.Name(), filepath.ToSlash(rel), ignores) {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			if len(allowed) > 0 && !allowed[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() > maxSize || info.Size() == 0 {
				return nil
			}

			relPath, _ := filepath.Rel(absRoot, path)
			select {
			case files <- FileInfo{Path: path, RelPath: filepath.ToSlash(relPath), Size: info.Size()}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// List drains Walk into a slice, preserving enumeration order.
func List(ctx context.Context, root string, opts Options) ([]FileInfo, error) {
	files, errs := Walk(ctx, root, opts)
	var out []FileInfo
	for f := range files {
		out = append(out, f)
	}
	if err := <-errs; err != nil {
		return out, err
	}
	return out, nil
}

// loadIgnorePatterns reads the ignore file from the project root, falling
// back to the defaults when it is missing or empty.
func loadIgnorePatterns(root string) []string {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return defaultIgnores
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) == 0 {
		return defaultIgnores
	}
	return patterns
}

// matchesIgnore checks a directory name or relative path against the patterns.
func matchesIgnore(name, relPath string, patterns []string) bool {
	for _, p := range patterns {
		if name == p {
			return true
		}
		if relPath == p || strings.HasPrefix(relPath, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
		if matched, _ := filepath.Match(p, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return false
}

// Dirs lists root and every directory below it that is not ignored.
func Dirs(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	ignores := loadIgnorePatterns(absRoot)

	var dirs []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != absRoot {
			rel, _ := filepath.Rel(absRoot, path)
			if matchesIgnore(d.Name(), filepath.ToSlash(rel), ignores) {
				return filepath.SkipDir
			}
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// Ignored reports whether rel (slash-separated, relative to root) lies in
// an ignored directory.
func Ignored(root, rel string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	ignores := loadIgnorePatterns(absRoot)
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i := 1; i < len(parts); i++ {
		if matchesIgnore(parts[i-1], strings.Join(parts[:i], "/"), ignores) {
			return true
		}
	}
	return false
}
