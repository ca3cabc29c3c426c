package symbol

import (
	"context"
	"fmt"
	"slices"

	"diver/internal/config"
	"diver/internal/walker"
	"diver/internal/workspace"
)

// Match is one file's extracted definition.
type Match struct {
	Path  string // relative to the scan root
	Block string
}

// Scanner searches a source tree for symbol definitions.
type Scanner struct {
	Root          string
	Extensions    []string
	Lookback      int
	FallbackLines int
	MaxFileSize   int64
}

// NewScanner creates a Scanner over root with default extraction limits.
func NewScanner(root string, exts []string) *Scanner {
	return &Scanner{
		Root:          root,
		Extensions:    exts,
		Lookback:      DefaultLookback,
		FallbackLines: DefaultFallbackLines,
	}
}

// Scan returns the definition of q from every candidate file, in walk
// order. A non-empty filter (".py" or "py") narrows the extension set; a
// filter outside it matches nothing. Unreadable files are treated as empty.
func (s *Scanner) Scan(ctx context.Context, q Query, filter string) ([]Match, error) {
	exts := s.Extensions
	if f := config.NormalizeExt(filter); f != "" {
		if !slices.Contains(config.NormalizeExts(s.Extensions), f) {
			return nil, nil
		}
		exts = []string{f}
	}

	files, err := walker.List(ctx, s.Root, walker.Options{Extensions: exts, MaxFileSize: s.MaxFileSize})
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	var out []Match
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		block, ok := Extract(workspace.ReadText(f.Path), q, s.Lookback, s.FallbackLines)
		if !ok {
			continue
		}
		out = append(out, Match{Path: f.RelPath, Block: block})
	}
	return out, nil
}
