// Package search is the query façade. Each query takes exactly one path:
// an exact symbol scan when the query names a definition and the scan
// finds it, otherwise embedding similarity with snippets. The two result
// sets are never merged.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"diver/internal/config"
	"diver/internal/snippet"
	"diver/internal/store"
	"diver/internal/symbol"
)

// DefaultTopK is the number of similarity hits requested per query.
const DefaultTopK = 7

// overfetchFactor multiplies k when Options.Overfetch is set.
const overfetchFactor = 3

// SymbolScanner finds definitions by direct text scan.
type SymbolScanner interface {
	Scan(ctx context.Context, q symbol.Query, filter string) ([]symbol.Match, error)
}

// Retriever returns the nearest stored chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]store.Hit, error)
}

// Options tunes the similarity path.
type Options struct {
	TopK int
	// Overfetch requests TopK*3 hits when an extension filter is given and
	// truncates to TopK after filtering. Off by default: without it a
	// filtered-out hit still uses up one of the TopK slots.
	Overfetch bool
	Window    int
	MaxLen    int
}

// Result is one search hit. Distance is nil for exact symbol matches.
type Result struct {
	Source   string   `json:"source"`
	Snippet  string   `json:"snippet"`
	Distance *float64 `json:"distance,omitempty"`
}

// Exact reports whether the result came from the symbol scan.
func (r Result) Exact() bool { return r.Distance == nil }

// Engine dispatches queries to the scanner or the retriever.
type Engine struct {
	scanner   SymbolScanner
	retriever Retriever
	opts      Options
	logger    *slog.Logger
}

// New creates an Engine. Zero option fields take their defaults.
func New(sc SymbolScanner, rt Retriever, opts Options, logger *slog.Logger) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Window <= 0 {
		opts.Window = snippet.DefaultWindow
	}
	if opts.MaxLen <= 0 {
		opts.MaxLen = snippet.DefaultMaxLen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{scanner: sc, retriever: rt, opts: opts, logger: logger}
}

type mode int

const (
	modeSimilarity mode = iota
	modeSymbol
)

// route is the single place that picks a retrieval path for a query.
func route(query string) (mode, symbol.Query) {
	if q, ok := symbol.Detect(query); ok {
		return modeSymbol, q
	}
	return modeSimilarity, symbol.Query{}
}

// Normalize trims the query and drops a leading "in ".
func Normalize(query string) string {
	query = strings.TrimSpace(query)
	if len(query) > 3 && strings.EqualFold(query[:3], "in ") {
		query = strings.TrimSpace(query[3:])
	}
	return query
}

// Search runs query, optionally restricted to files ending in ext. No
// results is an empty slice, not an error. Embedder and store failures
// are returned.
func (e *Engine) Search(ctx context.Context, query, ext string) ([]Result, error) {
	query = Normalize(query)
	if query == "" {
		return nil, nil
	}
	ext = config.NormalizeExt(ext)

	if m, sq := route(query); m == modeSymbol {
		results, err := e.symbolSearch(ctx, sq, ext)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			return results, nil
		}
		e.logger.Debug("no symbol match, falling back to similarity", "symbol", sq.String())
	}
	return e.similaritySearch(ctx, query, ext)
}

func (e *Engine) symbolSearch(ctx context.Context, q symbol.Query, ext string) ([]Result, error) {
	matches, err := e.scanner.Scan(ctx, q, ext)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A failed scan is not fatal; the similarity path still runs.
		e.logger.Warn("symbol scan failed", "symbol", q.String(), "err", err)
		return nil, nil
	}
	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{Source: m.Path, Snippet: m.Block}
	}
	return results, nil
}

func (e *Engine) similaritySearch(ctx context.Context, query, ext string) ([]Result, error) {
	k := e.opts.TopK
	fetch := k
	if e.opts.Overfetch && ext != "" {
		fetch = k * overfetchFactor
	}

	hits, err := e.retriever.Retrieve(ctx, query, fetch)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if ext != "" && !strings.HasSuffix(strings.ToLower(h.Source), ext) {
			continue
		}
		d := h.Distance
		results = append(results, Result{
			Source:   h.Source,
			Snippet:  snippet.Extract(h.Text, query, e.opts.Window, e.opts.MaxLen),
			Distance: &d,
		})
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// FormatContext renders results as "File: <path>\n<snippet>" blocks
// separated by blank lines, in result order.
func FormatContext(results []Result) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("File: %s\n%s", r.Source, r.Snippet)
	}
	return strings.Join(blocks, "\n\n")
}
