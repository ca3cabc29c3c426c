package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"diver/internal/chunker"
	"diver/internal/embedder"
	"diver/internal/store"
)

// DefaultBatchSize is the number of chunks embedded and stored per call.
const DefaultBatchSize = 32

// DefaultExtensions is used when no extension set is configured.
var DefaultExtensions = []string{".py", ".js", ".ts", ".cpp", ".java"}

// Stats reports indexing results.
type Stats struct {
	FilesTotal   int
	FilesIndexed int
	FilesSkipped int
	ChunksTotal  int
	Batches      int
	Elapsed      time.Duration
}

// ProgressFunc is called after every stored batch.
type ProgressFunc func(phase string, processed, total int)

// Indexer walks a tree, chunks files and writes embedded chunks to a store.
type Indexer struct {
	store       store.VectorStore
	embedder    embedder.Embedder
	lock        *store.Lock
	outliner    *chunker.Outliner
	logger      *slog.Logger
	onProgress  ProgressFunc
	batchSize   int
	chunkLines  int
	extensions  []string
	maxFileSize int64
	rebuild     bool
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithBatchSize sets how many chunks share one embed and one upsert call.
func WithBatchSize(n int) Option { return func(ix *Indexer) { ix.batchSize = n } }

// WithChunkLines sets the chunk window in lines.
func WithChunkLines(n int) Option { return func(ix *Indexer) { ix.chunkLines = n } }

// WithExtensions restricts indexing to the given suffixes.
func WithExtensions(exts []string) Option { return func(ix *Indexer) { ix.extensions = exts } }

// WithMaxFileSize skips files larger than n bytes.
func WithMaxFileSize(n int64) Option { return func(ix *Indexer) { ix.maxFileSize = n } }

// WithRebuild clears the store before indexing.
func WithRebuild(b bool) Option { return func(ix *Indexer) { ix.rebuild = b } }

// WithLock guards Index with a cross-process lock.
func WithLock(l *store.Lock) Option { return func(ix *Indexer) { ix.lock = l } }

// WithOutliner logs the definitions found in each file at debug level.
func WithOutliner(o *chunker.Outliner) Option { return func(ix *Indexer) { ix.outliner = o } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(ix *Indexer) { ix.logger = l } }

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option { return func(ix *Indexer) { ix.onProgress = fn } }

// New creates an Indexer writing to st with vectors from emb.
func New(st store.VectorStore, emb embedder.Embedder, opts ...Option) *Indexer {
	ix := &Indexer{
		store:      st,
		embedder:   emb,
		lock:       store.NewLock(""),
		logger:     slog.Default(),
		batchSize:  DefaultBatchSize,
		chunkLines: chunker.DefaultLines,
		extensions: DefaultExtensions,
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.batchSize <= 0 {
		ix.batchSize = DefaultBatchSize
	}
	return ix
}

// Index indexes every matching file under root. The store is reset first
// when rebuilding or when it was built with a different embedding model.
// Entries of files deleted since an earlier non-rebuild run are kept.
func (ix *Indexer) Index(ctx context.Context, root string) (*Stats, error) {
	if err := ix.lock.TryLock(); err != nil {
		return nil, err
	}
	defer ix.lock.Unlock()

	start := time.Now()
	model := ix.embedder.Model()

	lastModel, err := ix.store.GetMeta(ctx, store.MetaEmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("get meta: %w", err)
	}
	switch {
	case ix.rebuild:
		ix.logger.Debug("rebuilding index", "root", root)
		if err := ix.store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset store: %w", err)
		}
	case lastModel != "" && lastModel != model:
		ix.logger.Warn("embedding model changed, re-indexing all files", "from", lastModel, "to", model)
		if err := ix.store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset store: %w", err)
		}
	}

	stats, err := ix.runPipeline(ctx, root)
	if stats != nil {
		stats.Elapsed = time.Since(start)
	}
	if err != nil {
		return stats, err
	}

	if err := ix.store.SetMeta(ctx, store.MetaEmbeddingModel, model); err != nil {
		return stats, fmt.Errorf("set meta: %w", err)
	}

	ix.logger.Info("index complete",
		"files", stats.FilesTotal,
		"chunks", stats.ChunksTotal,
		"batches", stats.Batches,
		"elapsed", stats.Elapsed.Round(time.Millisecond),
	)
	return stats, nil
}
