// Package app wires configuration into the long-lived resources every
// command needs. Each resource is built on first use and kept for the
// life of the process; Close releases them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"diver/internal/chunker"
	"diver/internal/chunker/languages"
	"diver/internal/config"
	"diver/internal/embedder"
	"diver/internal/index"
	"diver/internal/llm"
	"diver/internal/retriever"
	"diver/internal/search"
	"diver/internal/store"
	"diver/internal/symbol"
)

// App holds lazily constructed resources for one index root.
type App struct {
	logger *slog.Logger

	mu       sync.Mutex
	cfg      config.Config
	st       store.VectorStore
	emb      embedder.Embedder
	cached   *embedder.CachedEmbedder
	chat     *llm.OllamaChat
	outliner *chunker.Outliner
	engine   *search.Engine
	server   *llm.Server
}

// New creates an App. Nothing is opened until first needed.
func New(cfg config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}
}

// Config returns the active configuration.
func (a *App) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Root returns the absolute index root.
func (a *App) Root() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return absRoot(a.cfg.Index.Root)
}

func absRoot(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}

// Store opens the configured vector store on first call.
func (a *App) Store(ctx context.Context) (store.VectorStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.storeLocked(ctx)
}

func (a *App) storeLocked(ctx context.Context) (store.VectorStore, error) {
	if a.st != nil {
		return a.st, nil
	}
	dims := a.cfg.Store.Dimensions
	switch a.cfg.Store.Backend {
	case config.BackendMemory:
		a.st = store.NewMemoryStore(dims)
	default:
		path := a.cfg.DBPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		st, err := store.OpenSQLite(ctx, path, dims)
		if err != nil {
			return nil, fmt.Errorf("open store %s: %w", path, err)
		}
		a.st = st
	}
	a.logger.Debug("store opened", "backend", a.cfg.Store.Backend)
	return a.st, nil
}

// Embedder returns the index-time embedder.
func (a *App) Embedder() embedder.Embedder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.embedderLocked()
}

func (a *App) embedderLocked() embedder.Embedder {
	if a.emb == nil {
		var opts []embedder.OllamaOption
		if ka := a.cfg.Ollama.KeepAlive; ka > 0 {
			opts = append(opts, embedder.WithKeepAlive(ka))
		}
		a.emb = embedder.NewOllamaEmbedder(a.cfg.Ollama.URL, a.cfg.Ollama.EmbedModel, opts...)
	}
	return a.emb
}

// queryEmbedderLocked wraps the embedder in an LRU cache for repeated queries.
func (a *App) queryEmbedderLocked() embedder.Embedder {
	if a.cfg.Embedding.CacheSize <= 0 {
		return a.embedderLocked()
	}
	if a.cached == nil {
		a.cached = embedder.NewCachedEmbedder(a.embedderLocked(), a.cfg.Embedding.CacheSize)
	}
	return a.cached
}

// Chat returns the chat client.
func (a *App) Chat() *llm.OllamaChat {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.chat == nil {
		oc := a.cfg.Ollama
		var opts []llm.ChatOption
		if oc.Temperature != nil {
			opts = append(opts, llm.WithTemperature(*oc.Temperature))
		}
		if oc.ContextWindow > 0 {
			opts = append(opts, llm.WithContextWindow(oc.ContextWindow))
		}
		a.chat = llm.NewOllamaChat(oc.URL, oc.ChatModel, opts...)
	}
	return a.chat
}

// Outliner returns the tree-sitter outliner for all built-in languages.
func (a *App) Outliner() *chunker.Outliner {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outlinerLocked()
}

func (a *App) outlinerLocked() *chunker.Outliner {
	if a.outliner == nil {
		a.outliner = chunker.NewOutliner(languages.NewRegistry())
	}
	return a.outliner
}

// Engine returns the hybrid search engine.
func (a *App) Engine(ctx context.Context) (*search.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine != nil {
		return a.engine, nil
	}
	st, err := a.storeLocked(ctx)
	if err != nil {
		return nil, err
	}
	sc := a.cfg.Search
	scanner := symbol.NewScanner(absRoot(a.cfg.Index.Root), a.cfg.Index.Extensions)
	scanner.Lookback = sc.ScanLookback
	scanner.FallbackLines = sc.ScanFallbackLines
	scanner.MaxFileSize = a.cfg.Index.MaxFileSize

	a.engine = search.New(scanner, retriever.New(st, a.queryEmbedderLocked()), search.Options{
		TopK:      sc.TopK,
		Overfetch: sc.Overfetch,
		Window:    sc.SnippetWindow,
		MaxLen:    sc.SnippetMaxLen,
	}, a.logger)
	return a.engine, nil
}

// Search runs query through the engine.
func (a *App) Search(ctx context.Context, query, ext string) ([]search.Result, error) {
	eng, err := a.Engine(ctx)
	if err != nil {
		return nil, err
	}
	return eng.Search(ctx, query, ext)
}

// Indexer builds an indexer from the configuration; opts override it.
func (a *App) Indexer(ctx context.Context, opts ...index.Option) (*index.Indexer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, err := a.storeLocked(ctx)
	if err != nil {
		return nil, err
	}
	lockPath := ""
	if a.cfg.Store.Backend != config.BackendMemory {
		lockPath = a.cfg.DBPath()
	}
	ic := a.cfg.Index
	base := []index.Option{
		index.WithBatchSize(ic.BatchSize),
		index.WithChunkLines(ic.ChunkLines),
		index.WithExtensions(ic.Extensions),
		index.WithMaxFileSize(ic.MaxFileSize),
		index.WithRebuild(ic.Rebuild),
		index.WithLock(store.NewLock(lockPath)),
		index.WithOutliner(a.outlinerLocked()),
		index.WithLogger(a.logger),
	}
	return index.New(st, a.embedderLocked(), append(base, opts...)...), nil
}

// Index indexes the root with the configured settings.
func (a *App) Index(ctx context.Context, opts ...index.Option) (*index.Stats, error) {
	ix, err := a.Indexer(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return ix.Index(ctx, a.Root())
}

// EnsureIndexed indexes the root when the store is empty. It reports
// whether an index pass ran.
func (a *App) EnsureIndexed(ctx context.Context, opts ...index.Option) (*index.Stats, bool, error) {
	st, err := a.Store(ctx)
	if err != nil {
		return nil, false, err
	}
	n, err := st.Count(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("count entries: %w", err)
	}
	if n > 0 {
		return nil, false, nil
	}
	a.logger.Info("index is empty, indexing", "root", a.Root())
	stats, err := a.Index(ctx, opts...)
	return stats, true, err
}

// Retarget switches to a new index root. Resources tied to the old root
// are closed and rebuilt on next use.
func (a *App) Retarget(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.closeStoreLocked()
	a.cfg.Index.Root = absRoot(root)
	return err
}

// SetModels switches the embedding and chat models. Empty names keep the
// current ones. The store is kept; the next index run resets it if the
// embedding model changed.
func (a *App) SetModels(embed, chat string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if embed != "" && embed != a.cfg.Ollama.EmbedModel {
		a.cfg.Ollama.EmbedModel = embed
		a.emb, a.cached, a.engine = nil, nil, nil
	}
	if chat != "" && chat != a.cfg.Ollama.ChatModel {
		a.cfg.Ollama.ChatModel = chat
		a.chat = nil
	}
}

// StartServer launches `ollama serve` when configured to.
func (a *App) StartServer(ctx context.Context) error {
	a.mu.Lock()
	if !a.cfg.Ollama.Serve {
		a.mu.Unlock()
		return nil
	}
	if a.server == nil {
		a.server = llm.NewServer(a.cfg.Ollama.URL, a.cfg.Ollama.StartupTimeout, a.logger)
	}
	srv := a.server
	a.mu.Unlock()
	return srv.Start(ctx)
}

func (a *App) closeStoreLocked() error {
	a.engine = nil
	if a.st == nil {
		return nil
	}
	err := a.st.Close()
	a.st = nil
	return err
}

// Close releases the store and stops a server started by StartServer.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	errs = append(errs, a.closeStoreLocked())
	if a.server != nil {
		errs = append(errs, a.server.Stop())
	}
	return errors.Join(errs...)
}
