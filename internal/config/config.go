package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the project-level config file looked up in the working
// directory and in $HOME.
const FileName = ".diver.yaml"

// EnvPrefix prefixes every environment override, e.g. DIVER_OLLAMA_URL.
const EnvPrefix = "DIVER"

// Config is the complete diver configuration.
type Config struct {
	Ollama    OllamaConfig    `mapstructure:"ollama" yaml:"ollama"`
	Index     IndexConfig     `mapstructure:"index" yaml:"index"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Toolchain ToolchainConfig `mapstructure:"toolchain" yaml:"toolchain"`
}

// OllamaConfig locates the local inference server.
type OllamaConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	EmbedModel     string        `mapstructure:"embed_model" yaml:"embed_model"`
	ChatModel      string        `mapstructure:"chat_model" yaml:"chat_model"`
	Serve          bool          `mapstructure:"serve" yaml:"serve"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	// KeepAlive keeps the embedding model loaded between batches. Zero
	// leaves Ollama's default.
	KeepAlive time.Duration `mapstructure:"keep_alive" yaml:"keep_alive"`
	// Temperature and ContextWindow tune generation; unset means the
	// model's defaults.
	Temperature   *float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
	ContextWindow int      `mapstructure:"context_window" yaml:"context_window"`
}

// IndexConfig controls what gets indexed and how.
type IndexConfig struct {
	Root        string   `mapstructure:"root" yaml:"root"`
	Extensions  []string `mapstructure:"extensions" yaml:"extensions"`
	ChunkLines  int      `mapstructure:"chunk_lines" yaml:"chunk_lines"`
	BatchSize   int      `mapstructure:"batch_size" yaml:"batch_size"`
	Rebuild     bool     `mapstructure:"rebuild" yaml:"rebuild"`
	MaxFileSize int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
}

// SearchConfig tunes retrieval and snippet extraction.
type SearchConfig struct {
	TopK              int  `mapstructure:"top_k" yaml:"top_k"`
	Overfetch         bool `mapstructure:"overfetch" yaml:"overfetch"`
	SnippetWindow     int  `mapstructure:"snippet_window" yaml:"snippet_window"`
	SnippetMaxLen     int  `mapstructure:"snippet_max_len" yaml:"snippet_max_len"`
	ScanLookback      int  `mapstructure:"scan_lookback" yaml:"scan_lookback"`
	ScanFallbackLines int  `mapstructure:"scan_fallback_lines" yaml:"scan_fallback_lines"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	// Path is the SQLite database. Empty means <root>/.diver/index.db.
	Path       string `mapstructure:"path" yaml:"path"`
	Backend    string `mapstructure:"backend" yaml:"backend"`
	Dimensions int    `mapstructure:"dimensions" yaml:"dimensions"`
}

// EmbeddingConfig tunes the query embedding cache.
type EmbeddingConfig struct {
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// ToolchainConfig names the executables used by :run and :edit.
type ToolchainConfig struct {
	Python   string `mapstructure:"python" yaml:"python"`
	Node     string `mapstructure:"node" yaml:"node"`
	TSNode   string `mapstructure:"ts_node" yaml:"ts_node"`
	GCC      string `mapstructure:"gcc" yaml:"gcc"`
	GPP      string `mapstructure:"gpp" yaml:"gpp"`
	Rustc    string `mapstructure:"rustc" yaml:"rustc"`
	Go       string `mapstructure:"go" yaml:"go"`
	Javac    string `mapstructure:"javac" yaml:"javac"`
	Java     string `mapstructure:"java" yaml:"java"`
	BuildDir string `mapstructure:"build_dir" yaml:"build_dir"`
	Editor   string `mapstructure:"editor" yaml:"editor"`
}

// Backends accepted by StoreConfig.Backend.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Ollama: OllamaConfig{
			URL:            "http://localhost:11434",
			EmbedModel:     "nomic-embed-text",
			ChatModel:      "qwen3:8b",
			StartupTimeout: 30 * time.Second,
		},
		Index: IndexConfig{
			Root:        ".",
			Extensions:  []string{".py", ".js", ".ts", ".cpp", ".java", ".go", ".c", ".h", ".hpp"},
			ChunkLines:  512,
			BatchSize:   32,
			Rebuild:     true,
			MaxFileSize: 1 << 20,
		},
		Search: SearchConfig{
			TopK:              7,
			SnippetWindow:     120,
			SnippetMaxLen:     400,
			ScanLookback:      64,
			ScanFallbackLines: 40,
		},
		Store: StoreConfig{
			Backend:    BackendSQLite,
			Dimensions: 768,
		},
		Embedding: EmbeddingConfig{
			CacheSize: 1000,
		},
		Log: LogConfig{
			Level: "warn",
		},
		Toolchain: ToolchainConfig{
			Python:   "python3",
			Node:     "node",
			TSNode:   "ts-node",
			GCC:      "gcc",
			GPP:      "g++",
			Rustc:    "rustc",
			Go:       "go",
			Javac:    "javac",
			Java:     "java",
			BuildDir: "build",
			Editor:   "vim",
		},
	}
}

// NewViper returns a viper instance primed with defaults and env handling.
// Callers bind their flags onto it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("ollama.url", d.Ollama.URL)
	v.SetDefault("ollama.embed_model", d.Ollama.EmbedModel)
	v.SetDefault("ollama.chat_model", d.Ollama.ChatModel)
	v.SetDefault("ollama.serve", d.Ollama.Serve)
	v.SetDefault("ollama.startup_timeout", d.Ollama.StartupTimeout)
	v.SetDefault("ollama.keep_alive", d.Ollama.KeepAlive)
	v.SetDefault("ollama.context_window", d.Ollama.ContextWindow)

	v.SetDefault("index.root", d.Index.Root)
	v.SetDefault("index.extensions", d.Index.Extensions)
	v.SetDefault("index.chunk_lines", d.Index.ChunkLines)
	v.SetDefault("index.batch_size", d.Index.BatchSize)
	v.SetDefault("index.rebuild", d.Index.Rebuild)
	v.SetDefault("index.max_file_size", d.Index.MaxFileSize)

	v.SetDefault("search.top_k", d.Search.TopK)
	v.SetDefault("search.overfetch", d.Search.Overfetch)
	v.SetDefault("search.snippet_window", d.Search.SnippetWindow)
	v.SetDefault("search.snippet_max_len", d.Search.SnippetMaxLen)
	v.SetDefault("search.scan_lookback", d.Search.ScanLookback)
	v.SetDefault("search.scan_fallback_lines", d.Search.ScanFallbackLines)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.dimensions", d.Store.Dimensions)

	v.SetDefault("embedding.cache_size", d.Embedding.CacheSize)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("toolchain.python", d.Toolchain.Python)
	v.SetDefault("toolchain.node", d.Toolchain.Node)
	v.SetDefault("toolchain.ts_node", d.Toolchain.TSNode)
	v.SetDefault("toolchain.gcc", d.Toolchain.GCC)
	v.SetDefault("toolchain.gpp", d.Toolchain.GPP)
	v.SetDefault("toolchain.rustc", d.Toolchain.Rustc)
	v.SetDefault("toolchain.go", d.Toolchain.Go)
	v.SetDefault("toolchain.javac", d.Toolchain.Javac)
	v.SetDefault("toolchain.java", d.Toolchain.Java)
	v.SetDefault("toolchain.build_dir", d.Toolchain.BuildDir)
	v.SetDefault("toolchain.editor", d.Toolchain.Editor)
}

// Load reads the config file (explicit path, or .diver.yaml in the working
// directory or $HOME), applies env and flag overrides already bound to v,
// and validates the result. A missing config file is not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Index.Extensions = NormalizeExts(cfg.Index.Extensions)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the core cannot work with.
func (c Config) Validate() error {
	switch {
	case c.Index.ChunkLines <= 0:
		return fmt.Errorf("index.chunk_lines must be positive, got %d", c.Index.ChunkLines)
	case c.Index.BatchSize <= 0:
		return fmt.Errorf("index.batch_size must be positive, got %d", c.Index.BatchSize)
	case c.Search.TopK <= 0:
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	case c.Store.Dimensions <= 0:
		return fmt.Errorf("store.dimensions must be positive, got %d", c.Store.Dimensions)
	case len(c.Index.Extensions) == 0:
		return errors.New("index.extensions must not be empty")
	}
	switch c.Store.Backend {
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown store.backend %q (want %q or %q)", c.Store.Backend, BackendSQLite, BackendMemory)
	}
	return nil
}

// DBPath resolves the SQLite database location.
func (c Config) DBPath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	root := c.Index.Root
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return filepath.Join(root, ".diver", "index.db")
}

// Save writes cfg as YAML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// NormalizeExt lower-cases an extension and ensures a leading dot, so
// "cpp", ".CPP" and ".cpp" compare equal. Empty input stays empty.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// NormalizeExts applies NormalizeExt and drops blanks and duplicates.
func NormalizeExts(exts []string) []string {
	seen := make(map[string]bool, len(exts))
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		n := NormalizeExt(e)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
