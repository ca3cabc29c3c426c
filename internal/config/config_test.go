package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 512, cfg.Index.ChunkLines)
	assert.Equal(t, 32, cfg.Index.BatchSize)
	assert.Equal(t, 7, cfg.Search.TopK)
	assert.False(t, cfg.Search.Overfetch)
	assert.Contains(t, cfg.Index.Extensions, ".cpp")
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diver.yaml")
	content := `
ollama:
  chat_model: llama3
  startup_timeout: 5s
index:
  extensions: [py, ".RS"]
  batch_size: 8
search:
  top_k: 3
store:
  backend: memory
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "llama3", cfg.Ollama.ChatModel)
	assert.Equal(t, 5*time.Second, cfg.Ollama.StartupTimeout)
	assert.Equal(t, []string{".py", ".rs"}, cfg.Index.Extensions)
	assert.Equal(t, 8, cfg.Index.BatchSize)
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	// Untouched keys keep their defaults.
	assert.Equal(t, "nomic-embed-text", cfg.Ollama.EmbedModel)
	assert.Equal(t, 512, cfg.Index.ChunkLines)
}

func TestLoad_GenerationSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diver.yaml")
	content := "ollama:\n  temperature: 0.3\n  keep_alive: 10m\n  context_window: 4096\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Ollama.Temperature)
	assert.Equal(t, 0.3, *cfg.Ollama.Temperature)
	assert.Equal(t, 10*time.Minute, cfg.Ollama.KeepAlive)
	assert.Equal(t, 4096, cfg.Ollama.ContextWindow)

	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	cfg, err = Load(NewViper(), "")
	require.NoError(t, err)
	assert.Nil(t, cfg.Ollama.Temperature, "unset temperature leaves the model default")
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  top_k: 3\n"), 0o644))
	t.Setenv("DIVER_SEARCH_TOP_K", "11")
	t.Setenv("DIVER_OLLAMA_URL", "http://gpu-box:11434")

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, 11, cfg.Search.TopK)
	assert.Equal(t, "http://gpu-box:11434", cfg.Ollama.URL)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: chroma\n"), 0o644))

	_, err := Load(NewViper(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chroma")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk lines", func(c *Config) { c.Index.ChunkLines = 0 }},
		{"zero batch size", func(c *Config) { c.Index.BatchSize = 0 }},
		{"zero top k", func(c *Config) { c.Search.TopK = 0 }},
		{"zero dimensions", func(c *Config) { c.Store.Dimensions = 0 }},
		{"no extensions", func(c *Config) { c.Index.Extensions = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSave_RoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := Default()
	cfg.Search.TopK = 4
	cfg.Ollama.ChatModel = "mistral"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Search.TopK)
	assert.Equal(t, "mistral", loaded.Ollama.ChatModel)
}

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, ".cpp", NormalizeExt("cpp"))
	assert.Equal(t, ".cpp", NormalizeExt(".CPP"))
	assert.Equal(t, ".py", NormalizeExt(" py "))
	assert.Equal(t, "", NormalizeExt(""))
	assert.Equal(t, []string{".go", ".py"}, NormalizeExts([]string{"go", ".GO", "", "py"}))
}

func TestDBPath(t *testing.T) {
	cfg := Default()
	cfg.Store.Path = "/tmp/x.db"
	assert.Equal(t, "/tmp/x.db", cfg.DBPath())

	cfg.Store.Path = ""
	cfg.Index.Root = "/srv/project"
	assert.Equal(t, filepath.Join("/srv/project", ".diver", "index.db"), cfg.DBPath())
}
