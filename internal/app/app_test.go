package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"diver/internal/config"
	"diver/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ollamaStub answers /api/embed with 4-d vectors derived from text length.
func ollamaStub(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req struct {
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make([][]float32, len(req.Input))
		for i, s := range req.Input {
			out[i] = []float32{float32(len(s)), 1, 0, 0}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, url string) config.Config {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/list.cpp": "struct Node {\n  int val;\n};\n",
		"src/util.py":  "def foo(x):\n    return x + 1\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := config.Default()
	cfg.Index.Root = root
	cfg.Ollama.URL = url
	cfg.Store.Backend = config.BackendMemory
	cfg.Store.Dimensions = 4
	return cfg
}

func TestApp_LazyResourcesAreMemoised(t *testing.T) {
	var requests atomic.Int32
	a := New(testConfig(t, ollamaStub(t, &requests).URL), logging.Discard())
	defer a.Close()
	ctx := context.Background()

	st1, err := a.Store(ctx)
	require.NoError(t, err)
	st2, err := a.Store(ctx)
	require.NoError(t, err)
	assert.Same(t, st1, st2)

	e1, err := a.Engine(ctx)
	require.NoError(t, err)
	e2, err := a.Engine(ctx)
	require.NoError(t, err)
	assert.Same(t, e1, e2)

	assert.Same(t, a.Chat(), a.Chat())
	assert.Same(t, a.Outliner(), a.Outliner())
	assert.Zero(t, requests.Load(), "construction makes no network calls")
}

func TestApp_EnsureIndexedRunsOnce(t *testing.T) {
	var requests atomic.Int32
	a := New(testConfig(t, ollamaStub(t, &requests).URL), logging.Discard())
	defer a.Close()
	ctx := context.Background()

	stats, ran, err := a.EnsureIndexed(ctx)
	require.NoError(t, err)
	require.True(t, ran)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 2, stats.ChunksTotal)

	_, ran, err = a.EnsureIndexed(ctx)
	require.NoError(t, err)
	assert.False(t, ran, "non-empty store is not re-indexed")
}

func TestApp_SearchBothPaths(t *testing.T) {
	var requests atomic.Int32
	a := New(testConfig(t, ollamaStub(t, &requests).URL), logging.Discard())
	defer a.Close()
	ctx := context.Background()

	_, _, err := a.EnsureIndexed(ctx)
	require.NoError(t, err)
	before := requests.Load()

	results, err := a.Search(ctx, "struct Node", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Exact())
	assert.Equal(t, "src/list.cpp", results[0].Source)
	assert.Equal(t, before, requests.Load(), "symbol path does not embed")

	results, err = a.Search(ctx, "what adds one", ".py")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "src/util.py", results[0].Source)
	assert.False(t, results[0].Exact())

	_, err = a.Search(ctx, "what adds one", ".py")
	require.NoError(t, err)
	assert.Equal(t, before+1, requests.Load(), "repeated query embedding is cached")
}

func TestApp_Retarget(t *testing.T) {
	var requests atomic.Int32
	a := New(testConfig(t, ollamaStub(t, &requests).URL), logging.Discard())
	defer a.Close()
	ctx := context.Background()

	st1, err := a.Store(ctx)
	require.NoError(t, err)

	other := t.TempDir()
	require.NoError(t, a.Retarget(other))
	assert.Equal(t, other, a.Root())

	st2, err := a.Store(ctx)
	require.NoError(t, err)
	assert.NotSame(t, st1, st2)

	assert.Error(t, a.Retarget(filepath.Join(other, "missing")))
}

func TestApp_SQLiteBackendCreatesIndexDir(t *testing.T) {
	var requests atomic.Int32
	cfg := testConfig(t, ollamaStub(t, &requests).URL)
	cfg.Store.Backend = config.BackendSQLite
	a := New(cfg, logging.Discard())
	defer a.Close()

	_, err := a.Store(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.Index.Root, ".diver", "index.db"))
}

func TestApp_StartServerDisabled(t *testing.T) {
	a := New(config.Default(), logging.Discard())
	assert.NoError(t, a.StartServer(context.Background()))
	assert.NoError(t, a.Close())
}

func TestApp_SetModels(t *testing.T) {
	a := New(config.Default(), logging.Discard())
	emb := a.Embedder()
	chat := a.Chat()

	a.SetModels("", "")
	assert.Same(t, emb, a.Embedder())
	assert.Same(t, chat, a.Chat())

	a.SetModels("mxbai-embed-large", "llama3")
	assert.Equal(t, "mxbai-embed-large", a.Embedder().Model())
	assert.Equal(t, "llama3", a.Chat().Model())
	assert.Equal(t, "mxbai-embed-large", a.Config().Ollama.EmbedModel)
}
