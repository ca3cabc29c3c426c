package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"diver/internal/app"
	"diver/internal/config"
	"diver/internal/logging"
	"diver/internal/search"
	"diver/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T) *app.App {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n\nfunc helper() int { return 1 }\n"), 0o644))

	cfg := config.Default()
	cfg.Index.Root = root
	cfg.Store.Backend = config.BackendMemory
	cfg.Store.Dimensions = 2
	a := app.New(cfg, logging.Discard())
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	st, err := a.Store(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Upsert(ctx, []store.Entry{
		{ID: "1", Source: "main.go", Text: "package main", Vector: []float32{1, 0}},
		{ID: "2", Source: "lib/util.py", Seq: 0, Text: "def f(): pass", Vector: []float32{0, 1}},
		{ID: "3", Source: "lib/util.py", Seq: 1, Text: "def g(): pass", Vector: []float32{0, 1}},
	}))
	require.NoError(t, st.SetMeta(ctx, store.MetaEmbeddingModel, cfg.Ollama.EmbedModel))
	return a
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestMCP_IndexStatus(t *testing.T) {
	a := testApp(t)
	text, isErr := callTool(t, makeStatusHandler(a), nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "**Chunks:** 3")
	assert.Contains(t, text, "nomic-embed-text")
	assert.Contains(t, text, a.Root())
}

func TestMCP_ListIndexedFiles(t *testing.T) {
	a := testApp(t)

	text, isErr := callTool(t, makeListFilesHandler(a), nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "Indexed files (2)")
	assert.Contains(t, text, "**lib/util.py** (2 chunks)")

	text, _ = callTool(t, makeListFilesHandler(a), map[string]any{"ext": "GO"})
	assert.Contains(t, text, "extension: .go")
	assert.Contains(t, text, "main.go")
	assert.NotContains(t, text, "util.py")
}

func TestMCP_OutlineFile(t *testing.T) {
	a := testApp(t)

	text, isErr := callTool(t, makeOutlineHandler(a), map[string]any{"path": "main.go"})
	assert.False(t, isErr)
	assert.Contains(t, text, "`main`")
	assert.Contains(t, text, "`helper`")

	_, isErr = callTool(t, makeOutlineHandler(a), map[string]any{"path": "missing.go"})
	assert.True(t, isErr)

	_, isErr = callTool(t, makeOutlineHandler(a), nil)
	assert.True(t, isErr)
}

func TestMCP_SearchRequiresQuery(t *testing.T) {
	text, isErr := callTool(t, makeSearchHandler(testApp(t)), map[string]any{"query": "  "})
	assert.True(t, isErr)
	assert.Equal(t, "query is required", text)
}

func TestFormatSearchResults(t *testing.T) {
	assert.Equal(t, `No results found for query: "x"`, formatSearchResults("x", nil))

	d := 0.25
	out := formatSearchResults("class Node", []search.Result{
		{Source: "list.py", Snippet: "class Node:\n    pass"},
		{Source: "tree.cpp", Snippet: "struct Tree {}", Distance: &d},
	})
	assert.Contains(t, out, "### Result 1: `list.py` (exact definition)")
	assert.Contains(t, out, "```py\nclass Node:\n    pass\n```")
	assert.Contains(t, out, "### Result 2: `tree.cpp` (distance 0.250)")
}
