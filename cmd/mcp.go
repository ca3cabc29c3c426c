package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"diver/internal/app"
	"diver/internal/config"
	"diver/internal/search"
	"diver/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing codebase search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	if _, _, err := diver.EnsureIndexed(cmd.Context()); err != nil {
		return err
	}
	return mcpserver.ServeStdio(newMCPServer(diver))
}

func newMCPServer(a *app.App) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("diver", "1.0.0", mcpserver.WithToolCapabilities(false))
	s.AddTool(searchCodebaseTool(), makeSearchHandler(a))
	s.AddTool(indexStatusTool(), makeStatusHandler(a))
	s.AddTool(listIndexedFilesTool(), makeListFilesHandler(a))
	s.AddTool(outlineFileTool(), makeOutlineHandler(a))
	return s
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchCodebaseTool() mcp.Tool {
	return mcp.NewTool("search_codebase",
		mcp.WithDescription("Search the indexed codebase. Queries of the form \"struct Name\", \"class Name\" or \"def name\" return the exact definition; anything else returns the nearest chunks by embedding similarity, with a snippet around the query text."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Definition lookup or natural language query"),
		),
		mcp.WithString("ext",
			mcp.Description("Optional file extension filter, e.g. '.py' or 'cpp'"),
		),
	)
}

func indexStatusTool() mcp.Tool {
	return mcp.NewTool("index_status",
		mcp.WithDescription("Report the indexed root, chunk count and embedding model."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func listIndexedFilesTool() mcp.Tool {
	return mcp.NewTool("list_indexed_files",
		mcp.WithDescription("List all files in the index with their chunk counts."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("ext",
			mcp.Description("Optional file extension filter (e.g. '.go'). Case-insensitive."),
		),
	)
}

func outlineFileTool() mcp.Tool {
	return mcp.NewTool("outline_file",
		mcp.WithDescription("List the top-level definitions of a source file with their line ranges."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path relative to the indexed root"),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(a *app.App) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		results, err := a.Search(ctx, query, req.GetString("ext", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSearchResults(query, results)), nil
	}
}

func makeStatusHandler(a *app.App) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := a.Store(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("open index failed: %v", err)), nil
		}
		n, err := st.Count(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("count failed: %v", err)), nil
		}
		model, err := st.GetMeta(ctx, store.MetaEmbeddingModel)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read metadata failed: %v", err)), nil
		}
		if model == "" {
			model = "(none)"
		}
		cfg := a.Config()
		return mcp.NewToolResultText(fmt.Sprintf("**Root:** %s  \n**Backend:** %s  \n**Chunks:** %d  \n**Embedding model:** %s",
			a.Root(), cfg.Store.Backend, n, model)), nil
	}
}

func makeListFilesHandler(a *app.App) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ext := config.NormalizeExt(req.GetString("ext", ""))

		st, err := a.Store(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("open index failed: %v", err)), nil
		}
		files, err := st.Sources(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list files failed: %v", err)), nil
		}

		var filtered []store.SourceInfo
		for _, f := range files {
			if ext == "" || strings.ToLower(filepath.Ext(f.Source)) == ext {
				filtered = append(filtered, f)
			}
		}

		var sb strings.Builder
		if ext != "" {
			fmt.Fprintf(&sb, "## Indexed files (%d, extension: %s)\n\n", len(filtered), ext)
		} else {
			fmt.Fprintf(&sb, "## Indexed files (%d)\n\n", len(filtered))
		}
		for _, f := range filtered {
			fmt.Fprintf(&sb, "- **%s** (%d chunks)\n", f.Source, f.Chunks)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeOutlineHandler(a *app.App) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rel := req.GetString("path", "")
		if rel == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		path := filepath.Join(a.Root(), filepath.Clean("/"+rel))
		src, err := os.ReadFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read %s failed: %v", rel, err)), nil
		}
		symbols, err := a.Outliner().Outline(ctx, path, src)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("outline failed: %v", err)), nil
		}
		if len(symbols) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No definitions found in %s.", rel)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## %s (%d definitions)\n\n", rel, len(symbols))
		for _, s := range symbols {
			fmt.Fprintf(&sb, "- `%s` %s, lines %d–%d\n", s.Name, s.Kind, s.StartLine, s.EndLine)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, results []search.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d)\n\n", query, len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "### Result %d: `%s`", i+1, r.Source)
		if r.Exact() {
			sb.WriteString(" (exact definition)\n\n")
		} else {
			fmt.Fprintf(&sb, " (distance %.3f)\n\n", *r.Distance)
		}
		lang := strings.TrimPrefix(filepath.Ext(r.Source), ".")
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", lang, r.Snippet)
	}
	return sb.String()
}
