package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"fastsearch/internal/catalog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing file search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		return fmt.Errorf("catalog not found at %s\nRun 'fastsearch serve' first to build the index", cfg.DBPath)
	}

	cat, err := catalog.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	s := mcpserver.NewMCPServer("fastsearch", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchFilesTool(), makeSearchFilesHandler(cat))
	s.AddTool(indexStatusTool(), makeIndexStatusHandler(cat, cfg.Roots))

	return mcpserver.ServeStdio(s)
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

func searchFilesTool() mcp.Tool {
	return mcp.NewTool("search_files",
		mcp.WithDescription("Search the file catalog by filename substring and/or full-text content. Returns matching paths with metadata and facet counts."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text; tokens become prefix terms in content mode"),
		),
		mcp.WithString("mode",
			mcp.Description("One of: filename, content, all (default all)"),
		),
		mcp.WithString("filetype",
			mcp.Description("Optional filetype facet filter, e.g. 'Document' or 'PDF'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum rows to return (default 20)"),
		),
	)
}

func indexStatusTool() mcp.Tool {
	return mcp.NewTool("index_status",
		mcp.WithDescription("Report indexed document counts and scan completion for the configured watch roots."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

// --- Handler factories ---

func makeSearchFilesHandler(cat *catalog.Catalog) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := req.GetString("query", "")
		if q == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		mode := catalog.Mode(req.GetString("mode", string(catalog.ModeAll)))
		switch mode {
		case catalog.ModeFilename, catalog.ModeContent, catalog.ModeAll:
		default:
			return mcp.NewToolResultError(fmt.Sprintf("invalid mode %q", mode)), nil
		}
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		var filters catalog.Filters
		if ft := req.GetString("filetype", ""); ft != "" {
			filters.Filetypes = []string{ft}
		}

		rows, facets, err := cat.Search(q, filters, limit, mode)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSearchResults(q, rows, facets)), nil
	}
}

func makeIndexStatusHandler(cat *catalog.Catalog, roots []string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var sb strings.Builder
		total, err := cat.CountDocuments(roots)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("count failed: %v", err)), nil
		}
		fmt.Fprintf(&sb, "## Index status (%d documents)\n\n", total)
		for _, root := range roots {
			complete, err := cat.IsInitialScanComplete(root)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("scan state failed: %v", err)), nil
			}
			state := "scanning"
			if complete {
				state = "complete"
			}
			fmt.Fprintf(&sb, "- **%s**: initial scan %s\n", root, state)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, rows []catalog.Result, facets catalog.FacetCounts) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d rows)\n\n", query, len(rows))
	for _, r := range rows {
		mt := time.Unix(0, r.MtimeNS).Format("2006-01-02")
		fmt.Fprintf(&sb, "- `%s` (%s, %d bytes, modified %s)\n", r.Path, r.Filetype, r.SizeBytes, mt)
	}
	if counts := facets["filetype"]; len(counts) > 0 {
		sb.WriteString("\n**Filetype facets:** ")
		first := true
		for k, n := range counts {
			if !first {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s %d", k, n)
			first = false
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
