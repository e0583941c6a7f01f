package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"leakctl/internal/status"
	"leakctl/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing read-only index status tools",
	RunE:  runMCP,
}

// indexSource is what the MCP tools read from the cluster.
type indexSource interface {
	status.Source
	ListIndices(ctx context.Context, pattern string) ([]string, error)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol; diagnostics stay on stderr.
	cfg, client, err := connect()
	if err != nil {
		return err
	}

	var ledger store.Store
	if st := openLedger(cfg); st != nil {
		defer st.Close()
		ledger = st
	}

	s := mcpserver.NewMCPServer("leakctl", "1.0.0", mcpserver.WithToolCapabilities(false))

	opts := status.Options{Alias: cfg.Alias, Pattern: cfg.IndexPattern()}
	s.AddTool(indexStatusTool(), makeIndexStatusHandler(client, opts))
	s.AddTool(fileStatsTool(), makeFileStatsHandler(client, cfg.IndexPattern()))
	s.AddTool(ingestHistoryTool(), makeHistoryHandler(ledger))

	slog.Info("mcp server starting", "alias", cfg.Alias, "url", cfg.Elasticsearch.URL)
	fmt.Fprintln(os.Stderr, "leakctl mcp: serving on stdio")
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

func indexStatusTool() mcp.Tool {
	return mcp.NewTool("index_status",
		mcp.WithDescription("Report ILM phase, age, days until deletion, write flag and size for every backing index of the rollover alias, plus total disk usage and empty indices."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func fileStatsTool() mcp.Tool {
	return mcp.NewTool("file_stats",
		mcp.WithDescription("Count indexed documents per source file name, for one backing index or all of them."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("index",
			mcp.Description("Backing index name, e.g. leaks-000001. Omit for every backing index."),
		),
		mcp.WithNumber("size",
			mcp.Description("Maximum number of files per index (default 100)"),
		),
	)
}

func ingestHistoryTool() mcp.Tool {
	return mcp.NewTool("ingest_history",
		mcp.WithDescription("List recent ingest runs recorded by this machine: file, alias, status, documents and errors."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return (default 20)"),
		),
	)
}

// --- Handler factories ---

func makeIndexStatusHandler(src status.Source, opts status.Options) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		report, err := status.Build(ctx, src, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
		}
		return mcp.NewToolResultText(report.IndexMarkdown() + "\n" + report.DiskMarkdown()), nil
	}
}

func makeFileStatsHandler(src indexSource, pattern string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		size := req.GetInt("size", 100)
		if size <= 0 {
			size = 100
		}

		indices := []string{req.GetString("index", "")}
		if indices[0] == "" {
			var err error
			indices, err = src.ListIndices(ctx, pattern)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("list indices failed: %v", err)), nil
			}
		}

		report := &status.Report{Pattern: pattern}
		for _, name := range indices {
			counts, err := src.FileCounts(ctx, name, size)
			if err != nil {
				report.Files = append(report.Files, status.IndexFiles{Index: name, Err: err})
				continue
			}
			if len(counts) > 0 {
				report.Files = append(report.Files, status.IndexFiles{Index: name, Files: counts})
			}
		}
		return mcp.NewToolResultText(report.FilesMarkdown()), nil
	}
}

func makeHistoryHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if st == nil {
			return mcp.NewToolResultText("The ingest ledger is not available on this machine."), nil
		}
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		runs, err := st.Recent(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read ledger failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatRuns(runs)), nil
	}
}

// --- Formatting helpers ---

func formatRuns(runs []store.Run) string {
	if len(runs) == 0 {
		return "No ingest runs recorded yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Ingest runs (%d)\n\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(&sb, "- **%s** → `%s` (%s): %d documents in %d batches, started %s UTC",
			r.FileName, r.Alias, r.Status, r.Documents, r.Batches, r.StartedAt.Format("2006-01-02 15:04:05"))
		if d := r.Duration(); d > 0 {
			fmt.Fprintf(&sb, ", took %s", d.Round(time.Millisecond))
		}
		if r.Error != "" {
			fmt.Fprintf(&sb, "\n  - error: %s", r.Error)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
