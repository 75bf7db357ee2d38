package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/trevorWieland/rentl-sub001/internal/approval"
	"github.com/trevorWieland/rentl-sub001/internal/config"
	"github.com/trevorWieland/rentl-sub001/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP operator surface over stdio",
	Long: `Serve rentl's Model Context Protocol surface on stdin/stdout so
MCP clients can watch runs and rule on pending approvals. The server
reads the same stores the pipeline writes; it needs no project file
and can run beside a live pipeline.

Logs go to stderr; stdout carries the MCP protocol.

Examples:
  # Register with an MCP client
  rentl mcp`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, release, err := openRunStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	pending, err := approval.NewFSStore(cfg.PendingDir)
	if err != nil {
		return err
	}

	srv := mcp.New(store, pending, slog.Default())
	slog.Info("mcp server listening on stdio", "version", version)

	err = mcpserver.NewStdioServer(srv.MCPServer()).Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("mcp server stopped")
	return nil
}
