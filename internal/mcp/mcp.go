// Package mcp implements the Model Context Protocol server for rentl.
//
// The MCP server exposes the operator surface of the pipeline through
// MCP resources, tools, and prompts, so MCP-compatible AI agents can
// watch runs and rule on pending approval decisions. It reads the same
// stores the orchestrator writes and can run beside a live pipeline or
// after the fact.
package mcp

import (
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/trevorWieland/rentl-sub001/internal/approval"
	"github.com/trevorWieland/rentl-sub001/internal/storage"
)

// Server wraps the MCP server with rentl's run and approval stores.
type Server struct {
	mcpServer *mcpserver.MCPServer
	store     storage.Store
	pending   approval.Store
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources,
// tools, and prompts. pending may be nil when the project runs a
// permissive approval policy; the approval tools then answer with an
// explanatory error instead of failing the session.
func New(store storage.Store, pending approval.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:   store,
		pending: pending,
		logger:  logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"rentl",
		"0.1.0",
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
