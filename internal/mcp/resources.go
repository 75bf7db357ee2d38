package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// rentl://runs — the run index, newest first.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"rentl://runs",
			"Pipeline Runs",
			mcplib.WithResourceDescription("All known pipeline runs, newest first"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRunsList,
	)

	// rentl://approvals/pending — unresolved approval decisions across runs.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"rentl://approvals/pending",
			"Pending Approvals",
			mcplib.WithResourceDescription("Unresolved approval decisions across all runs, oldest first"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handlePendingApprovals,
	)

	// rentl://runs/{id}/progress — per-phase progress for one run.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"rentl://runs/{id}/progress",
			"Run Progress",
			mcplib.WithTemplateDescription("Phase-by-phase progress for a specific run"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleRunProgress,
	)
}

func (s *Server) handleRunsList(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	index, err := s.store.ListRunIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: list runs: %w", err)
	}

	data, err := json.MarshalIndent(map[string]any{
		"runs":  index,
		"total": len(index),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal runs: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "rentl://runs",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handlePendingApprovals(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.pending == nil {
		return nil, fmt.Errorf("mcp: no pending-decision store configured")
	}

	decisions, err := s.pending.ListPending(ctx, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: list pending approvals: %w", err)
	}

	compact := make([]map[string]any, 0, len(decisions))
	for _, d := range decisions {
		compact = append(compact, compactPendingDecision(d))
	}

	data, err := json.MarshalIndent(map[string]any{
		"decisions": compact,
		"total":     len(compact),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal approvals: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "rentl://approvals/pending",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleRunProgress(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	runID, err := parseRunProgressURI(uri)
	if err != nil {
		return nil, fmt.Errorf("mcp: %w", err)
	}

	state, err := s.store.LoadRunState(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("mcp: load run %s: %w", runID, err)
	}

	data, err := json.MarshalIndent(compactRun(state), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal progress: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// parseRunProgressURI extracts the run ID from rentl://runs/{id}/progress.
func parseRunProgressURI(uri string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(uri, "rentl://runs/")
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid run progress URI: %s", uri)
	}
	raw, ok := strings.CutSuffix(rest, "/progress")
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid run progress URI: %s", uri)
	}
	if raw == "" {
		return uuid.Nil, fmt.Errorf("empty run ID in URI: %s", uri)
	}
	runID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid run ID %q in URI: %w", raw, err)
	}
	return runID, nil
}
