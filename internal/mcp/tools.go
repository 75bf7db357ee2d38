package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/trevorWieland/rentl-sub001/internal/approval"
	"github.com/trevorWieland/rentl-sub001/internal/storage"
)

func (s *Server) registerTools() {
	// rentl_run_status — inspect a run's phase-by-phase progress.
	s.mcpServer.AddTool(
		mcplib.NewTool("rentl_run_status",
			mcplib.WithDescription(`Check the status and progress of a localization pipeline run.

WHEN TO USE: To see how far a run has gotten, whether it is paused on
approvals, and which phase it is in. Call this FIRST when asked about a
run — the note in the response tells you whether anything needs action.

WHAT YOU GET BACK:
- run_id, project, status: pending, running, awaiting_approval, completed, or failed
- current_phase: the phase the run is executing or paused in (absent once completed)
- percent_complete and percent_mode: how far along, and how much to trust the number
- phases: per-phase status and progress
- note: a one-line reading of the run's situation, including what to do next

EXAMPLE: Call with no arguments to check the most recent run, or pass
run_id to check a specific one.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("run_id",
				mcplib.Description("Run to inspect. Defaults to the most recent run when omitted."),
			),
		),
		s.handleRunStatus,
	)

	// rentl_list_pending_approvals — list gated mutations awaiting a verdict.
	s.mcpServer.AddTool(
		mcplib.NewTool("rentl_list_pending_approvals",
			mcplib.WithDescription(`List approval decisions that are blocking pipeline runs.

A run pauses when an agent proposes overwriting a value a human wrote,
or any other mutation the project's approval policy gates. Each pending
decision shows the current value, its origin, and what the agent wants
to write instead.

WHEN TO USE: When a run's status is awaiting_approval, or when asked
what needs human review. Review each decision's current and proposed
values before resolving.

WHAT YOU GET BACK:
- decisions: oldest first, each with id, run_id, phase, operation,
  line_id, current_value/current_origin, proposed_value/proposed_origin
- total: how many are waiting

EXAMPLE: Call with no arguments to see every pending decision, or pass
run_id to scope to one run.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("run_id",
				mcplib.Description("Only list decisions for this run. Lists across all runs when omitted."),
			),
		),
		s.handleListPendingApprovals,
	)

	// rentl_resolve_approval — rule on one pending decision.
	s.mcpServer.AddTool(
		mcplib.NewTool("rentl_resolve_approval",
			mcplib.WithDescription(`Approve or reject one pending approval decision.

IMPORTANT: Call rentl_list_pending_approvals FIRST and read the decision's
current and proposed values. Approving replaces a value a human wrote;
rejecting keeps it. Resolving is final — a decision cannot be re-ruled.

WHEN TO USE: After reviewing a pending decision and reaching a verdict.
The paused run does not continue by itself: resume it afterwards (rentl
resume on the command line, or the run's configured in-process waiter
picks the verdict up automatically).

WHAT YOU GET BACK:
- the resolved decision with resolution, resolved_by, and resolved_at set

EXAMPLE: resolution="rejected", resolved_by="mika",
note="original line is the official marketing translation" keeps the
human translation and records why.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("decision_id",
				mcplib.Description("The pending decision to resolve, from rentl_list_pending_approvals"),
				mcplib.Required(),
			),
			mcplib.WithString("resolution",
				mcplib.Description("The verdict: \"approved\" applies the proposed value, \"rejected\" keeps the current one"),
				mcplib.Required(),
			),
			mcplib.WithString("resolved_by",
				mcplib.Description("Who is ruling on this decision — a reviewer name or handle for the audit trail"),
				mcplib.Required(),
			),
			mcplib.WithString("note",
				mcplib.Description("Optional rationale recorded with the verdict"),
			),
		),
		s.handleResolveApproval,
	)
}

func (s *Server) handleRunStatus(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	rawID := request.GetString("run_id", "")

	var runID uuid.UUID
	if rawID == "" {
		index, err := s.store.ListRunIndex(ctx)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to list runs: %v", err)), nil
		}
		if len(index) == 0 {
			return errorResult("no runs recorded yet"), nil
		}
		runID = index[0].RunID
	} else {
		var err error
		runID, err = uuid.Parse(rawID)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid run_id %q: %v", rawID, err)), nil
		}
	}

	state, err := s.store.LoadRunState(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errorResult(fmt.Sprintf("run %s not found", runID)), nil
		}
		return errorResult(fmt.Sprintf("failed to load run %s: %v", runID, err)), nil
	}

	m := compactRun(state)
	if note := runStatusNote(state); note != "" {
		m["note"] = note
	}

	resultData, _ := json.MarshalIndent(m, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleListPendingApprovals(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if s.pending == nil {
		return errorResult("no pending-decision store is configured; this deployment runs a permissive approval policy"), nil
	}

	runID := uuid.Nil
	if rawID := request.GetString("run_id", ""); rawID != "" {
		var err error
		runID, err = uuid.Parse(rawID)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid run_id %q: %v", rawID, err)), nil
		}
	}

	decisions, err := s.pending.ListPending(ctx, runID)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list pending decisions: %v", err)), nil
	}

	compact := make([]map[string]any, 0, len(decisions))
	for _, d := range decisions {
		compact = append(compact, compactPendingDecision(d))
	}

	resultData, _ := json.MarshalIndent(map[string]any{
		"decisions": compact,
		"total":     len(compact),
	}, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleResolveApproval(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if s.pending == nil {
		return errorResult("no pending-decision store is configured; this deployment runs a permissive approval policy"), nil
	}

	rawID := request.GetString("decision_id", "")
	resolution := approval.Resolution(request.GetString("resolution", ""))
	resolvedBy := request.GetString("resolved_by", "")
	note := request.GetString("note", "")

	if rawID == "" || resolution == "" || resolvedBy == "" {
		return errorResult("decision_id, resolution, and resolved_by are required"), nil
	}
	decisionID, err := uuid.Parse(rawID)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid decision_id %q: %v", rawID, err)), nil
	}
	if !resolution.Valid() {
		return errorResult(fmt.Sprintf("invalid resolution %q: must be \"approved\" or \"rejected\"", resolution)), nil
	}

	resolved, err := s.pending.Resolve(ctx, decisionID, resolution, resolvedBy, note)
	if err != nil {
		switch {
		case errors.Is(err, approval.ErrNotFound):
			return errorResult(fmt.Sprintf("decision %s not found", decisionID)), nil
		case errors.Is(err, approval.ErrResolved):
			return errorResult(fmt.Sprintf("decision %s is already resolved", decisionID)), nil
		default:
			return errorResult(fmt.Sprintf("failed to resolve decision: %v", err)), nil
		}
	}

	s.logger.Info("mcp: approval resolved",
		"decision_id", resolved.ID,
		"run_id", resolved.RunID,
		"resolution", resolved.Resolution,
		"resolved_by", resolved.ResolvedBy,
	)

	m := compactPendingDecision(*resolved)
	m["status"] = "resolved"
	resultData, _ := json.MarshalIndent(m, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}
