package mcp

import (
	"fmt"
	"time"

	"github.com/trevorWieland/rentl-sub001/internal/approval"
	"github.com/trevorWieland/rentl-sub001/internal/model"
)

const maxCompactValue = 200

// compactRun returns a minimal representation of a run for MCP
// responses. Drops internal bookkeeping (artifact refs, phase weights,
// per-metric snapshots, pending decision IDs) that agents don't act on;
// the approval tools carry the decision detail.
func compactRun(state *model.RunState) map[string]any {
	m := map[string]any{
		"run_id":     state.RunID,
		"project":    state.Project,
		"status":     state.Status,
		"started_at": state.StartedAt,
		"updated_at": state.UpdatedAt,
	}
	if state.CurrentPhase != "" {
		m["current_phase"] = state.CurrentPhase
	}
	if state.CompletedAt != nil {
		m["completed_at"] = state.CompletedAt
	}
	if state.LastError != "" {
		m["last_error"] = truncate(state.LastError, maxCompactValue)
	}
	if n := len(state.PendingDecisions); n > 0 {
		m["pending_decisions"] = n
	}

	if pc := state.Progress.Summary.PercentComplete; pc != nil {
		m["percent_complete"] = *pc
	}
	m["percent_mode"] = state.Progress.Summary.PercentMode
	if eta := state.Progress.Summary.ETASeconds; eta != nil {
		m["eta_seconds"] = *eta
	}

	if len(state.Progress.Phases) > 0 {
		phases := make([]map[string]any, 0, len(state.Progress.Phases))
		for _, p := range state.Progress.Phases {
			phases = append(phases, compactPhase(p))
		}
		m["phases"] = phases
	}

	return m
}

// compactPhase collapses one phase's progress to its status and summary,
// dropping the per-metric snapshots.
func compactPhase(p model.PhaseProgress) map[string]any {
	m := map[string]any{
		"phase":  p.Phase,
		"status": p.Status,
	}
	if pc := p.Summary.PercentComplete; pc != nil {
		m["percent_complete"] = *pc
	}
	m["percent_mode"] = p.Summary.PercentMode
	if eta := p.Summary.ETASeconds; eta != nil {
		m["eta_seconds"] = *eta
	}
	return m
}

// compactPendingDecision returns a minimal representation of an approval
// decision for MCP responses. Drops the resume token: resumption goes
// through the CLI or the run's own waiter, never through an MCP agent.
func compactPendingDecision(d approval.PendingDecision) map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"run_id":     d.RunID,
		"phase":      d.Phase,
		"operation":  d.Operation,
		"created_at": d.CreatedAt,
	}
	if d.LineID != "" {
		m["line_id"] = d.LineID
	}
	if d.CurrentValue != "" {
		m["current_value"] = truncate(d.CurrentValue, maxCompactValue)
	}
	if d.CurrentOrigin != "" {
		m["current_origin"] = d.CurrentOrigin
	}
	if d.ProposedValue != "" {
		m["proposed_value"] = truncate(d.ProposedValue, maxCompactValue)
	}
	if d.ProposedOrigin != "" {
		m["proposed_origin"] = d.ProposedOrigin
	}
	if d.Resolved() {
		m["resolution"] = d.Resolution
		m["resolved_at"] = d.ResolvedAt
		m["resolved_by"] = d.ResolvedBy
		if d.Note != "" {
			m["note"] = d.Note
		}
	}
	return m
}

// runStatusNote produces a one-line reading of the run's situation.
// Rules are evaluated in priority order; first match wins. Returns ""
// when no rule fires.
func runStatusNote(state *model.RunState) string {
	switch state.Status {
	case model.RunAwaitingApproval:
		n := len(state.PendingDecisions)
		if n == 0 {
			n = 1
		}
		return fmt.Sprintf("Paused on %d pending decision(s). Review and resolve them, then resume the run.", n)

	case model.RunFailed:
		if state.CurrentPhase != "" && state.LastError != "" {
			return fmt.Sprintf("Failed in %s: %s", state.CurrentPhase, truncate(state.LastError, maxCompactValue))
		}
		if state.LastError != "" {
			return "Failed: " + truncate(state.LastError, maxCompactValue)
		}
		return "Failed."

	case model.RunCompleted:
		if state.CompletedAt != nil {
			elapsed := state.CompletedAt.Sub(state.StartedAt).Round(time.Second)
			return fmt.Sprintf("Completed in %s.", elapsed)
		}
		return "Completed."

	case model.RunRunning:
		if state.CurrentPhase == "" {
			return "Running."
		}
		sum := state.Progress.Summary
		if sum.PercentComplete != nil {
			return fmt.Sprintf("Running %s, %.0f%% overall (%s).", state.CurrentPhase, *sum.PercentComplete, sum.PercentMode)
		}
		return fmt.Sprintf("Running %s.", state.CurrentPhase)

	case model.RunPending:
		return "Not started yet."
	}
	return ""
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
