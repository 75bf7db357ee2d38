package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunPending          RunStatus = "pending"
	RunRunning          RunStatus = "running"
	RunAwaitingApproval RunStatus = "awaiting_approval"
	RunCompleted        RunStatus = "completed"
	RunFailed           RunStatus = "failed"
)

// Terminal reports whether the status is final. A terminal run is never
// advanced or resumed.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// Valid reports whether s is a known run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunPending, RunRunning, RunAwaitingApproval, RunCompleted, RunFailed:
		return true
	}
	return false
}

// ArtifactRef points to a stored artifact produced by a phase. The
// artifact body lives in the artifact store; the run state carries only
// references.
type ArtifactRef struct {
	ID        uuid.UUID `json:"id"`
	Phase     Phase     `json:"phase"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RunState is the persisted state of one pipeline run. Created as
// pending at run start, mutated by the orchestrator as phases advance,
// terminal once status reaches completed or failed. Persisted to the
// run store at every phase boundary.
type RunState struct {
	RunID        uuid.UUID     `json:"run_id"`
	Project      string        `json:"project"`
	Status       RunStatus     `json:"status"`
	CurrentPhase Phase         `json:"current_phase,omitempty"`
	Progress     RunProgress   `json:"progress"`
	Artifacts    []ArtifactRef `json:"artifacts,omitempty"`
	// PendingDecisions names the approval decisions the run is paused
	// on. Resume applies resolved ones and keeps waiting on the rest.
	PendingDecisions []uuid.UUID `json:"pending_decisions,omitempty"`
	LastError        string      `json:"last_error,omitempty"`
	StartedAt        time.Time   `json:"started_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
}

// NewRunState creates a fresh pending run for the given project.
func NewRunState(project string) *RunState {
	now := time.Now().UTC()
	return &RunState{
		RunID:     uuid.New(),
		Project:   project,
		Status:    RunPending,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// IndexEntry derives the listing summary for the run.
func (s *RunState) IndexEntry() RunIndexEntry {
	return RunIndexEntry{
		RunID:        s.RunID,
		Project:      s.Project,
		Status:       s.Status,
		CurrentPhase: s.CurrentPhase,
		StartedAt:    s.StartedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// RunIndexEntry summarizes one run for listings.
type RunIndexEntry struct {
	RunID        uuid.UUID `json:"run_id"`
	Project      string    `json:"project"`
	Status       RunStatus `json:"status"`
	CurrentPhase Phase     `json:"current_phase,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RunLogEntry is one structured line in a run's append-only log.
type RunLogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Phase   Phase          `json:"phase,omitempty"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}
