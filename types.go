package rentl

import (
	"time"

	"github.com/google/uuid"
)

// InvokeRequest is a single model invocation as seen by an Invoker.
// A curated view of the internal request shape with no internal package
// imports — safe to use from outside the module.
type InvokeRequest struct {
	Model        string
	System       string
	User         string
	Tools        []InvokeTool
	OutputSchema string // schema name; non-empty requests JSON output
	Temperature  *float64
	MaxTokens    *int
}

// InvokeTool describes a tool offered to the model for the invocation.
type InvokeTool struct {
	Name        string
	Description string
}

// InvokeResponse is the model's reply to one invocation.
type InvokeResponse struct {
	Content      string
	Model        string
	PromptTokens int
	OutputTokens int
}

// RunResult is the public summary of one pipeline run.
type RunResult struct {
	RunID           uuid.UUID
	Status          string // pending, running, awaiting_approval, completed, failed
	CurrentPhase    string
	PercentComplete *float64
	PercentMode     string // final, estimated, lower_bound, unavailable
	ETASeconds      *float64
	Error           string
	StartedAt       time.Time
	CompletedAt     *time.Time
	// PendingApprovals lists the unresolved decisions a paused run is
	// blocked on. Empty unless Status is awaiting_approval.
	PendingApprovals []PendingApproval
}

// PendingApproval is a protected write waiting on a human verdict.
type PendingApproval struct {
	ID             uuid.UUID
	Phase          string
	Operation      string
	LineID         string
	CurrentValue   string
	CurrentOrigin  string
	ProposedValue  string
	ProposedOrigin string
	// ResumeToken resumes the run after resolution without knowing the
	// run ID, e.g. from a notification link.
	ResumeToken string
	CreatedAt   time.Time
}
