package model

import (
	"fmt"

	"github.com/google/uuid"
)

// ConfigurationError reports an invalid pipeline or agent configuration.
// Raised before any agent runs; fatal and never retried.
type ConfigurationError struct {
	Phase  Phase  // offending phase, when one can be named
	Field  string // offending field, when one can be named
	Reason string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Phase != "" && e.Field != "":
		return fmt.Sprintf("configuration: phase %s: field %s: %s", e.Phase, e.Field, e.Reason)
	case e.Phase != "":
		return fmt.Sprintf("configuration: phase %s: %s", e.Phase, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("configuration: field %s: %s", e.Field, e.Reason)
	default:
		return fmt.Sprintf("configuration: %s", e.Reason)
	}
}

// ExecutionFailure reports a work unit that exhausted its retry budget.
// Surfaced per unit; sibling units in the same pool call keep running.
type ExecutionFailure struct {
	UnitID   string
	Attempts int
	Err      error // last cause
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("execution: unit %s failed after %d attempts: %v", e.UnitID, e.Attempts, e.Err)
}

func (e *ExecutionFailure) Unwrap() error {
	return e.Err
}

// ValidationError reports a payload or result that does not satisfy its
// declared contract. Immediate; distinct from transient execution
// failures.
type ValidationError struct {
	Contract string // "input" or "output", optionally with a schema name
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s contract: %s", e.Contract, e.Reason)
}

// MonotonicityViolation reports a progress regression between two run
// snapshots. Surfaced to the caller; the snapshot that triggered it is
// stored regardless.
type MonotonicityViolation struct {
	Phase     Phase
	MetricKey string // empty for a phase-summary regression
	Quantity  string // "percent_complete" or "completed_units"
	Prev      float64
	Next      float64
}

func (e *MonotonicityViolation) Error() string {
	if e.MetricKey != "" {
		return fmt.Sprintf("progress: phase %s metric %s: %s regressed from %v to %v",
			e.Phase, e.MetricKey, e.Quantity, e.Prev, e.Next)
	}
	return fmt.Sprintf("progress: phase %s: %s regressed from %v to %v",
		e.Phase, e.Quantity, e.Prev, e.Next)
}

// ApprovalRequired signals that a mutating operation needs human
// sign-off before it may proceed. It is a control signal rather than a
// failure: callers persist the pending decision and pause the affected
// work instead of treating the run as broken. It satisfies error so it
// can flow through call chains that stop on it.
type ApprovalRequired struct {
	DecisionID uuid.UUID
	RunID      uuid.UUID
	Phase      Phase
	Operation  string // e.g. "overwrite_translation", "delete_line"
	LineID     string
}

func (e *ApprovalRequired) Error() string {
	return fmt.Sprintf("approval required: %s on %s (decision %s)", e.Operation, e.LineID, e.DecisionID)
}
