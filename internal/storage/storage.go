// Package storage persists run state, phase artifacts, and run logs.
// Two backends implement the store interfaces: a filesystem backend for
// local single-machine runs and a Postgres backend for shared
// deployments. The orchestrator only ever talks to the interfaces.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// RunStore persists run state snapshots. SaveRunState is an upsert:
// the orchestrator calls it at every phase boundary with the full
// current state.
type RunStore interface {
	SaveRunState(ctx context.Context, state *model.RunState) error
	LoadRunState(ctx context.Context, runID uuid.UUID) (*model.RunState, error)
	ListRunIndex(ctx context.Context) ([]model.RunIndexEntry, error)
}

// ArtifactStore persists opaque phase outputs. The run state carries
// ArtifactRefs; the bytes live here.
type ArtifactStore interface {
	WriteArtifact(ctx context.Context, runID uuid.UUID, ref model.ArtifactRef, data []byte) error
	LoadArtifact(ctx context.Context, runID, artifactID uuid.UUID) ([]byte, error)
}

// LogStore appends structured entries to a run's append-only log.
type LogStore interface {
	AppendLog(ctx context.Context, runID uuid.UUID, entries ...model.RunLogEntry) error
}

// LogReader reads a run's log back, oldest first. Both backends provide
// it; it stays out of LogStore so the orchestrator's write path carries
// no read surface. Operator tooling type-asserts the run store for it.
type LogReader interface {
	ReadLog(ctx context.Context, runID uuid.UUID) ([]model.RunLogEntry, error)
}

// Store is the full persistence surface a backend provides.
type Store interface {
	RunStore
	ArtifactStore
	LogStore
}
