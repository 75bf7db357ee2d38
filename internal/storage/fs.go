package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// FSStore keeps every run under its own directory:
//
//	<root>/<run-id>/state.json
//	<root>/<run-id>/logs.jsonl
//	<root>/<run-id>/artifacts/<artifact-id>
//
// State and artifact writes go through an atomic temp+rename so a crash
// mid-write never leaves a torn file behind.
type FSStore struct {
	root string

	mu sync.Mutex // serializes log appends
}

var (
	_ Store     = (*FSStore)(nil)
	_ LogReader = (*FSStore)(nil)
)

// NewFSStore creates the root directory if needed and returns the store.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create run root %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) runDir(runID uuid.UUID) string {
	return filepath.Join(s.root, runID.String())
}

// SaveRunState writes the full state snapshot, creating the run
// directory on first save.
func (s *FSStore) SaveRunState(ctx context.Context, state *model.RunState) error {
	if state == nil || state.RunID == uuid.Nil {
		return fmt.Errorf("storage: save run state: missing run id")
	}
	dir := s.runDir(state.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create run dir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal run state %s: %w", state.RunID, err)
	}
	return WriteAtomic(filepath.Join(dir, "state.json"), data)
}

// LoadRunState reads one run's state snapshot.
func (s *FSStore) LoadRunState(ctx context.Context, runID uuid.UUID) (*model.RunState, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(runID), "state.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("storage: read run state %s: %w", runID, err)
	}
	var state model.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("storage: parse run state %s: %w", runID, err)
	}
	return &state, nil
}

// ListRunIndex summarizes every run under the root, newest first.
// Directories that do not hold a readable state file are skipped, not
// failed: a crashed run that never saved is not worth blocking listings.
func (s *FSStore) ListRunIndex(ctx context.Context) ([]model.RunIndexEntry, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("storage: read run root: %w", err)
	}

	var index []model.RunIndexEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runID, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}
		state, err := s.LoadRunState(ctx, runID)
		if err != nil {
			continue
		}
		index = append(index, state.IndexEntry())
	}

	sort.Slice(index, func(i, j int) bool {
		return index[i].StartedAt.After(index[j].StartedAt)
	})
	return index, nil
}

// WriteArtifact stores artifact bytes under the run's artifacts
// directory, keyed by the ref's ID.
func (s *FSStore) WriteArtifact(ctx context.Context, runID uuid.UUID, ref model.ArtifactRef, data []byte) error {
	if ref.ID == uuid.Nil {
		return fmt.Errorf("storage: write artifact: missing artifact id")
	}
	dir := filepath.Join(s.runDir(runID), "artifacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create artifacts dir %s: %w", dir, err)
	}
	return WriteAtomic(filepath.Join(dir, ref.ID.String()), data)
}

// LoadArtifact reads artifact bytes by ID.
func (s *FSStore) LoadArtifact(ctx context.Context, runID, artifactID uuid.UUID) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(runID), "artifacts", artifactID.String()))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: artifact %s", ErrNotFound, artifactID)
		}
		return nil, fmt.Errorf("storage: read artifact %s: %w", artifactID, err)
	}
	return data, nil
}

// AppendLog appends entries to the run's JSONL log. Entries with a zero
// timestamp are stamped at append time.
func (s *FSStore) AppendLog(ctx context.Context, runID uuid.UUID, entries ...model.RunLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	dir := s.runDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create run dir %s: %w", dir, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(dir, "logs.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open run log %s: %w", runID, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	now := time.Now().UTC()
	for _, entry := range entries {
		if entry.Time.IsZero() {
			entry.Time = now
		}
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("storage: append run log %s: %w", runID, err)
		}
	}
	return nil
}

// ReadLog returns all entries appended so far, in order.
func (s *FSStore) ReadLog(ctx context.Context, runID uuid.UUID) ([]model.RunLogEntry, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(runID), "logs.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read run log %s: %w", runID, err)
	}

	var out []model.RunLogEntry
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var entry model.RunLogEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("storage: parse run log %s: %w", runID, err)
		}
		out = append(out, entry)
	}
	return out, nil
}
