package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/storage"
)

// Errors for pending-decision operations.
var (
	ErrNotFound = errors.New("approval: decision not found")
	ErrExists   = errors.New("approval: decision already exists")
	ErrResolved = errors.New("approval: decision already resolved")
)

// Resolution is the human verdict on a pending decision.
type Resolution string

const (
	ResolutionApproved Resolution = "approved"
	ResolutionRejected Resolution = "rejected"
)

// Valid reports whether r is a known resolution.
func (r Resolution) Valid() bool {
	return r == ResolutionApproved || r == ResolutionRejected
}

// PendingDecision is one gated mutation awaiting human resolution. It
// survives a process restart: the run can resume from the decision's
// token after the operator rules on it.
type PendingDecision struct {
	ID        uuid.UUID   `json:"id"`
	RunID     uuid.UUID   `json:"run_id"`
	Phase     model.Phase `json:"phase"`
	Operation string      `json:"operation"`
	LineID    string      `json:"line_id,omitempty"`

	CurrentValue   string `json:"current_value,omitempty"`
	CurrentOrigin  string `json:"current_origin,omitempty"`
	ProposedValue  string `json:"proposed_value,omitempty"`
	ProposedOrigin string `json:"proposed_origin,omitempty"`

	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Resolution Resolution `json:"resolution,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// Resolved reports whether a human has ruled on the decision.
func (d PendingDecision) Resolved() bool {
	return d.ResolvedAt != nil
}

// Store persists pending decisions durably enough to survive a process
// restart mid-run.
type Store interface {
	Create(ctx context.Context, d PendingDecision) error
	Get(ctx context.Context, id uuid.UUID) (*PendingDecision, error)
	// ListPending returns unresolved decisions, oldest first. A nil
	// runID lists across all runs.
	ListPending(ctx context.Context, runID uuid.UUID) ([]PendingDecision, error)
	Resolve(ctx context.Context, id uuid.UUID, res Resolution, resolvedBy, note string) (*PendingDecision, error)
	// Await blocks until the decision is resolved or ctx ends.
	Await(ctx context.Context, id uuid.UUID) (*PendingDecision, error)
}

// FSStore keeps one JSON file per decision in a directory. Writes are
// atomic, so an operator tool reading the directory never sees a
// partial decision, and resolution from another process wakes waiters
// through filesystem notification.
type FSStore struct {
	dir string
}

// NewFSStore creates the pending-decision directory if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("approval: create pending dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

func (s *FSStore) write(d PendingDecision) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("approval: marshal decision %s: %w", d.ID, err)
	}
	return storage.WriteAtomic(s.path(d.ID), data)
}

// Create persists a new pending decision.
func (s *FSStore) Create(ctx context.Context, d PendingDecision) error {
	if _, err := os.Stat(s.path(d.ID)); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, d.ID)
	}
	return s.write(d)
}

// Get loads one decision by id.
func (s *FSStore) Get(ctx context.Context, id uuid.UUID) (*PendingDecision, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("approval: read decision %s: %w", id, err)
	}
	var d PendingDecision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("approval: parse decision %s: %w", id, err)
	}
	return &d, nil
}

// ListPending returns unresolved decisions, oldest first.
func (s *FSStore) ListPending(ctx context.Context, runID uuid.UUID) ([]PendingDecision, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("approval: read pending dir: %w", err)
	}

	var pending []PendingDecision
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("approval: read %s: %w", entry.Name(), err)
		}
		var d PendingDecision
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("approval: parse %s: %w", entry.Name(), err)
		}
		if d.Resolved() {
			continue
		}
		if runID != uuid.Nil && d.RunID != runID {
			continue
		}
		pending = append(pending, d)
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// Resolve records the human verdict on a decision. Resolving twice
// fails with ErrResolved.
func (s *FSStore) Resolve(ctx context.Context, id uuid.UUID, res Resolution, resolvedBy, note string) (*PendingDecision, error) {
	if !res.Valid() {
		return nil, fmt.Errorf("approval: unknown resolution %q", res)
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Resolved() {
		return nil, fmt.Errorf("%w: %s", ErrResolved, id)
	}

	now := time.Now().UTC()
	d.Resolution = res
	d.ResolvedAt = &now
	d.ResolvedBy = resolvedBy
	d.Note = note
	if err := s.write(*d); err != nil {
		return nil, err
	}
	return d, nil
}

// Await blocks until the decision is resolved or ctx ends. The watch
// is registered before the first check, so a resolution landing in
// between is never missed.
func (s *FSStore) Await(ctx context.Context, id uuid.UUID) (*PendingDecision, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("approval: create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(s.dir); err != nil {
		return nil, fmt.Errorf("approval: watch pending dir: %w", err)
	}

	target := s.path(id)
	for {
		d, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if d.Resolved() {
			return d, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil, fmt.Errorf("approval: watcher closed")
			}
			if event.Name != target {
				continue
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil, fmt.Errorf("approval: watcher closed")
			}
			return nil, fmt.Errorf("approval: watch pending dir: %w", werr)
		}
	}
}
