package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// DB is the Postgres-backed store. Run state is persisted as a full
// JSONB snapshot next to a few extracted columns for cheap listings.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var (
	_ Store     = (*DB)(nil)
	_ LogReader = (*DB)(nil)
)

// New creates a connection pool and verifies connectivity.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	return &DB{pool: pool, logger: logger}, nil
}

// Pool exposes the underlying pgx pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close releases the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// SaveRunState upserts the full run state snapshot.
func (db *DB) SaveRunState(ctx context.Context, state *model.RunState) error {
	if state == nil || state.RunID == uuid.Nil {
		return fmt.Errorf("storage: save run state: missing run id")
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO runs (id, project, status, current_phase, state, started_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		     status = EXCLUDED.status,
		     current_phase = EXCLUDED.current_phase,
		     state = EXCLUDED.state,
		     updated_at = EXCLUDED.updated_at,
		     completed_at = EXCLUDED.completed_at`,
		state.RunID, state.Project, string(state.Status), string(state.CurrentPhase),
		state, state.StartedAt, state.UpdatedAt, state.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: save run state %s: %w", state.RunID, err)
	}
	return nil
}

// LoadRunState reads one run's state snapshot.
func (db *DB) LoadRunState(ctx context.Context, runID uuid.UUID) (*model.RunState, error) {
	var state model.RunState
	err := db.pool.QueryRow(ctx,
		`SELECT state FROM runs WHERE id = $1`, runID,
	).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("storage: load run state %s: %w", runID, err)
	}
	return &state, nil
}

// ListRunIndex summarizes all runs, newest first.
func (db *DB) ListRunIndex(ctx context.Context) ([]model.RunIndexEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, project, status, current_phase, started_at, updated_at
		 FROM runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	var index []model.RunIndexEntry
	for rows.Next() {
		var e model.RunIndexEntry
		if err := rows.Scan(&e.RunID, &e.Project, &e.Status, &e.CurrentPhase, &e.StartedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan run index: %w", err)
		}
		index = append(index, e)
	}
	return index, rows.Err()
}

// WriteArtifact stores artifact bytes keyed by the ref's ID.
func (db *DB) WriteArtifact(ctx context.Context, runID uuid.UUID, ref model.ArtifactRef, data []byte) error {
	if ref.ID == uuid.Nil {
		return fmt.Errorf("storage: write artifact: missing artifact id")
	}
	createdAt := ref.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO artifacts (id, run_id, phase, kind, name, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ref.ID, runID, string(ref.Phase), ref.Kind, ref.Name, data, createdAt,
	)
	if err != nil {
		return fmt.Errorf("storage: write artifact %s: %w", ref.ID, err)
	}
	return nil
}

// LoadArtifact reads artifact bytes by ID, scoped to the given run.
func (db *DB) LoadArtifact(ctx context.Context, runID, artifactID uuid.UUID) ([]byte, error) {
	var data []byte
	err := db.pool.QueryRow(ctx,
		`SELECT data FROM artifacts WHERE id = $1 AND run_id = $2`, artifactID, runID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: artifact %s", ErrNotFound, artifactID)
		}
		return nil, fmt.Errorf("storage: load artifact %s: %w", artifactID, err)
	}
	return data, nil
}

// AppendLog batch-inserts log entries via COPY. Entries with a zero
// timestamp are stamped at append time.
func (db *DB) AppendLog(ctx context.Context, runID uuid.UUID, entries ...model.RunLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	columns := []string{"id", "run_id", "logged_at", "level", "phase", "message", "fields"}
	rows := make([][]any, len(entries))
	for i, entry := range entries {
		loggedAt := entry.Time
		if loggedAt.IsZero() {
			loggedAt = now
		}
		fields := entry.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		rows[i] = []any{uuid.New(), runID, loggedAt, entry.Level, string(entry.Phase), entry.Message, fields}
	}

	if _, err := db.pool.CopyFrom(ctx, pgx.Identifier{"run_logs"}, columns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("storage: append run log %s: %w", runID, err)
	}
	return nil
}

// ReadLog returns all entries for a run in append order.
func (db *DB) ReadLog(ctx context.Context, runID uuid.UUID) ([]model.RunLogEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT logged_at, level, phase, message, fields
		 FROM run_logs WHERE run_id = $1 ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: read run log %s: %w", runID, err)
	}
	defer rows.Close()

	var out []model.RunLogEntry
	for rows.Next() {
		var entry model.RunLogEntry
		if err := rows.Scan(&entry.Time, &entry.Level, &entry.Phase, &entry.Message, &entry.Fields); err != nil {
			return nil, fmt.Errorf("storage: scan run log: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
