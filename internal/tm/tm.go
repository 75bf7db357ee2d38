// Package tm is the translation memory: a SQLite store of source→target
// segments keyed by a hash of the normalized source text. The
// pretranslation phase consults it for exact matches before spending
// model calls on a line.
package tm

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// ErrProtected is returned when a Put would replace a human-authored
// entry with an agent-authored one. Human memory never silently decays
// into machine output; callers must delete explicitly first.
var ErrProtected = errors.New("tm: human entry protected")

// Entry is one memorized segment pair.
type Entry struct {
	Key        string
	SourceLang string
	TargetLang string
	SourceText string
	TargetText string
	Origin     string
	UseCount   int
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Stats summarizes the memory contents.
type Stats struct {
	TotalEntries int
	HumanEntries int
	TotalUses    int
}

// Store is a SQLite-backed translation memory.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the memory database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tm: open database: %w", err)
	}
	// SQLite locks the whole database per writer; a single connection
	// avoids SQLITE_BUSY and keeps ":memory:" on one backing store.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("tm: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory (
		key TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_text TEXT NOT NULL,
		target_text TEXT NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		use_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_memory_pair ON memory(source_lang, target_lang);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key derives the lookup key for a segment: language pair plus the
// NFC-normalized, whitespace-trimmed source text.
func Key(sourceLang, targetLang, sourceText string) string {
	sum := sha256.Sum256([]byte(sourceLang + "\x00" + targetLang + "\x00" + Normalize(sourceText)))
	return hex.EncodeToString(sum[:])
}

// Normalize trims whitespace and applies Unicode NFC normalization so
// visually identical source lines share one memory slot.
func Normalize(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Put inserts or replaces an entry. Replacing a human-authored entry
// with an agent-authored one fails with ErrProtected.
func (s *Store) Put(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.SourceText) == "" {
		return fmt.Errorf("tm: put: empty source text")
	}
	if e.TargetText == "" {
		return fmt.Errorf("tm: put: empty target text")
	}
	key := Key(e.SourceLang, e.TargetLang, e.SourceText)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tm: put: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingOrigin string
	err = tx.QueryRowContext(ctx, `SELECT origin FROM memory WHERE key = ?`, key).Scan(&existingOrigin)
	switch {
	case err == nil:
		if model.HumanAuthored(existingOrigin) && !model.HumanAuthored(e.Origin) {
			return fmt.Errorf("%w: %s", ErrProtected, key)
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("tm: put: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO memory (key, source_lang, target_lang, source_text, target_text, origin, use_count, created_at, last_used)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		key, e.SourceLang, e.TargetLang, Normalize(e.SourceText), e.TargetText, e.Origin, now, now)
	if err != nil {
		return fmt.Errorf("tm: put: %w", err)
	}
	return tx.Commit()
}

// Lookup returns the entry for an exact normalized match, bumping its
// use count. The second return is false on a miss.
func (s *Store) Lookup(ctx context.Context, sourceLang, targetLang, sourceText string) (*Entry, bool, error) {
	key := Key(sourceLang, targetLang, sourceText)

	var e Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT key, source_lang, target_lang, source_text, target_text, origin, use_count, created_at, last_used
		 FROM memory WHERE key = ?`, key).
		Scan(&e.Key, &e.SourceLang, &e.TargetLang, &e.SourceText, &e.TargetText, &e.Origin, &e.UseCount, &e.CreatedAt, &e.LastUsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("tm: lookup: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE memory SET use_count = use_count + 1, last_used = ? WHERE key = ?`,
		time.Now().UTC(), key)
	if err != nil {
		return nil, false, fmt.Errorf("tm: lookup: bump use count: %w", err)
	}
	e.UseCount++
	return &e, true, nil
}

// Delete removes one entry by key. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory WHERE key = ?`, key); err != nil {
		return fmt.Errorf("tm: delete: %w", err)
	}
	return nil
}

// List returns all entries for a language pair, most recently used
// first. Empty languages match everything.
func (s *Store) List(ctx context.Context, sourceLang, targetLang string) ([]Entry, error) {
	query := `SELECT key, source_lang, target_lang, source_text, target_text, origin, use_count, created_at, last_used FROM memory`
	var args []any
	if sourceLang != "" && targetLang != "" {
		query += ` WHERE source_lang = ? AND target_lang = ?`
		args = append(args, sourceLang, targetLang)
	}
	query += ` ORDER BY last_used DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tm: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.SourceLang, &e.TargetLang, &e.SourceText, &e.TargetText, &e.Origin, &e.UseCount, &e.CreatedAt, &e.LastUsedAt); err != nil {
			return nil, fmt.Errorf("tm: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns summary counts for the memory.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN origin = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(use_count), 0)
		FROM memory`, model.OriginHuman).Scan(
		&stats.TotalEntries,
		&stats.HumanEntries,
		&stats.TotalUses,
	)
	if err != nil {
		return nil, fmt.Errorf("tm: stats: %w", err)
	}
	return stats, nil
}
