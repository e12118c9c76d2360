// Package sqlite persists finalized change sets to a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/reviewpatch/engine/internal/store"
)

// Store implements the store.Store interface using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store at the given path.
// Use ":memory:" for in-memory database (useful for testing).
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}

	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// createSchema creates all tables and indexes if they don't exist.
func (s *Store) createSchema() error {
	schema := `
	-- One row per finalized review session
	CREATE TABLE IF NOT EXISTS change_sets (
		change_set_id TEXT PRIMARY KEY,
		branch_name TEXT NOT NULL,
		repository TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		file_count INTEGER NOT NULL DEFAULT 0,
		change_count INTEGER NOT NULL DEFAULT 0
	);

	-- Individual approved changes inside a change set
	CREATE TABLE IF NOT EXISTS changes (
		change_id TEXT PRIMARY KEY,
		change_set_id TEXT NOT NULL,
		file TEXT NOT NULL,
		line_start INTEGER NOT NULL,
		line_end INTEGER NOT NULL,
		diff TEXT NOT NULL,
		rationale TEXT,
		severity TEXT,
		FOREIGN KEY (change_set_id) REFERENCES change_sets(change_set_id) ON DELETE CASCADE
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_changes_change_set ON changes(change_set_id);
	CREATE INDEX IF NOT EXISTS idx_change_sets_created ON change_sets(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveChangeSet stores a change set and its changes in a single transaction.
func (s *Store) SaveChangeSet(ctx context.Context, record store.ChangeSetRecord, changes []store.ChangeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO change_sets (change_set_id, branch_name, repository, created_at, file_count, change_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		record.ChangeSetID,
		record.BranchName,
		record.Repository,
		record.CreatedAt.Unix(),
		record.FileCount,
		record.ChangeCount,
	); err != nil {
		return fmt.Errorf("failed to insert change set: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO changes (change_id, change_set_id, file, line_start, line_end, diff, rationale, severity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, change := range changes {
		if _, err := stmt.ExecContext(ctx,
			change.ChangeID,
			change.ChangeSetID,
			change.File,
			change.LineStart,
			change.LineEnd,
			change.Diff,
			change.Rationale,
			change.Severity,
		); err != nil {
			return fmt.Errorf("failed to insert change: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetChangeSet retrieves a change set by ID.
func (s *Store) GetChangeSet(ctx context.Context, changeSetID string) (store.ChangeSetRecord, error) {
	query := `
		SELECT change_set_id, branch_name, repository, created_at, file_count, change_count
		FROM change_sets
		WHERE change_set_id = ?
	`

	var record store.ChangeSetRecord
	var createdAt int64

	err := s.db.QueryRowContext(ctx, query, changeSetID).Scan(
		&record.ChangeSetID,
		&record.BranchName,
		&record.Repository,
		&createdAt,
		&record.FileCount,
		&record.ChangeCount,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return store.ChangeSetRecord{}, fmt.Errorf("change set not found: %s", changeSetID)
		}
		return store.ChangeSetRecord{}, fmt.Errorf("failed to get change set: %w", err)
	}

	record.CreatedAt = time.Unix(createdAt, 0)
	return record, nil
}

// ListChangeSets retrieves the most recent change sets, limited by the given count.
func (s *Store) ListChangeSets(ctx context.Context, limit int) ([]store.ChangeSetRecord, error) {
	query := `
		SELECT change_set_id, branch_name, repository, created_at, file_count, change_count
		FROM change_sets
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list change sets: %w", err)
	}
	defer rows.Close()

	var records []store.ChangeSetRecord
	for rows.Next() {
		var record store.ChangeSetRecord
		var createdAt int64

		if err := rows.Scan(
			&record.ChangeSetID,
			&record.BranchName,
			&record.Repository,
			&createdAt,
			&record.FileCount,
			&record.ChangeCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan change set: %w", err)
		}

		record.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating change sets: %w", err)
	}

	return records, nil
}

// GetChangesByChangeSet retrieves all changes for a given change set,
// ordered by change ID so the original approval order is preserved.
func (s *Store) GetChangesByChangeSet(ctx context.Context, changeSetID string) ([]store.ChangeRecord, error) {
	query := `
		SELECT change_id, change_set_id, file, line_start, line_end, diff, rationale, severity
		FROM changes
		WHERE change_set_id = ?
		ORDER BY change_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, changeSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get changes by change set: %w", err)
	}
	defer rows.Close()

	var changes []store.ChangeRecord
	for rows.Next() {
		var change store.ChangeRecord

		if err := rows.Scan(
			&change.ChangeID,
			&change.ChangeSetID,
			&change.File,
			&change.LineStart,
			&change.LineEnd,
			&change.Diff,
			&change.Rationale,
			&change.Severity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}

		changes = append(changes, change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes: %w", err)
	}

	return changes, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
