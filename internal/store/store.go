// Package store defines the persistence layer interface for finalized
// change sets. Sessions themselves are in-memory only; only the outcome
// of a finalized review is recorded.
package store

import (
	"context"
	"time"
)

// Store is the persistence interface for change-set history.
type Store interface {
	// Change-set persistence
	SaveChangeSet(ctx context.Context, record ChangeSetRecord, changes []ChangeRecord) error
	GetChangeSet(ctx context.Context, changeSetID string) (ChangeSetRecord, error)
	ListChangeSets(ctx context.Context, limit int) ([]ChangeSetRecord, error)

	// Change persistence
	GetChangesByChangeSet(ctx context.Context, changeSetID string) ([]ChangeRecord, error)

	// Utility
	Close() error
}

// ChangeSetRecord stores metadata about one finalized review session.
type ChangeSetRecord struct {
	ChangeSetID string
	BranchName  string
	Repository  string
	CreatedAt   time.Time
	FileCount   int
	ChangeCount int
}

// ChangeRecord represents one approved change inside a change set.
type ChangeRecord struct {
	ChangeID    string
	ChangeSetID string
	File        string
	LineStart   int
	LineEnd     int
	Diff        string
	Rationale   string
	Severity    string
}
