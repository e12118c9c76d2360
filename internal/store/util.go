package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateChangeSetID creates a unique, time-ordered change-set ID.
// Format: cs-<timestamp>-<hash>
// Example: cs-20260830T143052Z-a3f9c2
func GenerateChangeSetID(timestamp time.Time, branchName string) string {
	ts := timestamp.UTC().Format("20060102T150405Z")

	// Short hash from branch and nanoseconds for uniqueness
	input := fmt.Sprintf("%s|%d", branchName, timestamp.UnixNano())
	hash := sha256.Sum256([]byte(input))
	shortHash := hex.EncodeToString(hash[:3])

	return fmt.Sprintf("cs-%s-%s", ts, shortHash)
}

// GenerateChangeID creates a unique ID for a change within a change set.
// Format: change-<changeset_id>-<index>
// Index is zero-padded to 4 digits for proper sorting.
func GenerateChangeID(changeSetID string, index int) string {
	return fmt.Sprintf("change-%s-%04d", changeSetID, index)
}
