package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore opens a fresh database in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun returns a finished run started at the given minute past
// 2024-03-01T10:00Z.
func createTestRun(id, board string, minute int) RunRecord {
	started := time.Date(2024, 3, 1, 10, minute, 0, 0, time.UTC)
	return RunRecord{
		RunID:      id,
		BoardID:    board,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		State:      "done",
		Since:      started.Add(-time.Minute),
		FetchedAt:  started.Add(time.Second),
		Fetched:    3,
		Kept:       2,
		Delivered:  2,
	}
}
