package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardhook/internal/store"
)

func seedRuns(t *testing.T, dbPath string, recs ...store.RunRecord) {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	for _, rec := range recs {
		require.NoError(t, st.RecordRun(context.Background(), rec))
	}
}

func historyRecords() []store.RunRecord {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []store.RunRecord{
		{
			RunID: "run-1", BoardID: "board-1", State: "done",
			StartedAt: start, FinishedAt: start.Add(time.Second), Since: start.Add(-time.Hour),
			FetchedAt: start, Fetched: 4, Kept: 3, Delivered: 3,
			Dropped: map[string]int{"muted_type": 1},
		},
		{
			RunID: "run-2", BoardID: "board-1", State: "aborted",
			StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour + time.Second), Since: start,
			Error: "SOURCE_UNAVAILABLE: fetch board actions: trello: http 503\nupstream",
		},
		{
			RunID: "run-x", BoardID: "board-2", State: "done",
			StartedAt: start, FinishedAt: start, Since: start,
		},
	}
}

func TestHistoryText(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "boardhook.db")
	seedRuns(t, dbPath, historyRecords()...)

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--board", "board-1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "STARTED"))
	assert.Contains(t, lines[1], "run-2")
	assert.Contains(t, lines[1], "aborted")
	assert.Contains(t, lines[1], "SOURCE_UNAVAILABLE: fetch board actions: trello: http 503 …")
	assert.Contains(t, lines[2], "run-1")
	assert.Contains(t, lines[2], "2024-03-01T10:00:00Z")
	assert.NotContains(t, out, "run-x")
}

func TestHistoryLimitAndJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "boardhook.db")
	seedRuns(t, dbPath, historyRecords()...)

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--board", "board-1", "--limit", "1")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   HistoryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "board-1", resp.Data.BoardID)
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, "run-2", resp.Data.Runs[0].RunID)
}

func TestHistoryFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "http://trello.invalid", "http://discord.invalid", "")
	seedRuns(t, filepath.Join(dir, "boardhook.db"), historyRecords()...)

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "run-2")
}

func TestHistoryEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "boardhook.db")
	seedRuns(t, dbPath)

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--board", "board-1")
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded for board board-1\n", out)
}

func TestHistoryMissingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	out, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--board", "board-1")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
	assert.NoFileExists(t, dbPath)
}

func TestHistoryRequiresDatabaseAndBoard(t *testing.T) {
	_, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--board", "board-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--db or --config")

	_, err = execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", "x.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--board or --config")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "-", firstLine("", false))
	assert.Equal(t, "boom", firstLine("boom", false))
	assert.Equal(t, "a …", firstLine("a\nb", false))
	assert.Equal(t, "a | b", firstLine("a\nb", true))
}
