package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointShowNone(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "boardhook.db")

	out, err := execute(NewCheckpointCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--board", "board-1")
	require.NoError(t, err)
	assert.Equal(t, "board board-1 has no checkpoint; the next run starts from now\n", out)
}

func TestCheckpointSetShowReset(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "boardhook.db")
	args := []string{"--db", dbPath, "--board", "board-1"}

	out, err := execute(NewCheckpointCommand(&RootOptions{Format: "text"}), append(args, "--set", "2024-03-01T11:00:00+01:00")...)
	require.NoError(t, err)
	assert.Equal(t, "✓ checkpoint of board-1 set to 2024-03-01T10:00:00Z\n", out)
	assert.Equal(t, seededCheckpoint, loadCheckpoint(t, dbPath))

	out, err = execute(NewCheckpointCommand(&RootOptions{Format: "text"}), args...)
	require.NoError(t, err)
	assert.Equal(t, "board-1 2024-03-01T10:00:00Z\n", out)

	out, err = execute(NewCheckpointCommand(&RootOptions{Format: "text"}), append(args, "--reset")...)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ checkpoint of board-1 removed")

	out, err = execute(NewCheckpointCommand(&RootOptions{Format: "text"}), append(args, "--reset")...)
	require.NoError(t, err)
	assert.Equal(t, "board board-1 had no checkpoint\n", out)
}

func TestCheckpointJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "boardhook.db")
	seedCheckpoint(t, dbPath, seededCheckpoint)

	out, err := execute(NewCheckpointCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--board", "board-1")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   CheckpointResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "show", resp.Data.Action)
	require.NotNil(t, resp.Data.Checkpoint)
	assert.True(t, seededCheckpoint.Equal(*resp.Data.Checkpoint))
}

func TestCheckpointInvalidSet(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "boardhook.db")

	out, err := execute(NewCheckpointCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--board", "board-1", "--set", "yesterday")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
	assert.NoFileExists(t, dbPath)
}

func TestCheckpointResetAndSetExclusive(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "boardhook.db")

	_, err := execute(NewCheckpointCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--board", "board-1", "--reset", "--set", time.Now().Format(time.RFC3339))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}
