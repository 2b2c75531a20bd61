package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fullConfig = filepath.Join("..", "config", "testdata", "full.yaml")

func TestValidateValidConfig(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "--config", fullConfig)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ "+fullConfig+" is valid")
	assert.Contains(t, out, "board:     board-1")
	assert.Contains(t, out, "webhook:   discord.com (1/s, burst 2)")
	assert.Contains(t, out, "muted:     1 type(s), 2 field(s), 1 list(s)")
	assert.Contains(t, out, "metrics:   /var/lib/node_exporter/boardhook.prom")
}

func TestValidateNeverEchoesSecrets(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		t.Run(format, func(t *testing.T) {
			out, err := execute(NewValidateCommand(&RootOptions{Format: format}), "--config", fullConfig)
			require.NoError(t, err)

			assert.NotContains(t, out, "k3y")
			assert.NotContains(t, out, "t0ken")
			assert.NotContains(t, out, "/api/webhooks/1/abc")
		})
	}
}

func TestValidateValidConfigJSON(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), "--config", fullConfig)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Summary)
	assert.Equal(t, "board-1", resp.Data.Summary.BoardID)
	assert.Equal(t, "discord.com", resp.Data.Summary.WebhookHost)
	assert.Equal(t, 1, resp.Data.Summary.Aliases)
}

func TestValidateInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := `trello:
  key: k
  token: t
  board_id: ""
discord:
  webhook_url: not-a-url
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "--config", path)
	require.Error(t, err)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with")
	assert.Contains(t, out, "✗ "+path+" is invalid")
	assert.Contains(t, out, "board_id")
	assert.Contains(t, out, "webhook_url")
}

func TestValidateInvalidConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trello:\n  key: k\n  unknown: 1\n"), 0o600))

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.NotEmpty(t, resp.Data.Errors)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidConfig, resp.Error.Code)
}

func TestValidateMissingFile(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "--config", "/nonexistent/boardhook.yaml")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "discord.com", hostOf("https://discord.com/api/webhooks/1/abc"))
	assert.Equal(t, "127.0.0.1:8080", hostOf("http://127.0.0.1:8080/hook"))
	assert.Equal(t, "(invalid url)", hostOf("not a url"))
}
