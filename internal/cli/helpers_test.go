package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardhook/internal/trello"
)

// boardFixture is a newest-first page of seven actions between 10:01 and
// 10:07 on 2024-03-01.
var boardFixture = filepath.Join("..", "trello", "testdata", "actions.json")

// testNow is later than every action of boardFixture.
var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeBoard serves boardFixture, honouring the since parameter.
func fakeBoard(t *testing.T, status int) *httptest.Server {
	t.Helper()
	data, err := os.ReadFile(boardFixture)
	require.NoError(t, err)
	var page []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &page))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != 0 {
			http.Error(w, "unavailable", status)
			return
		}
		since, err := time.Parse(trello.SinceLayout, r.URL.Query().Get("since"))
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		out := []json.RawMessage{}
		for _, raw := range page {
			var head struct {
				Date time.Time `json:"date"`
			}
			if err := json.Unmarshal(raw, &head); err == nil && head.Date.After(since) {
				out = append(out, raw)
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fakeChannel struct {
	*httptest.Server
	mu       sync.Mutex
	messages []string
}

// fakeDiscord accepts every message and records its content.
func fakeDiscord(t *testing.T) *fakeChannel {
	t.Helper()
	f := &fakeChannel{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.messages = append(f.messages, r.PostForm.Get("content"))
		n := len(f.messages)
		f.mu.Unlock()
		_, _ = fmt.Fprintf(w, `{"id": "msg-%d", "channel_id": "channel-1"}`, n)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeChannel) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

// writeConfig writes a configuration file pointing at the given endpoints.
// extra is appended verbatim.
func writeConfig(t *testing.T, dir, trelloURL, webhookURL, extra string) string {
	t.Helper()
	content := fmt.Sprintf(`trello:
  key: test-key
  token: test-token
  board_id: board-1
  base_url: %s
discord:
  webhook_url: %s/api/webhooks/1/secret-token
  rate_per_second: 1000
  burst: 10
persistence:
  path: %s
%s`, trelloURL, webhookURL, filepath.Join(dir, "boardhook.db"), extra)
	path := filepath.Join(dir, "boardhook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimLeft(content, "\n")), 0o600))
	return path
}

// execute runs cmd with args and returns stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
