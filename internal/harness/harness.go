package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/boardhook/internal/discord"
	"github.com/roach88/boardhook/internal/engine"
	"github.com/roach88/boardhook/internal/render"
	"github.com/roach88/boardhook/internal/store"
	"github.com/roach88/boardhook/internal/testutil"
	"github.com/roach88/boardhook/internal/trello"
)

const defaultBoardID = "board-1"

// Harness is the test execution engine.
// It runs one scenario with a frozen clock and a fixed run id.
type Harness struct {
	scenario    *Scenario
	checkpoints store.Checkpoints
	clock       *testutil.DeterministicClock
	runIDs      *testutil.FixedRunIDGenerator
	logger      *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh checkpoint database in a temporary
// directory. The returned error reports a scenario that could not be set up;
// a run that misbehaves yields a failing Result instead.
//
// Execution flow:
// 1. Create a fresh store and seed the checkpoint
// 2. Start the fake Trello API and Discord webhook
// 3. Run the engine once
// 4. Check the expectation and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	fixture, err := os.ReadFile(scenario.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to read actions fixture: %w", err)
	}
	var page []json.RawMessage
	if err := json.Unmarshal(fixture, &page); err != nil {
		return nil, fmt.Errorf("failed to parse actions fixture: %w", err)
	}

	dir, err := os.MkdirTemp("", "boardhook-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	boardID := scenario.BoardID
	if boardID == "" {
		boardID = defaultBoardID
	}

	h := &Harness{
		scenario:    scenario,
		checkpoints: store.Checkpoints{Path: filepath.Join(dir, "checkpoints.db"), BoardID: boardID},
		clock:       testutil.NewDeterministicClock(scenario.Now, 0),
		runIDs:      testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger:      logger,
	}

	ctx := context.Background()
	if !scenario.Checkpoint.IsZero() {
		if err := h.checkpoints.Save(ctx, scenario.Checkpoint); err != nil {
			return nil, fmt.Errorf("failed to seed checkpoint: %w", err)
		}
	}

	source, err := newFakeTrello(page, scenario.Source)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	sink := newFakeWebhook(scenario.Sink)
	defer sink.Close()

	result := NewResult()
	if result.CheckpointBefore, _, err = h.checkpoints.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	cfg := scenario.Config
	eng := engine.New(
		trello.NewClient("test-key", "test-token", trello.WithBaseURL(source.URL), trello.WithLogger(logger)),
		discord.NewWebhook(sink.URL, discord.WithRateLimit(0, 1), discord.WithLogger(logger)),
		h.checkpoints,
		render.Default(render.WithAliases(cfg.Aliases), render.WithLogger(logger)),
		engine.Options{BoardID: boardID, Filter: cfg.FilterConfig()},
		engine.WithClock(h.clock),
		engine.WithRunIDGenerator(h.runIDs),
		engine.WithLogger(logger),
		engine.WithRecorder(h.checkpoints),
	)

	report, runErr := eng.Run(ctx)
	result.Report = report
	result.ErrorCode = string(engine.CodeOf(runErr))
	result.Messages = sink.Messages()
	result.Attempts = sink.Attempts()

	if result.CheckpointAfter, _, err = h.checkpoints.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if err := h.readHistory(ctx, result); err != nil {
		return nil, err
	}

	h.checkExpectation(result)
	actx := &AssertionContext{Report: report, History: result.History}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) readHistory(ctx context.Context, result *Result) error {
	st, err := store.Open(h.checkpoints.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	result.History, err = st.ListRuns(ctx, h.checkpoints.BoardID, 0)
	if err != nil {
		return fmt.Errorf("failed to read run history: %w", err)
	}
	return nil
}

// checkExpectation compares the run against the scenario's expect block.
func (h *Harness) checkExpectation(result *Result) {
	expect := h.scenario.Expect

	if result.ErrorCode != expect.Error {
		result.AddError(fmt.Sprintf("error: expected %q, got %q", expect.Error, result.ErrorCode))
	}

	if want := h.scenario.expectedState(); result.Report == nil || result.Report.State != want {
		got := engine.State("")
		if result.Report != nil {
			got = result.Report.State
		}
		result.AddError(fmt.Sprintf("state: expected %s, got %s", want, got))
	}

	if got := result.CheckpointOutcome(); got != expect.Checkpoint {
		result.AddError(fmt.Sprintf("checkpoint: expected %s, got %s (before %s, after %s)",
			expect.Checkpoint, got, formatInstant(result.CheckpointBefore), formatInstant(result.CheckpointAfter)))
	}
	if expect.Checkpoint == CheckpointAdvanced && result.CheckpointAfter.Before(h.scenario.Now) {
		result.AddError(fmt.Sprintf("checkpoint: expected %s or later, got %s",
			formatInstant(h.scenario.Now), formatInstant(result.CheckpointAfter)))
	}

	if expect.Messages != nil && !slices.Equal(expect.Messages, result.Messages) {
		result.AddError(fmt.Sprintf("messages: expected\n  %s\ngot\n  %s",
			strings.Join(expect.Messages, "\n  "), strings.Join(result.Messages, "\n  ")))
	}
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// fakeTrello serves a fixture page the way the board actions endpoint does:
// only actions newer than "since" and, unless told otherwise, only the
// requested types.
type fakeTrello struct {
	*httptest.Server
}

type actionHeader struct {
	Type string    `json:"type"`
	Date time.Time `json:"date"`
}

func newFakeTrello(page []json.RawMessage, behaviour SourceBehaviour) (*fakeTrello, error) {
	headers := make([]actionHeader, len(page))
	for i, raw := range page {
		if err := json.Unmarshal(raw, &headers[i]); err != nil {
			return nil, fmt.Errorf("failed to parse action %d of fixture: %w", i, err)
		}
	}

	status := behaviour.Status
	if status == 0 {
		status = http.StatusServiceUnavailable
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		if behaviour.Unavailable {
			http.Error(w, "upstream unavailable", status)
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/actions") {
			http.NotFound(w, r)
			return
		}

		query := r.URL.Query()
		since, err := time.Parse(trello.SinceLayout, query.Get("since"))
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		types := strings.Split(query.Get("filter"), ",")

		out := []json.RawMessage{}
		for i, raw := range page {
			if !headers[i].Date.After(since) {
				continue
			}
			if !behaviour.IgnoreFilter && !slices.Contains(types, headers[i].Type) {
				continue
			}
			out = append(out, raw)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}

	return &fakeTrello{Server: httptest.NewServer(http.HandlerFunc(handler))}, nil
}

// fakeWebhook accepts messages like a Discord webhook and rejects the
// configured attempts with 400.
type fakeWebhook struct {
	*httptest.Server

	mu       sync.Mutex
	failOn   map[int]bool
	attempts int
	messages []string
}

func newFakeWebhook(behaviour SinkBehaviour) *fakeWebhook {
	f := &fakeWebhook{failOn: make(map[int]bool), messages: []string{}}
	for _, attempt := range behaviour.FailOn {
		f.failOn[attempt] = true
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeWebhook) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	attempt := f.attempts
	f.attempts++
	reject := f.failOn[attempt]
	if !reject {
		f.messages = append(f.messages, r.PostForm.Get("content"))
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if reject {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message": "Invalid Form Body", "code": 50006}`)
		return
	}
	_, _ = fmt.Fprintf(w, `{"id": "msg-%d", "channel_id": "channel-1"}`, attempt)
}

func (f *fakeWebhook) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.messages)
}

func (f *fakeWebhook) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}
