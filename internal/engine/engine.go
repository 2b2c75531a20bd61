package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/boardhook/internal/filter"
	"github.com/roach88/boardhook/internal/metrics"
	"github.com/roach88/boardhook/internal/store"
	"github.com/roach88/boardhook/internal/trello"
)

// Source fetches a board's actions newer than since, newest first.
// Implemented by *trello.Client.
type Source interface {
	BoardActions(ctx context.Context, boardID string, since time.Time, types []string) ([]trello.Action, error)
}

// Sink delivers one rendered message. Implemented by *discord.Webhook.
type Sink interface {
	Deliver(ctx context.Context, message string) error
}

// CheckpointStore loads and saves the run cursor of one board.
// Implemented by store.Checkpoints.
type CheckpointStore interface {
	Load(ctx context.Context) (t time.Time, ok bool, err error)
	Save(ctx context.Context, t time.Time) error
}

// Recorder appends finished runs to a history. Implemented by
// store.Checkpoints.
type Recorder interface {
	Record(ctx context.Context, rec store.RunRecord) error
}

// Formatter renders actions. Implemented by *render.Registry.
type Formatter interface {
	Types() []string
	Render(a trello.Action) (msg string, ok bool, err error)
}

// Settings is the loaded configuration the options were taken from.
// Implemented by config.Config.
type Settings interface {
	EnsureLoaded() error
}

// Options is the per-run configuration.
type Options struct {
	BoardID string
	Filter  filter.Config

	// Settings, when set, must report a loaded configuration or the run is
	// refused with PRECONDITION.
	Settings Settings
}

// Engine performs exactly one synchronization run.
//
// The run is sequential: fetch, filter, order, render and deliver one message
// at a time, then checkpoint. Nothing in the engine retries; the next run is
// the retry.
//
// Thread-safety model:
//   - Run(): at most once per Engine; a second call fails with ALREADY_RUN
//   - State(): safe from any goroutine
type Engine struct {
	source      Source
	sink        Sink
	checkpoints CheckpointStore
	formatter   Formatter
	opts        Options

	clock    Clock
	runIDs   RunIDGenerator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	recorder Recorder

	mu    sync.Mutex
	state State
	used  bool
}

// EngineOption allows configuration of engine collaborators.
type EngineOption func(*Engine)

// WithClock sets the wall clock. Default: SystemClock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithRunIDGenerator sets the run id generator. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. A nil value disables metrics.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRecorder makes the engine record every finished run. Recording errors
// are logged and never change the run outcome.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// New creates an Engine for a single run.
func New(
	source Source,
	sink Sink,
	checkpoints CheckpointStore,
	formatter Formatter,
	opts Options,
	options ...EngineOption,
) *Engine {
	e := &Engine{
		source:      source,
		sink:        sink,
		checkpoints: checkpoints,
		formatter:   formatter,
		opts:        opts,
		clock:       SystemClock{},
		runIDs:      UUIDv7Generator{},
		logger:      slog.Default(),
		state:       StateInit,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// State returns the current state of the run.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run performs the synchronization run and returns its report.
//
// The report is returned even when err is non-nil, except for ALREADY_RUN.
// A DELIVERY_FAILED error accompanies a run that still reached done and
// saved its checkpoint.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	if e.used {
		e.mu.Unlock()
		return nil, newRunError(ErrCodeAlreadyRun, "", "engine instances are single-use", nil)
	}
	e.used = true
	e.mu.Unlock()

	report := &Report{
		RunID:     e.runIDs.Generate(),
		BoardID:   e.opts.BoardID,
		State:     StateInit,
		StartedAt: e.clock.Now(),
		Messages:  []string{},
	}
	logger := e.logger.With("board", report.BoardID, "run_id", report.RunID)

	err := e.run(ctx, report, logger)
	if !e.State().Terminal() {
		e.setState(StateAborted)
	}
	report.State = e.State()
	report.FinishedAt = e.clock.Now()

	e.finish(ctx, report, err, logger)
	return report, err
}

func (e *Engine) run(ctx context.Context, report *Report, logger *slog.Logger) error {
	// INIT
	if e.opts.Settings != nil {
		if err := e.opts.Settings.EnsureLoaded(); err != nil {
			return newRunError(ErrCodePrecondition, report.RunID, "configuration not loaded", err)
		}
	}
	if e.opts.BoardID == "" {
		return newRunError(ErrCodePrecondition, report.RunID, "board id is required", nil)
	}
	since, ok, err := e.checkpoints.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrInsecurePermissions) {
			return newRunError(ErrCodePrecondition, report.RunID, "checkpoint store refused", err)
		}
		return newRunError(ErrCodeCheckpointFailed, report.RunID, "load checkpoint", err)
	}
	if !ok {
		since = report.StartedAt
		logger.Info("no checkpoint stored, starting from now", "since", since)
	} else {
		logger.Info("resuming from checkpoint", "since", since)
	}
	report.Since = since
	report.RequestedTypes = e.opts.Filter.RequestedTypes(e.formatter.Types())

	// FETCHING
	e.setState(StateFetching)
	fetchedAt := e.clock.Now()
	page, err := e.source.BoardActions(ctx, e.opts.BoardID, since, report.RequestedTypes)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return newRunError(ErrCodeCancelled, report.RunID, "fetch interrupted", ctx.Err())
		case errors.Is(err, trello.ErrSourceUnavailable):
			return newRunError(ErrCodeSourceUnavailable, report.RunID, "fetch board actions", err)
		default:
			return newRunError(ErrCodeFetchFailed, report.RunID, "fetch board actions", err)
		}
	}
	report.FetchedAt = fetchedAt
	report.Fetched = len(page)
	checkpoint := nextCheckpoint(since, fetchedAt, page)
	e.metrics.Fetched(len(page))
	logger.Debug("actions fetched", "count", len(page), "types", report.RequestedTypes)

	// FILTERING/ORDERING
	e.setState(StateFiltering)
	pipeline := filter.New(e.opts.Filter,
		filter.WithRequestedTypes(report.RequestedTypes),
		filter.WithLogger(logger),
	)
	kept, stats := pipeline.Apply(page)
	report.Filter = stats
	for _, reason := range stats.SortedReasons() {
		e.metrics.Dropped(string(reason), stats.Dropped[reason])
	}
	chronological(kept)

	// DELIVERING
	e.setState(StateDelivering)
	failures, err := e.deliver(ctx, kept, report, logger)
	if err != nil {
		return err
	}

	// CHECKPOINTING
	e.setState(StateCheckpointing)
	if err := e.checkpoints.Save(ctx, checkpoint); err != nil {
		if errors.Is(err, store.ErrInsecurePermissions) {
			return newRunError(ErrCodePrecondition, report.RunID, "checkpoint store refused", err)
		}
		return newRunError(ErrCodeCheckpointFailed, report.RunID, "save checkpoint", err)
	}
	report.Checkpoint = checkpoint
	report.CheckpointSaved = true
	e.metrics.Checkpointed(checkpoint)

	e.setState(StateDone)
	if len(failures) > 0 {
		return newRunError(ErrCodeDeliveryFailed, report.RunID,
			fmt.Sprintf("%d of %d messages rejected", len(failures), len(failures)+report.Delivered),
			errors.Join(failures...))
	}
	return nil
}

// deliver renders and sends kept, in order. Rejected messages are collected
// and do not stop the batch; a cancelled context does.
func (e *Engine) deliver(ctx context.Context, kept []trello.Action, report *Report, logger *slog.Logger) ([]error, error) {
	var failures []error
	for _, a := range kept {
		if err := ctx.Err(); err != nil {
			return nil, newRunError(ErrCodeCancelled, report.RunID, "delivery interrupted", err)
		}

		msg, ok, err := e.formatter.Render(a)
		if err != nil {
			report.Malformed++
			e.metrics.RenderFailed()
			logger.Warn("action skipped", "action_id", a.ID, "type", a.Type, "error", err)
			continue
		}
		if !ok {
			report.Suppressed++
			e.metrics.Suppressed()
			logger.Debug("action suppressed", "action_id", a.ID, "type", a.Type)
			continue
		}

		if err := e.sink.Deliver(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil, newRunError(ErrCodeCancelled, report.RunID, "delivery interrupted", ctx.Err())
			}
			report.Failed++
			e.metrics.DeliveryFailed()
			logger.Error("delivery failed", "action_id", a.ID, "type", a.Type, "error", err)
			failures = append(failures, DeliveryFailure{ActionID: a.ID, Err: err})
			continue
		}
		report.Delivered++
		report.Messages = append(report.Messages, msg)
		e.metrics.Delivered()
		logger.Debug("message delivered", "action_id", a.ID, "type", a.Type)
	}
	return failures, nil
}

func (e *Engine) finish(ctx context.Context, report *Report, runErr error, logger *slog.Logger) {
	outcome := string(report.State)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		if code := CodeOf(runErr); code != "" {
			outcome = strings.ToLower(string(code))
		}
	}
	e.metrics.RunFinished(outcome, report.FinishedAt)

	attrs := []any{
		"state", report.State,
		"fetched", report.Fetched,
		"kept", report.Kept(),
		"delivered", report.Delivered,
		"suppressed", report.Suppressed,
		"malformed", report.Malformed,
		"failed", report.Failed,
	}
	if runErr != nil {
		logger.Error("run finished with error", append(attrs, "error", runErr)...)
	} else {
		logger.Info("run finished", attrs...)
	}

	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(context.WithoutCancel(ctx), report.Record(errMsg)); err != nil {
		logger.Warn("run history not recorded", "error", err)
	}
}

// nextCheckpoint is the latest of since, the fetch instant and the newest
// action in page. The source only returns actions strictly after since, so
// nothing in page is served again and the cursor never moves back.
func nextCheckpoint(since, fetchedAt time.Time, page []trello.Action) time.Time {
	next := fetchedAt
	if since.After(next) {
		next = since
	}
	for _, a := range page {
		if a.Date.After(next) {
			next = a.Date
		}
	}
	return next
}

// chronological reverses a newest-first page and then sorts it by date,
// keeping the reversed order among equal dates.
func chronological(actions []trello.Action) {
	for i, j := 0, len(actions)-1; i < j; i, j = i+1, j-1 {
		actions[i], actions[j] = actions[j], actions[i]
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Date.Before(actions[j].Date)
	})
}
