package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/boardhook/internal/config"
	"github.com/roach88/boardhook/internal/discord"
	"github.com/roach88/boardhook/internal/engine"
	"github.com/roach88/boardhook/internal/metrics"
	"github.com/roach88/boardhook/internal/render"
	"github.com/roach88/boardhook/internal/store"
	"github.com/roach88/boardhook/internal/trello"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	Interval time.Duration
	Timeout  time.Duration

	// Clock and RunIDGenerator override the engine defaults (for testing).
	Clock          engine.Clock
	RunIDGenerator engine.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Relay new board activity to Discord",
		Long: `Fetch the board actions since the last checkpoint and post them to the
Discord webhook, oldest first.

Without --interval the command performs a single run and exits, which suits
cron. With --interval it keeps running, one run per tick, until interrupted.
A failed run is logged and retried on the next tick; only a precondition
failure (bad configuration, insecure database) stops the loop.

Exit codes:
  0  run completed and every message was delivered
  1  run failed or at least one message was rejected
  2  configuration or precondition error

Example:
  boardhook run --config boardhook.yaml
  boardhook run --config boardhook.yaml --interval 5m --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "boardhook.yaml", "path to the configuration file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the checkpoint database (overrides persistence.path)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "repeat the run at this interval (0 runs once)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Minute, "upper bound for a single run (0 disables)")

	return cmd
}

func runSync(opts *RunOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	out := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Persistence.Path
	}

	var m *metrics.Metrics
	if cfg.Metrics.Textfile != "" {
		m = metrics.New()
	}

	// Use command's context if available (for testing)
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	once := func() error {
		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if opts.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		defer cancel()

		eng := buildEngine(cfg, dbPath, logger, m, opts)
		report, runErr := eng.Run(runCtx)
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("metrics not written", "path", cfg.Metrics.Textfile, "error", err)
		}
		if err := printReport(out, report, runErr); err != nil {
			return err
		}
		return runErr
	}

	if opts.Interval <= 0 {
		if err := once(); err != nil {
			return RunExitError(err)
		}
		return nil
	}

	logger.Info("polling board", "board", cfg.Trello.BoardID, "interval", opts.Interval)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopped", "reason", context.Cause(ctx))
			return nil
		case <-timer.C:
			err := once()
			switch {
			case ctx.Err() != nil:
				return nil
			case engine.IsPrecondition(err):
				return RunExitError(err)
			case err != nil && engine.CodeOf(err) == "":
				return err
			}
			timer.Reset(opts.Interval)
		}
	}
}

// buildEngine wires one single-use engine from cfg.
func buildEngine(cfg config.Config, dbPath string, logger *slog.Logger, m *metrics.Metrics, opts *RunOptions) *engine.Engine {
	trelloOpts := []trello.ClientOption{
		trello.WithHTTPClient(&http.Client{Timeout: cfg.Trello.Timeout}),
		trello.WithLimit(cfg.Trello.Limit),
		trello.WithLogger(logger),
	}
	if cfg.Trello.BaseURL != "" {
		trelloOpts = append(trelloOpts, trello.WithBaseURL(cfg.Trello.BaseURL))
	}
	source := trello.NewClient(cfg.Trello.Key, cfg.Trello.Token, trelloOpts...)

	sink := discord.NewWebhook(cfg.Discord.WebhookURL,
		discord.WithHTTPClient(&http.Client{Timeout: cfg.Discord.Timeout}),
		discord.WithRateLimit(cfg.Discord.RatePerSecond, cfg.Discord.Burst),
		discord.WithLogger(logger),
	)

	checkpoints := store.Checkpoints{Path: dbPath, BoardID: cfg.Trello.BoardID}
	formatter := render.Default(
		render.WithAliases(cfg.Aliases()),
		render.WithLogger(logger),
	)

	return engine.New(source, sink, checkpoints, formatter,
		engine.Options{BoardID: cfg.Trello.BoardID, Filter: cfg.FilterConfig(), Settings: cfg},
		engine.WithClock(opts.Clock),
		engine.WithRunIDGenerator(opts.RunIDGenerator),
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithRecorder(checkpoints),
	)
}

// printReport writes the outcome of one run.
func printReport(out *OutputFormatter, report *engine.Report, runErr error) error {
	if report == nil {
		return out.Error(ErrCodeGeneric, runErr.Error(), nil)
	}

	if out.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: report, RunID: report.RunID}
		if runErr != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: string(engine.CodeOf(runErr)), Message: runErr.Error()}
		}
		return encodeJSON(out.Writer, resp)
	}

	mark := "✓"
	if runErr != nil {
		mark = "✗"
	}
	fmt.Fprintf(out.Writer, "%s run %s (%s): fetched %d, kept %d, delivered %d",
		mark, report.RunID, report.State, report.Fetched, report.Kept(), report.Delivered)
	if report.Failed > 0 {
		fmt.Fprintf(out.Writer, ", rejected %d", report.Failed)
	}
	if report.Malformed > 0 {
		fmt.Fprintf(out.Writer, ", malformed %d", report.Malformed)
	}
	fmt.Fprintln(out.Writer)
	if report.CheckpointSaved {
		fmt.Fprintf(out.Writer, "  checkpoint: %s\n", report.Checkpoint.UTC().Format(time.RFC3339Nano))
	}
	if runErr != nil {
		fmt.Fprintf(out.Writer, "  error: %v\n", runErr)
	}
	return nil
}
