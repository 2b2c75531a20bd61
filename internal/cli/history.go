package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/boardhook/internal/config"
	"github.com/roach88/boardhook/internal/store"
)

// StoreOptions locate the checkpoint database and the board within it.
// Flags win over the configuration file.
type StoreOptions struct {
	Config   string
	Database string
	Board    string
}

func (o *StoreOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Config, "config", "", "configuration supplying the database path and board id")
	cmd.Flags().StringVar(&o.Database, "db", "", "path to the checkpoint database")
	cmd.Flags().StringVar(&o.Board, "board", "", "Trello board id")
}

// resolve fills the database path and board id from the configuration
// where the flags left them empty.
func (o *StoreOptions) resolve() (dbPath, boardID string, err error) {
	dbPath, boardID = o.Database, o.Board
	if o.Config != "" {
		cfg, err := config.Load(o.Config)
		if err != nil {
			return "", "", WrapExitError(ExitCommandError, "failed to load configuration", err)
		}
		if dbPath == "" {
			dbPath = cfg.Persistence.Path
		}
		if boardID == "" {
			boardID = cfg.Trello.BoardID
		}
	}
	switch {
	case dbPath == "":
		return "", "", NewExitError(ExitCommandError, "a database is required: pass --db or --config")
	case boardID == "":
		return "", "", NewExitError(ExitCommandError, "a board is required: pass --board or --config")
	}
	return dbPath, boardID, nil
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	StoreOptions
	Limit int
}

// HistoryResult holds the history output.
type HistoryResult struct {
	BoardID string            `json:"board_id"`
	Runs    []store.RunRecord `json:"runs"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs of a board",
		Long: `Show the recorded runs of a board, most recent first.

Every run that reached a terminal state is recorded, including aborted
ones, with its counters and error.

Examples:
  boardhook history --config boardhook.yaml
  boardhook history --db ./boardhook.db --board 5f0c1a --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	dbPath, boardID, err := opts.resolve()
	if err != nil {
		return err
	}
	// Opening creates missing files; history never should.
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		_ = out.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", dbPath), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		_ = out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runs, err := st.ListRuns(ctx, boardID, opts.Limit)
	if err != nil {
		_ = out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read run history", err)
	}

	if out.Format == "json" {
		return out.Success(HistoryResult{BoardID: boardID, Runs: runs})
	}
	if len(runs) == 0 {
		fmt.Fprintf(out.Writer, "No runs recorded for board %s\n", boardID)
		return nil
	}
	return writeHistoryTable(out, runs)
}

func writeHistoryTable(out *OutputFormatter, runs []store.RunRecord) error {
	tw := tabwriter.NewWriter(out.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tSTATE\tFETCHED\tKEPT\tDELIVERED\tFAILED\tDROPPED\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.StartedAt.UTC().Format(time.RFC3339),
			r.RunID,
			r.State,
			r.Fetched,
			r.Kept,
			r.Delivered,
			r.Failed,
			droppedTotal(r.Dropped),
			firstLine(r.Error, out.Verbose),
		)
	}
	return tw.Flush()
}

func droppedTotal(dropped map[string]int) int {
	n := 0
	for _, c := range dropped {
		n += c
	}
	return n
}

// firstLine shortens multi-line errors unless verbose.
func firstLine(s string, verbose bool) string {
	if s == "" {
		return "-"
	}
	if verbose {
		return strings.ReplaceAll(s, "\n", " | ")
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
