package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/boardhook/internal/store"
)

// CheckpointOptions holds flags for the checkpoint command.
type CheckpointOptions struct {
	*RootOptions
	StoreOptions
	Reset bool
	Set   string
}

// CheckpointResult describes a board's checkpoint after the command.
type CheckpointResult struct {
	BoardID    string     `json:"board_id"`
	Checkpoint *time.Time `json:"checkpoint"`
	Action     string     `json:"action"` // "show", "set" or "reset"
	Existed    bool       `json:"existed,omitempty"`
}

// NewCheckpointCommand creates the checkpoint command.
func NewCheckpointCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckpointOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Show, set or reset a board's checkpoint",
		Long: `Show, set or reset the instant the next run fetches from.

--set moves the checkpoint, which replays or skips activity on the next run.
--reset removes it, so the next run starts from that moment and posts
nothing older.

Examples:
  boardhook checkpoint --config boardhook.yaml
  boardhook checkpoint --db ./boardhook.db --board 5f0c1a --set 2024-03-01T10:00:00Z
  boardhook checkpoint --config boardhook.yaml --reset`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpoint(opts, cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "remove the checkpoint")
	cmd.Flags().StringVar(&opts.Set, "set", "", "store this RFC 3339 instant as the checkpoint")
	cmd.MarkFlagsMutuallyExclusive("reset", "set")

	return cmd
}

func runCheckpoint(opts *CheckpointOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	var setTo time.Time
	if opts.Set != "" {
		t, err := time.Parse(time.RFC3339Nano, opts.Set)
		if err != nil {
			_ = out.Error(ErrCodeInvalidInput, fmt.Sprintf("invalid --set value %q: expected RFC 3339", opts.Set), nil)
			return WrapExitError(ExitCommandError, "invalid checkpoint", err)
		}
		setTo = t.UTC()
	}

	dbPath, boardID, err := opts.resolve()
	if err != nil {
		return err
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

	res := CheckpointResult{BoardID: boardID, Action: "show"}
	switch {
	case opts.Reset:
		res.Action = "reset"
		res.Existed, err = st.DeleteCheckpoint(ctx, boardID)
	case !setTo.IsZero():
		res.Action = "set"
		if err = st.SaveCheckpoint(ctx, boardID, setTo); err == nil {
			res.Checkpoint = &setTo
		}
	default:
		var (
			t  time.Time
			ok bool
		)
		t, ok, err = st.LoadCheckpoint(ctx, boardID)
		if ok {
			res.Checkpoint = &t
		}
	}
	if err != nil {
		_ = out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitFailure, "checkpoint "+res.Action+" failed", err)
	}

	if out.Format == "json" {
		return out.Success(res)
	}
	switch {
	case res.Action == "reset" && res.Existed:
		return out.Success(fmt.Sprintf("✓ checkpoint of %s removed; the next run starts from now", boardID))
	case res.Action == "reset":
		return out.Success(fmt.Sprintf("board %s had no checkpoint", boardID))
	case res.Checkpoint == nil:
		return out.Success(fmt.Sprintf("board %s has no checkpoint; the next run starts from now", boardID))
	case res.Action == "set":
		return out.Success(fmt.Sprintf("✓ checkpoint of %s set to %s", boardID, res.Checkpoint.Format(time.RFC3339Nano)))
	default:
		return out.Success(fmt.Sprintf("%s %s", boardID, res.Checkpoint.Format(time.RFC3339Nano)))
	}
}
