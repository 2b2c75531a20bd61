package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/boardhook/internal/config"
	"github.com/roach88/boardhook/internal/engine"
	"github.com/roach88/boardhook/internal/filter"
	"github.com/roach88/boardhook/internal/render"
	"github.com/roach88/boardhook/internal/trello"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Config string
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <actions.json>",
		Short: "Preview the messages a page of actions would produce",
		Long: `Render a saved page of Trello board actions offline.

The file holds a JSON array of actions, newest first, as returned by the
board actions endpoint. The page goes through the same filtering, ordering
and rendering as a run, but nothing is fetched, posted or checkpointed.

With --config the muted types, fields, lists and aliases of that
configuration apply; without it nothing is muted.

Examples:
  boardhook render page.json
  boardhook render --config boardhook.yaml page.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "configuration whose filters and aliases apply")

	return cmd
}

func runRender(opts *RenderOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.Verbose, cmd.ErrOrStderr())

	filterCfg := filter.Config{}
	var aliases map[string]string
	if opts.Config != "" {
		cfg, err := config.Load(opts.Config)
		if err != nil {
			_ = out.Error(ErrCodeInvalidConfig, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load configuration", err)
		}
		filterCfg = cfg.FilterConfig()
		aliases = cfg.Aliases()
	}

	page, err := readPage(path)
	if err != nil {
		code := ErrCodeInvalidInput
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		_ = out.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read actions", err)
	}
	out.VerboseLog("Loaded %d action(s) from %s", len(page), path)

	formatter := render.Default(render.WithAliases(aliases), render.WithLogger(logger))
	res := engine.Preview(page, filterCfg, formatter, logger)

	if out.Format == "json" {
		return out.Success(res)
	}

	w := out.Writer
	for _, it := range res.Items {
		switch {
		case it.Error != "":
			fmt.Fprintf(w, "✗ %s %s: %s\n", it.ActionID, it.Type, it.Error)
		case it.Suppressed:
			if out.Verbose {
				fmt.Fprintf(w, "- %s %s: suppressed\n", it.ActionID, it.Type)
			}
		default:
			fmt.Fprintln(w, it.Message)
		}
	}
	fmt.Fprintf(w, "\n%d action(s), %d kept, %d message(s)", res.Filter.Input, res.Filter.Kept, len(res.Messages()))
	for _, reason := range res.Filter.SortedReasons() {
		fmt.Fprintf(w, ", %d %s", res.Filter.Dropped[reason], reason)
	}
	fmt.Fprintln(w)
	return nil
}

// readPage decodes a JSON array of actions.
func readPage(path string) ([]trello.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var page []trello.Action
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return page, nil
}
