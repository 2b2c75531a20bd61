package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/boardhook/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Summary  *Summary `json:"summary,omitempty"`
	Filename string   `json:"file"`
}

// Summary describes a valid configuration without its secrets.
type Summary struct {
	BoardID           string   `json:"board_id"`
	TrelloBaseURL     string   `json:"trello_base_url"`
	WebhookHost       string   `json:"webhook_host"`
	RatePerSecond     float64  `json:"rate_per_second"`
	Burst             int      `json:"burst"`
	MutedActionTypes  []string `json:"muted_action_types,omitempty"`
	MutedUpdateFields []string `json:"muted_update_fields,omitempty"`
	MutedUpdateLists  []string `json:"muted_update_lists,omitempty"`
	Aliases           int      `json:"aliases"`
	Database          string   `json:"database"`
	MetricsTextfile   string   `json:"metrics_textfile,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a boardhook configuration file without contacting Trello or
Discord.

The file is checked for unknown keys and against the configuration schema.
On success a summary is printed; credentials are never echoed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, path, cmd)
		},
	}

	cmd.Flags().StringVar(&path, "config", "boardhook.yaml", "path to the configuration file")

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	formatter.VerboseLog("Validating %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		var verr *config.ValidationError
		switch {
		case errors.As(err, &verr):
			return outputValidationFailure(formatter, path, verr)
		case errors.Is(err, fs.ErrNotExist):
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "configuration not found", err)
		default:
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read configuration", err)
		}
	}

	summary := summarize(cfg)
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Summary: summary, Filename: path})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✓ %s is valid\n", path)
	fmt.Fprintf(&b, "  board:     %s\n", summary.BoardID)
	fmt.Fprintf(&b, "  trello:    %s\n", summary.TrelloBaseURL)
	fmt.Fprintf(&b, "  webhook:   %s (%.2g/s, burst %d)\n", summary.WebhookHost, summary.RatePerSecond, summary.Burst)
	fmt.Fprintf(&b, "  muted:     %d type(s), %d field(s), %d list(s)\n",
		len(summary.MutedActionTypes), len(summary.MutedUpdateFields), len(summary.MutedUpdateLists))
	fmt.Fprintf(&b, "  aliases:   %d\n", summary.Aliases)
	fmt.Fprintf(&b, "  database:  %s", summary.Database)
	if summary.MetricsTextfile != "" {
		fmt.Fprintf(&b, "\n  metrics:   %s", summary.MetricsTextfile)
	}
	return formatter.Success(b.String())
}

func outputValidationFailure(f *OutputFormatter, path string, verr *config.ValidationError) error {
	if f.Format == "json" {
		_ = encodeJSON(f.Writer, CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: verr.Problems, Filename: path},
			Error: &CLIError{
				Code:    ErrCodeInvalidConfig,
				Message: fmt.Sprintf("%s is invalid", path),
			},
		})
	} else {
		fmt.Fprintf(f.Writer, "✗ %s is invalid\n", path)
		for _, p := range verr.Problems {
			fmt.Fprintf(f.Writer, "  %s\n", p)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(verr.Problems)))
}

func summarize(cfg config.Config) *Summary {
	muted := cfg.FilterConfig()
	return &Summary{
		BoardID:           cfg.Trello.BoardID,
		TrelloBaseURL:     cfg.Trello.BaseURL,
		WebhookHost:       hostOf(cfg.Discord.WebhookURL),
		RatePerSecond:     cfg.Discord.RatePerSecond,
		Burst:             cfg.Discord.Burst,
		MutedActionTypes:  muted.MutedTypes(),
		MutedUpdateFields: muted.MutedFields(),
		MutedUpdateLists:  muted.MutedLists(),
		Aliases:           len(cfg.AliasMap),
		Database:          cfg.Persistence.Path,
		MetricsTextfile:   cfg.Metrics.Textfile,
	}
}

// hostOf returns the host of a webhook URL. The path carries the webhook
// token and is never shown.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(invalid url)"
	}
	return u.Host
}
