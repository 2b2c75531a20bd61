package engine

import (
	"log/slog"
	"time"

	"github.com/roach88/boardhook/internal/filter"
	"github.com/roach88/boardhook/internal/trello"
)

// PreviewItem is one kept action and what a run would send for it.
type PreviewItem struct {
	ActionID   string    `json:"action_id"`
	Type       string    `json:"type"`
	Date       time.Time `json:"date"`
	Message    string    `json:"message,omitempty"`
	Suppressed bool      `json:"suppressed,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// PreviewResult is the offline rendition of one page.
type PreviewResult struct {
	RequestedTypes []string      `json:"requested_types"`
	Filter         filter.Stats  `json:"filter"`
	Items          []PreviewItem `json:"items"`
}

// Messages returns the messages a run would deliver, in order.
func (p PreviewResult) Messages() []string {
	msgs := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		if it.Message != "" {
			msgs = append(msgs, it.Message)
		}
	}
	return msgs
}

// Preview runs page through the filter, ordering and rendering steps of a
// run without fetching, delivering or checkpointing. page is newest first,
// as the source returns it.
func Preview(page []trello.Action, cfg filter.Config, formatter Formatter, logger *slog.Logger) PreviewResult {
	if logger == nil {
		logger = slog.Default()
	}
	requested := cfg.RequestedTypes(formatter.Types())
	pipeline := filter.New(cfg,
		filter.WithRequestedTypes(requested),
		filter.WithLogger(logger),
	)
	kept, stats := pipeline.Apply(page)
	chronological(kept)

	res := PreviewResult{
		RequestedTypes: requested,
		Filter:         stats,
		Items:          make([]PreviewItem, 0, len(kept)),
	}
	for _, a := range kept {
		item := PreviewItem{ActionID: a.ID, Type: a.Type, Date: a.Date}
		msg, ok, err := formatter.Render(a)
		switch {
		case err != nil:
			item.Error = err.Error()
		case !ok:
			item.Suppressed = true
		default:
			item.Message = msg
		}
		res.Items = append(res.Items, item)
	}
	return res
}
