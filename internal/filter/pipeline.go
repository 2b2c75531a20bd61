package filter

import (
	"log/slog"
	"sort"

	"github.com/roach88/boardhook/internal/trello"
)

// Reason names why an action was dropped.
type Reason string

const (
	// ReasonMutedType drops an action whose type is muted.
	ReasonMutedType Reason = "muted_type"

	// ReasonUnrequestedType drops an action of a type the run never asked
	// for, in case the upstream ignored the request filter.
	ReasonUnrequestedType Reason = "unrequested_type"

	// ReasonVacuousUpdate drops an update with nothing left in its diff.
	ReasonVacuousUpdate Reason = "vacuous_update"

	// ReasonMutedList drops an update moving a card into a muted list.
	ReasonMutedList Reason = "muted_list"

	// ReasonCompanionUpdate drops an update that only mirrors a membership
	// action on the same card within the same page.
	ReasonCompanionUpdate Reason = "companion_update"
)

// Reasons lists every drop reason in pipeline order.
var Reasons = []Reason{
	ReasonMutedType,
	ReasonUnrequestedType,
	ReasonVacuousUpdate,
	ReasonMutedList,
	ReasonCompanionUpdate,
}

// Stats summarizes one Apply call.
type Stats struct {
	Input   int            `json:"input"`
	Kept    int            `json:"kept"`
	Dropped map[Reason]int `json:"dropped,omitempty"`
}

// DroppedTotal returns the number of dropped actions over all reasons.
func (s Stats) DroppedTotal() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

func (s *Stats) drop(r Reason) {
	if s.Dropped == nil {
		s.Dropped = make(map[Reason]int)
	}
	s.Dropped[r]++
}

// Pipeline applies a Config to pages of actions.
type Pipeline struct {
	cfg       Config
	requested map[string]struct{}
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRequestedTypes restricts the pipeline to the given types. Without it,
// every non-muted type passes the type stage.
func WithRequestedTypes(types []string) Option {
	return func(p *Pipeline) {
		p.requested = make(map[string]struct{}, len(types))
		for _, t := range types {
			p.requested[t] = struct{}{}
		}
	}
}

// WithLogger sets the logger that receives one debug line per drop.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Pipeline for cfg.
func New(cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the configuration the pipeline applies.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Apply filters actions and returns the survivors in input order.
//
// Each survivor is a clone; muted fields are removed from its diff. The
// input slice and its actions are left untouched.
func (p *Pipeline) Apply(actions []trello.Action) ([]trello.Action, Stats) {
	stats := Stats{Input: len(actions)}
	members := membershipCards(actions)

	out := make([]trello.Action, 0, len(actions))
	for _, a := range actions {
		kept, reason := p.apply(a, members)
		if reason != "" {
			stats.drop(reason)
			p.logger.Debug("action dropped",
				"action_id", a.ID,
				"type", a.Type,
				"reason", string(reason),
			)
			continue
		}
		out = append(out, kept)
	}
	stats.Kept = len(out)
	return out, stats
}

func (p *Pipeline) apply(a trello.Action, members map[string]struct{}) (trello.Action, Reason) {
	if p.cfg.TypeMuted(a.Type) {
		return a, ReasonMutedType
	}
	if p.requested != nil {
		if _, ok := p.requested[a.Type]; !ok {
			return a, ReasonUnrequestedType
		}
	}
	if !isUpdate(a) {
		return a.Clone(), ""
	}

	c := a.Clone()
	for _, field := range c.Data.Old.Keys() {
		if p.cfg.FieldMuted(field) {
			c.Data.Old.Delete(field)
		}
	}
	if c.Data.Old.Len() == 0 {
		return a, ReasonVacuousUpdate
	}
	if after := c.Data.ListAfter; after != nil && p.cfg.ListMuted(after.Name) {
		return a, ReasonMutedList
	}
	if onlyCompanionFields(c.Data.Old) {
		if _, ok := members[c.CardID()]; ok {
			return a, ReasonCompanionUpdate
		}
	}
	return c, ""
}

// isUpdate reports whether a carries a field diff.
func isUpdate(a trello.Action) bool {
	return a.Type == trello.TypeUpdateCard || a.Data.Old != nil
}

func onlyCompanionFields(d *trello.Diff) bool {
	for _, k := range d.Keys() {
		if !trello.IsCompanionField(k) {
			return false
		}
	}
	return d.Len() > 0
}

// membershipCards collects the cards that gained or lost a member in the page.
func membershipCards(actions []trello.Action) map[string]struct{} {
	cards := make(map[string]struct{})
	for _, a := range actions {
		if !trello.IsMembershipType(a.Type) {
			continue
		}
		if id := a.CardID(); id != "" {
			cards[id] = struct{}{}
		}
	}
	return cards
}

// SortedReasons returns the reasons present in s, in pipeline order first
// and any unknown reasons after, alphabetically.
func (s Stats) SortedReasons() []Reason {
	known := make(map[Reason]bool, len(Reasons))
	var out []Reason
	for _, r := range Reasons {
		known[r] = true
		if s.Dropped[r] > 0 {
			out = append(out, r)
		}
	}
	var extra []Reason
	for r, n := range s.Dropped {
		if !known[r] && n > 0 {
			extra = append(extra, r)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
