package engine

import (
	"time"

	"github.com/roach88/boardhook/internal/filter"
	"github.com/roach88/boardhook/internal/store"
)

// State is a step of the run state machine.
//
//	init -> fetching -> filtering -> delivering -> checkpointing -> done
//
// aborted is terminal and reachable from init (precondition), fetching
// (source unavailable), delivering (cancellation) and checkpointing (store
// failure).
type State string

const (
	StateInit          State = "init"
	StateFetching      State = "fetching"
	StateFiltering     State = "filtering"
	StateDelivering    State = "delivering"
	StateCheckpointing State = "checkpointing"
	StateDone          State = "done"
	StateAborted       State = "aborted"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Report describes one run, successful or not.
type Report struct {
	RunID      string    `json:"run_id"`
	BoardID    string    `json:"board_id"`
	State      State     `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Since is the checkpoint the run started from.
	Since time.Time `json:"since"`

	// FetchedAt is the clock reading taken just before the fetch.
	FetchedAt time.Time `json:"fetched_at,omitzero"`

	// Checkpoint is the cursor stored when the run reached done: FetchedAt,
	// or the newest fetched action date when the source clock is ahead.
	Checkpoint time.Time `json:"checkpoint,omitzero"`

	// CheckpointSaved is true once Checkpoint has been stored.
	CheckpointSaved bool `json:"checkpoint_saved"`

	RequestedTypes []string     `json:"requested_types"`
	Fetched        int          `json:"fetched"`
	Filter         filter.Stats `json:"filter"`
	Delivered      int          `json:"delivered"`
	Suppressed     int          `json:"suppressed"`
	Malformed      int          `json:"malformed"`
	Failed         int          `json:"failed"`

	// Messages holds the delivered messages in delivery order.
	Messages []string `json:"messages"`
}

// Kept is the number of actions that survived filtering.
func (r *Report) Kept() int {
	return r.Filter.Kept
}

// Record converts the report into a history row. errMsg is the run error,
// if any.
func (r *Report) Record(errMsg string) store.RunRecord {
	var dropped map[string]int
	if len(r.Filter.Dropped) > 0 {
		dropped = make(map[string]int, len(r.Filter.Dropped))
		for reason, n := range r.Filter.Dropped {
			dropped[string(reason)] = n
		}
	}
	return store.RunRecord{
		RunID:      r.RunID,
		BoardID:    r.BoardID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		State:      string(r.State),
		Since:      r.Since,
		FetchedAt:  r.FetchedAt,
		Fetched:    r.Fetched,
		Kept:       r.Kept(),
		Delivered:  r.Delivered,
		Suppressed: r.Suppressed,
		Malformed:  r.Malformed,
		Failed:     r.Failed,
		Dropped:    dropped,
		Error:      errMsg,
	}
}
