package harness

import (
	"time"

	"github.com/roach88/boardhook/internal/engine"
	"github.com/roach88/boardhook/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the expectation and every assertion hold.
	Pass bool `json:"pass"`

	// Messages are the messages the webhook accepted, in delivery order.
	Messages []string `json:"messages"`

	// Attempts counts every delivery attempt, accepted or rejected.
	Attempts int `json:"attempts"`

	// Report is the engine's report of the run.
	Report *engine.Report `json:"report"`

	// ErrorCode is the run error code, empty for a clean run.
	ErrorCode string `json:"error_code,omitempty"`

	// CheckpointBefore and CheckpointAfter are the stored checkpoints around
	// the run. Zero means none was stored.
	CheckpointBefore time.Time `json:"checkpoint_before,omitzero"`
	CheckpointAfter  time.Time `json:"checkpoint_after,omitzero"`

	// History holds the recorded runs, newest first.
	History []store.RunRecord `json:"history,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Messages: []string{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// CheckpointOutcome reports whether the run moved the stored checkpoint.
func (r *Result) CheckpointOutcome() string {
	if r.CheckpointAfter.Equal(r.CheckpointBefore) {
		return CheckpointUnchanged
	}
	return CheckpointAdvanced
}
