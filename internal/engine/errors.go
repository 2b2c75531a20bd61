package engine

import (
	"errors"
	"fmt"
)

// RunError represents an error that ended or degraded a run.
//
// Run errors include:
//   - Source unavailable: the fetch failed; checkpoint untouched, retry next run
//   - Precondition: the checkpoint store refused to open or the run is misconfigured
//   - Delivery failed: one or more messages were rejected; checkpoint still advanced
//   - Checkpoint failed: the store could not be read or written
//   - Cancelled: the context ended mid-run; checkpoint untouched
//
// RunError wraps the underlying cause, so errors.Is still sees
// trello.ErrSourceUnavailable, discord.ErrDeliveryFailed and the like.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Err is the underlying cause.
	Err error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeSourceUnavailable indicates the action source could not be reached
	// or answered with a non-success status.
	ErrCodeSourceUnavailable RunErrorCode = "SOURCE_UNAVAILABLE"

	// ErrCodeFetchFailed indicates the source answered but the page could not
	// be used (e.g. undecodable body).
	ErrCodeFetchFailed RunErrorCode = "FETCH_FAILED"

	// ErrCodePrecondition indicates the run was refused before fetching.
	ErrCodePrecondition RunErrorCode = "PRECONDITION"

	// ErrCodeDeliveryFailed indicates the sink rejected at least one message.
	ErrCodeDeliveryFailed RunErrorCode = "DELIVERY_FAILED"

	// ErrCodeCheckpointFailed indicates the checkpoint could not be loaded or saved.
	ErrCodeCheckpointFailed RunErrorCode = "CHECKPOINT_FAILED"

	// ErrCodeAlreadyRun indicates Run was called twice on one Engine.
	ErrCodeAlreadyRun RunErrorCode = "ALREADY_RUN"

	// ErrCodeCancelled indicates the context ended before the run finished.
	ErrCodeCancelled RunErrorCode = "CANCELLED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.RunID != "" {
		msg += fmt.Sprintf(" (run=%s)", e.RunID)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// IsSourceUnavailable returns true if the run aborted because the source was
// unreachable. Uses errors.As to handle wrapped errors.
func IsSourceUnavailable(err error) bool {
	return hasCode(err, ErrCodeSourceUnavailable)
}

// IsPrecondition returns true if the run was refused before fetching.
func IsPrecondition(err error) bool {
	return hasCode(err, ErrCodePrecondition)
}

// IsDeliveryFailure returns true if at least one message was rejected.
func IsDeliveryFailure(err error) bool {
	return hasCode(err, ErrCodeDeliveryFailed)
}

// IsCancelled returns true if the run stopped because its context ended.
func IsCancelled(err error) bool {
	return hasCode(err, ErrCodeCancelled)
}

// CodeOf returns the code of the RunError in err's chain, or "".
func CodeOf(err error) RunErrorCode {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func hasCode(err error, code RunErrorCode) bool {
	return CodeOf(err) == code
}

// DeliveryFailure pairs a rejected message with its action.
type DeliveryFailure struct {
	ActionID string
	Err      error
}

func (f DeliveryFailure) Error() string {
	return fmt.Sprintf("action %s: %v", f.ActionID, f.Err)
}

func (f DeliveryFailure) Unwrap() error {
	return f.Err
}

func newRunError(code RunErrorCode, runID, message string, err error) *RunError {
	return &RunError{Code: code, Message: message, RunID: runID, Err: err}
}
