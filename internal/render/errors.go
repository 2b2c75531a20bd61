package render

import (
	"errors"
	"fmt"
)

// ErrMalformedAction matches every *MalformedError.
var ErrMalformedAction = errors.New("render: malformed action")

// MalformedError reports an action missing a field its renderer needs.
type MalformedError struct {
	Type     string
	ActionID string
	Field    string
	Err      error
}

func (e *MalformedError) Error() string {
	msg := fmt.Sprintf("render %s %s: missing %s", e.Type, e.ActionID, e.Field)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedAction
}

// missing is shorthand used by renderers; Registry.Render fills in the
// action identity.
func missing(field string) error {
	return &MalformedError{Field: field}
}
