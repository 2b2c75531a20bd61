package trello

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable matches every *UnavailableError.
var ErrSourceUnavailable = errors.New("trello: source unavailable")

// UnavailableError reports a request that failed in transport or returned a
// non-2xx status.
type UnavailableError struct {
	Endpoint   string
	StatusCode int    // 0 when the request never got a response
	Message    string // response body excerpt, if any
	Err        error  // transport error, if any
}

func (e *UnavailableError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("trello %s: %v", e.Endpoint, e.Err)
	case e.Message != "":
		return fmt.Sprintf("trello %s: http %d: %s", e.Endpoint, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("trello %s: http %d", e.Endpoint, e.StatusCode)
	}
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}
