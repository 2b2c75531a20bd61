package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotLoaded is returned when a Config is used before Load or Parse
// produced it.
var ErrNotLoaded = errors.New("config: settings requested before configuration load")

// ValidationError lists every constraint a configuration file violates.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid config %s: %s", e.Source, e.Problems[0])
	}
	return fmt.Sprintf("invalid config %s:\n  %s", e.Source, strings.Join(e.Problems, "\n  "))
}
