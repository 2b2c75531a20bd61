package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/boardhook/internal/engine"
	"github.com/roach88/boardhook/internal/filter"
	"github.com/roach88/boardhook/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Messages []string // Delivered messages for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nDelivered messages:\n")
	for i, msg := range e.Messages {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, msg)
	}

	return buf.String()
}

// assertMessageContains checks that some delivered message contains the text.
func assertMessageContains(messages []string, assertion Assertion) error {
	if indexOf(messages, assertion.Text, 0) >= 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertMessageContains,
		Expected: fmt.Sprintf("a message containing %q", assertion.Text),
		Actual:   "not found in delivered messages",
		Messages: messages,
	}
}

// assertMessageOrder checks that messages containing each text appear in
// order. Messages don't need to be consecutive.
func assertMessageOrder(messages []string, assertion Assertion) error {
	pos := 0
	for i, text := range assertion.Texts {
		found := indexOf(messages, text, pos)
		if found < 0 {
			actual := fmt.Sprintf("no message containing %q", text)
			if i > 0 && indexOf(messages, text, 0) >= 0 {
				actual = fmt.Sprintf("%q appears before %q", text, assertion.Texts[i-1])
			}
			return &AssertionError{
				Type:     AssertMessageOrder,
				Expected: fmt.Sprintf("messages in order: %q", assertion.Texts),
				Actual:   actual,
				Messages: messages,
			}
		}
		pos = found + 1
	}
	return nil
}

// assertMessageCount checks the number of delivered messages.
func assertMessageCount(messages []string, assertion Assertion) error {
	if len(messages) == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertMessageCount,
		Expected: fmt.Sprintf("%d messages", assertion.Count),
		Actual:   fmt.Sprintf("%d messages", len(messages)),
		Messages: messages,
	}
}

// assertDropped checks the filter statistics of the run.
func assertDropped(report *engine.Report, assertion Assertion) error {
	got := 0
	if report != nil {
		got = report.Filter.Dropped[filter.Reason(assertion.Reason)]
	}
	if got == assertion.Count {
		return nil
	}
	var messages []string
	if report != nil {
		messages = report.Messages
	}
	return &AssertionError{
		Type:     AssertDropped,
		Expected: fmt.Sprintf("%d actions dropped for %s", assertion.Count, assertion.Reason),
		Actual:   fmt.Sprintf("%d dropped", got),
		Messages: messages,
	}
}

// assertHistory checks the recorded run history.
func assertHistory(history []store.RunRecord, messages []string, assertion Assertion) error {
	if len(history) != assertion.Count {
		return &AssertionError{
			Type:     AssertHistory,
			Expected: fmt.Sprintf("%d recorded runs", assertion.Count),
			Actual:   fmt.Sprintf("%d recorded runs", len(history)),
			Messages: messages,
		}
	}
	if assertion.State != "" && len(history) > 0 && history[0].State != assertion.State {
		return &AssertionError{
			Type:     AssertHistory,
			Expected: fmt.Sprintf("latest run in state %s", assertion.State),
			Actual:   fmt.Sprintf("latest run in state %s", history[0].State),
			Messages: messages,
		}
	}
	return nil
}

// indexOf returns the index of the first message at or after from that
// contains text, or -1.
func indexOf(messages []string, text string, from int) int {
	for i := from; i < len(messages); i++ {
		if strings.Contains(messages[i], text) {
			return i
		}
	}
	return -1
}

// AssertionContext provides the run bookkeeping assertions may inspect.
type AssertionContext struct {
	Report  *engine.Report
	History []store.RunRecord
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the report and history for dropped and
// history assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertMessageContains:
			err = assertMessageContains(result.Messages, assertion)
		case AssertMessageOrder:
			err = assertMessageOrder(result.Messages, assertion)
		case AssertMessageCount:
			err = assertMessageCount(result.Messages, assertion)
		case AssertDropped:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: dropped requires a run report", i)
			} else {
				err = assertDropped(actx.Report, assertion)
			}
		case AssertHistory:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: history requires run history", i)
			} else {
				err = assertHistory(actx.History, result.Messages, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
