package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as the text stored in golden files: a short
// summary of the run followed by the delivered messages, one per line.
func Snapshot(scenarioName string, result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", scenarioName)
	if result.Report != nil {
		fmt.Fprintf(&buf, "state: %s\n", result.Report.State)
	}
	if result.ErrorCode != "" {
		fmt.Fprintf(&buf, "error: %s\n", result.ErrorCode)
	}
	fmt.Fprintf(&buf, "checkpoint: %s\n", result.CheckpointOutcome())
	fmt.Fprintf(&buf, "attempts: %d\n", result.Attempts)
	fmt.Fprintf(&buf, "delivered: %d\n", len(result.Messages))
	buf.WriteString("---\n")
	for _, msg := range result.Messages {
		buf.WriteString(msg)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario could not be executed.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
