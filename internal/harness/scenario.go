package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/boardhook/internal/engine"
	"github.com/roach88/boardhook/internal/filter"
)

// Scenario defines one synchronization run against a fake board and a fake
// webhook, and what the run must produce.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// BoardID is the board the run syncs. Defaults to "board-1".
	BoardID string `yaml:"board_id,omitempty"`

	// Now is the instant the deterministic clock reads for the whole run.
	Now time.Time `yaml:"now"`

	// Checkpoint is stored before the run. Zero means no checkpoint, which
	// makes the run start from Now.
	Checkpoint time.Time `yaml:"checkpoint,omitempty"`

	// Actions is the path to a JSON array of board actions, newest first.
	// Relative paths are resolved against the scenario file.
	Actions string `yaml:"actions"`

	// Config holds the mutes and aliases of the run.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Source controls the fake Trello API.
	Source SourceBehaviour `yaml:"source,omitempty"`

	// Sink controls the fake Discord webhook.
	Sink SinkBehaviour `yaml:"sink,omitempty"`

	// Expect is checked after the run.
	Expect Expectation `yaml:"expect"`

	// Assertions are evaluated after Expect.
	// Supported types: message_contains, message_order, message_count,
	// dropped, history
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunID is an optional fixed run id for deterministic tests.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// ScenarioConfig mirrors the mute and alias sections of a config file.
type ScenarioConfig struct {
	MutedActionTypes  []string          `yaml:"muted_action_types,omitempty"`
	MutedUpdateFields []string          `yaml:"muted_update_fields,omitempty"`
	MutedUpdateLists  []string          `yaml:"muted_update_lists,omitempty"`
	Aliases           map[string]string `yaml:"aliases,omitempty"`
}

// FilterConfig returns the mutes as a filter configuration.
func (c ScenarioConfig) FilterConfig() filter.Config {
	return filter.NewConfig(c.MutedActionTypes, c.MutedUpdateFields, c.MutedUpdateLists)
}

// SourceBehaviour configures the fake Trello API.
type SourceBehaviour struct {
	// Unavailable makes every request fail with Status.
	Unavailable bool `yaml:"unavailable,omitempty"`

	// Status is the HTTP status of an unavailable source. Defaults to 503.
	Status int `yaml:"status,omitempty"`

	// IgnoreFilter serves every action type regardless of the requested
	// filter, like an API that dropped the parameter.
	IgnoreFilter bool `yaml:"ignore_filter,omitempty"`
}

// SinkBehaviour configures the fake Discord webhook.
type SinkBehaviour struct {
	// FailOn lists the zero-based delivery attempts the webhook rejects.
	FailOn []int `yaml:"fail_on,omitempty"`
}

// Expectation describes the outcome of the run.
type Expectation struct {
	// Messages, when set, must equal the delivered messages exactly.
	Messages []string `yaml:"messages,omitempty"`

	// Checkpoint is "advanced" or "unchanged".
	Checkpoint string `yaml:"checkpoint"`

	// State is the final engine state. Defaults to done when Error is empty
	// or DELIVERY_FAILED, aborted otherwise.
	State string `yaml:"state,omitempty"`

	// Error is the expected run error code, empty for a clean run.
	Error string `yaml:"error,omitempty"`
}

// Checkpoint expectations.
const (
	CheckpointAdvanced  = "advanced"
	CheckpointUnchanged = "unchanged"
)

// Assertion validates the delivered messages or the run bookkeeping.
type Assertion struct {
	// Type specifies the assertion type:
	// - "message_contains": some delivered message contains Text
	// - "message_order": messages containing each of Texts appear in order
	// - "message_count": exactly Count messages were delivered
	// - "dropped": the filter dropped Count actions for Reason
	// - "history": the store holds Count runs, the latest in State
	Type string `yaml:"type"`

	// Text is the expected substring (used by message_contains).
	Text string `yaml:"text,omitempty"`

	// Texts is the expected order of substrings (used by message_order).
	Texts []string `yaml:"texts,omitempty"`

	// Reason is the drop reason (used by dropped).
	Reason string `yaml:"reason,omitempty"`

	// State is the expected state of the latest run (used by history).
	State string `yaml:"state,omitempty"`

	// Count is the expected number (used by message_count, dropped, history).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertMessageContains = "message_contains"
	AssertMessageOrder    = "message_order"
	AssertMessageCount    = "message_count"
	AssertDropped         = "dropped"
	AssertHistory         = "history"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// The actions path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Actions != "" && !filepath.IsAbs(scenario.Actions) {
		scenario.Actions = filepath.Join(filepath.Dir(path), scenario.Actions)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Now.IsZero() {
		return fmt.Errorf("now is required")
	}

	if !s.Checkpoint.IsZero() && s.Checkpoint.After(s.Now) {
		return fmt.Errorf("checkpoint %s is after now %s", s.Checkpoint.Format(time.RFC3339), s.Now.Format(time.RFC3339))
	}

	if s.Actions == "" {
		return fmt.Errorf("actions fixture is required")
	}
	if _, err := os.Stat(s.Actions); os.IsNotExist(err) {
		return fmt.Errorf("actions fixture not found: %s", s.Actions)
	}

	switch s.Expect.Checkpoint {
	case CheckpointAdvanced, CheckpointUnchanged:
	case "":
		return fmt.Errorf("expect.checkpoint is required")
	default:
		return fmt.Errorf("expect.checkpoint: must be %q or %q, got %q",
			CheckpointAdvanced, CheckpointUnchanged, s.Expect.Checkpoint)
	}

	switch engine.State(s.Expect.State) {
	case "", engine.StateDone, engine.StateAborted:
	default:
		return fmt.Errorf("expect.state: must be done or aborted, got %q", s.Expect.State)
	}

	for i, attempt := range s.Sink.FailOn {
		if attempt < 0 {
			return fmt.Errorf("sink.fail_on[%d]: attempt must be non-negative", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertMessageContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for message_contains", index)
		}
	case AssertMessageOrder:
		if len(a.Texts) < 2 {
			return fmt.Errorf("assertions[%d]: at least two texts are required for message_order", index)
		}
	case AssertMessageCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for message_count", index)
		}
	case AssertDropped:
		if !knownReason(a.Reason) {
			return fmt.Errorf("assertions[%d]: unknown drop reason %q", index, a.Reason)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for dropped", index)
		}
	case AssertHistory:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for history", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func knownReason(reason string) bool {
	for _, r := range filter.Reasons {
		if string(r) == reason {
			return true
		}
	}
	return false
}

// expectedState returns the final state the scenario expects.
func (s *Scenario) expectedState() engine.State {
	if s.Expect.State != "" {
		return engine.State(s.Expect.State)
	}
	if s.Expect.Error == "" || s.Expect.Error == string(engine.ErrCodeDeliveryFailed) {
		return engine.StateDone
	}
	return engine.StateAborted
}
