package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boardhook/internal/engine"
	"github.com/roach88/boardhook/internal/filter"
	"github.com/roach88/boardhook/internal/store"
)

var delivered = []string{
	"`alice` created card `Fix login` in list `Backlog`.",
	"`bob` joined card `Fix login`.",
	"`alice` moved card `Fix login` to list `Doing`.",
}

func TestAssertMessageContains(t *testing.T) {
	assert.NoError(t, assertMessageContains(delivered, Assertion{Text: "joined card"}))

	err := assertMessageContains(delivered, Assertion{Text: "left card"})
	require.Error(t, err)

	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertMessageContains, aerr.Type)
	assert.Contains(t, err.Error(), `Expected: a message containing "left card"`)
	assert.Contains(t, err.Error(), "[2] `bob` joined card `Fix login`.")
}

func TestAssertMessageOrder(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr string
	}{
		{name: "in order", texts: []string{"created", "moved"}},
		{name: "adjacent", texts: []string{"created", "joined", "moved"}},
		{name: "reversed", texts: []string{"moved", "created"}, wantErr: `"created" appears before "moved"`},
		{name: "missing", texts: []string{"created", "archived"}, wantErr: `no message containing "archived"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertMessageOrder(delivered, Assertion{Texts: tt.texts})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertMessageCount(t *testing.T) {
	assert.NoError(t, assertMessageCount(delivered, Assertion{Count: 3}))
	assert.NoError(t, assertMessageCount(nil, Assertion{Count: 0}))

	err := assertMessageCount(delivered, Assertion{Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 2 messages")
	assert.Contains(t, err.Error(), "Actual: 3 messages")
}

func TestAssertDropped(t *testing.T) {
	report := &engine.Report{Filter: filter.Stats{Dropped: map[filter.Reason]int{filter.ReasonMutedList: 2}}}

	assert.NoError(t, assertDropped(report, Assertion{Reason: "muted_list", Count: 2}))
	assert.NoError(t, assertDropped(report, Assertion{Reason: "muted_type", Count: 0}))

	err := assertDropped(report, Assertion{Reason: "muted_list", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 actions dropped for muted_list")

	assert.Error(t, assertDropped(nil, Assertion{Reason: "muted_list", Count: 1}))
}

func TestAssertHistory(t *testing.T) {
	history := []store.RunRecord{{RunID: "r2", State: "aborted"}, {RunID: "r1", State: "done"}}

	assert.NoError(t, assertHistory(history, nil, Assertion{Count: 2}))
	assert.NoError(t, assertHistory(history, nil, Assertion{Count: 2, State: "aborted"}))

	err := assertHistory(history, nil, Assertion{Count: 2, State: "done"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latest run in state aborted")

	err = assertHistory(history, nil, Assertion{Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 recorded runs")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Messages = delivered
	actx := &AssertionContext{
		Report:  &engine.Report{Filter: filter.Stats{Dropped: map[filter.Reason]int{filter.ReasonVacuousUpdate: 1}}},
		History: []store.RunRecord{{RunID: "r1", State: "done"}},
	}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertMessageContains, Text: "joined"},
		{Type: AssertMessageCount, Count: 3},
		{Type: AssertDropped, Reason: "vacuous_update", Count: 1},
		{Type: AssertHistory, Count: 1, State: "done"},
	}, actx)
	assert.Empty(t, errs)

	errs = EvaluateAssertions(result, []Assertion{
		{Type: AssertMessageCount, Count: 1},
		{Type: "bogus"},
		{Type: AssertDropped, Reason: "vacuous_update", Count: 1},
	}, nil)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
	assert.Contains(t, errs[2], "dropped requires a run report")
}
