package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/boardhook/internal/engine"
)

func TestSnapshot_Format(t *testing.T) {
	before := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	result := NewResult()
	result.Report = &engine.Report{State: engine.StateDone}
	result.ErrorCode = "DELIVERY_FAILED"
	result.CheckpointBefore = before
	result.CheckpointAfter = before.Add(time.Hour)
	result.Attempts = 2
	result.Messages = []string{"one", "two"}

	want := "scenario: demo\n" +
		"state: done\n" +
		"error: DELIVERY_FAILED\n" +
		"checkpoint: advanced\n" +
		"attempts: 2\n" +
		"delivered: 2\n" +
		"---\n" +
		"one\n" +
		"two\n"
	assert.Equal(t, want, string(Snapshot("demo", result)))
}

func TestSnapshot_NoReportNoMessages(t *testing.T) {
	want := "scenario: empty\n" +
		"checkpoint: unchanged\n" +
		"attempts: 0\n" +
		"delivered: 0\n" +
		"---\n"
	assert.Equal(t, want, string(Snapshot("empty", NewResult())))
}

func TestResult_CheckpointOutcome(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	r := &Result{}
	assert.Equal(t, CheckpointUnchanged, r.CheckpointOutcome())

	r.CheckpointAfter = at
	assert.Equal(t, CheckpointAdvanced, r.CheckpointOutcome())

	r.CheckpointBefore = at
	assert.Equal(t, CheckpointUnchanged, r.CheckpointOutcome())
}
