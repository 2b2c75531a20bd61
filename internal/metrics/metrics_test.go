package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Fetched(5)
	m.Fetched(0)
	m.Dropped("muted_type", 2)
	m.Dropped("vacuous_update", 1)
	m.Dropped("muted_list", 0)
	m.Delivered()
	m.Delivered()
	m.Suppressed()
	m.RenderFailed()
	m.DeliveryFailed()

	assert.Equal(t, 5.0, testutil.ToFloat64(m.fetched))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.dropped.WithLabelValues("muted_type")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("vacuous_update")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.delivered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.suppressed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renderFails))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveryFails))
}

func TestMetrics_RunsAndGauges(t *testing.T) {
	m := New()
	at := time.Date(2024, 3, 1, 10, 0, 0, 500_000_000, time.UTC)

	m.RunFinished("done", at)
	m.RunFinished("aborted", at.Add(time.Minute))
	m.Checkpointed(at)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("aborted")))
	assert.Equal(t, float64(at.Unix())+0.5, testutil.ToFloat64(m.checkpoint))
	assert.Equal(t, float64(at.Add(time.Minute).Unix())+0.5, testutil.ToFloat64(m.lastRun))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Fetched(1)
		m.Dropped("x", 1)
		m.Delivered()
		m.Suppressed()
		m.RenderFailed()
		m.DeliveryFailed()
		m.Checkpointed(time.Now())
		m.RunFinished("done", time.Now())
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.Delivered()
	m.RunFinished("done", time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "boardhook.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "boardhook_messages_delivered_total 1")
	assert.Contains(t, out, `boardhook_runs_total{outcome="done"} 1`)
	assert.Contains(t, out, "boardhook_last_run_timestamp_seconds 1.7e+09")
}

func TestMetrics_WriteTextfileEmptyPath(t *testing.T) {
	assert.NoError(t, New().WriteTextfile(""))
}
