package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/sightline/internal/results"
)

func TestCollector_Record(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	run := &results.TestRun{
		Name:            "Login",
		Status:          results.RunFail,
		StartTime:       start,
		EndTime:         start.Add(12 * time.Second),
		DurationSeconds: 12,
		RunID:           "run-1",
		URL:             "https://example.test",
		Dir:             dir,
		Steps: []results.StepResult{
			{Step: 1, Status: results.StatusInfo, Timestamp: start.Add(time.Second)},
			{Step: 2, Status: results.StatusPass, Timestamp: start.Add(4 * time.Second)},
			{Step: 3, Status: results.StatusFail, Timestamp: start.Add(10 * time.Second)},
		},
	}

	c := NewCollector("")
	assert.Equal(t, "metrics", c.Name())
	require.NoError(t, c.Record(context.Background(), run))

	data, err := os.ReadFile(filepath.Join(dir, DefaultFile))
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `sightline_runs_total{status="Fail",test="Login"} 1`)
	assert.Contains(t, out, `sightline_steps_total{status="Pass",test="Login"} 1`)
	assert.Contains(t, out, `sightline_steps_total{status="Info",test="Login"} 1`)
	assert.Contains(t, out, `sightline_run_duration_seconds_sum{status="Fail",test="Login"} 12`)
	assert.Contains(t, out, `sightline_run_info{run_id="run-1",status="Fail",test="Login",url="https://example.test"} 1`)
	assert.Contains(t, out, "# TYPE sightline_step_duration_seconds histogram")
}

func TestCollector_Accumulates(t *testing.T) {
	t.Parallel()

	c := NewCollector("custom.prom")
	for i := 0; i < 2; i++ {
		dir := t.TempDir()
		run := &results.TestRun{Name: "Smoke", Status: results.RunPass, Dir: dir}
		require.NoError(t, c.Record(context.Background(), run))
	}

	families, err := c.registry.Gather()
	require.NoError(t, err)

	var total float64
	for _, f := range families {
		if f.GetName() == "sightline_runs_total" {
			for _, m := range f.GetMetric() {
				total += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, total)
}

func TestCollector_WriteFailure(t *testing.T) {
	t.Parallel()

	c := NewCollector("")
	run := &results.TestRun{Name: "x", Status: results.RunPass, Dir: filepath.Join(t.TempDir(), "missing")}
	assert.Error(t, c.Record(context.Background(), run))
}
