// Package metrics writes a Prometheus textfile describing a finished run
// next to its report.
package metrics

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/thruflo/sightline/internal/results"
)

// DefaultFile is the textfile name used when none is configured.
const DefaultFile = "metrics.prom"

// Collector captures metrics for test runs.
type Collector struct {
	mu sync.Mutex

	file         string
	registry     *prometheus.Registry
	runsTotal    *prometheus.CounterVec
	stepsTotal   *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	stepDuration *prometheus.HistogramVec
	lastRun      *prometheus.GaugeVec
	runInfo      *prometheus.GaugeVec
}

// NewCollector initializes a collector that writes to file inside each run
// directory.
func NewCollector(file string) *Collector {
	if file == "" {
		file = DefaultFile
	}
	registry := prometheus.NewRegistry()
	c := &Collector{
		file:     file,
		registry: registry,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sightline_runs_total", Help: "Total number of test runs"},
			[]string{"test", "status"},
		),
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "sightline_steps_total", Help: "Total number of recorded steps"},
			[]string{"test", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sightline_run_duration_seconds",
				Help:    "Test run duration in seconds",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"test", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sightline_step_duration_seconds",
				Help:    "Time between consecutive recorded steps in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"test", "status"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "sightline_last_run_timestamp_seconds", Help: "End time of the last run"},
			[]string{"test"},
		),
		runInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "sightline_run_info", Help: "Run metadata for traceability"},
			[]string{"test", "run_id", "url", "status"},
		),
	}

	registry.MustRegister(c.runsTotal, c.stepsTotal, c.runDuration, c.stepDuration, c.lastRun, c.runInfo)
	return c
}

// ObserveRun records the outcome of a run and each of its steps.
func (c *Collector) ObserveRun(run *results.TestRun) {
	status := string(run.Status)
	c.runsTotal.WithLabelValues(run.Name, status).Inc()
	c.runDuration.WithLabelValues(run.Name, status).Observe(run.DurationSeconds)
	c.lastRun.WithLabelValues(run.Name).Set(float64(run.EndTime.Unix()))
	c.runInfo.WithLabelValues(run.Name, run.RunID, run.URL, status).Set(1)

	prev := run.StartTime
	for _, step := range run.Steps {
		c.stepsTotal.WithLabelValues(run.Name, string(step.Status)).Inc()
		c.stepDuration.WithLabelValues(run.Name, string(step.Status)).Observe(max(step.Timestamp.Sub(prev).Seconds(), 0))
		prev = step.Timestamp
	}
}

// Write writes all metrics to a Prometheus text file.
func (c *Collector) Write(path string) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Name identifies the collector in logs.
func (c *Collector) Name() string { return "metrics" }

// Record observes run and writes the textfile into its directory.
func (c *Collector) Record(ctx context.Context, run *results.TestRun) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ObserveRun(run)
	return c.Write(filepath.Join(run.Dir, c.file))
}
