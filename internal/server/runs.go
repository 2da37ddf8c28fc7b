package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/thruflo/sightline/internal/logging"
	"github.com/thruflo/sightline/internal/results"
)

// RunEntry is one row of the run index.
type RunEntry struct {
	Dir             string            `json:"dir"`
	Name            string            `json:"test_name"`
	RunID           string            `json:"run_id,omitempty"`
	URL             string            `json:"url,omitempty"`
	Status          results.RunStatus `json:"status"`
	StartTime       string            `json:"start_time"`
	DurationSeconds float64           `json:"duration_seconds"`
	// Steps excludes the initial page load, which carries no verdict.
	Steps  int `json:"steps"`
	Passed int `json:"passed"`
}

// ListRuns reads every run directory directly under root. Directories
// without a readable results.json are skipped. Runs are ordered newest
// first.
func ListRuns(root string) ([]RunEntry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	var runs []*results.TestRun
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		run, err := results.Load(filepath.Join(root, e.Name()))
		if err != nil {
			logging.Debug("skipping report directory", "dir", e.Name(), "error", err)
			continue
		}
		runs = append(runs, run)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})

	out := make([]RunEntry, len(runs))
	for i, run := range runs {
		out[i] = RunEntry{
			Dir:             filepath.Base(run.Dir),
			Name:            run.Name,
			RunID:           run.RunID,
			URL:             run.URL,
			Status:          run.Status,
			StartTime:       run.StartTime.UTC().Format("2006-01-02 15:04:05"),
			DurationSeconds: run.DurationSeconds,
			Steps:           judgedSteps(run.Steps),
			Passed:          run.Counts()[results.StatusPass],
		}
	}
	return out, nil
}

// judgedSteps counts the steps that carry a verdict.
func judgedSteps(steps []results.StepResult) int {
	n := 0
	for _, s := range steps {
		if s.Status != results.StatusInfo {
			n++
		}
	}
	return n
}
