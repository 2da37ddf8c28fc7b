// Package results owns the lifecycle of one test run: the step log, the
// screenshots, and the persisted results.json record.
package results

import "time"

// Status is the outcome of a single step.
type Status string

const (
	StatusInfo    Status = "Info"
	StatusPass    Status = "Pass"
	StatusFail    Status = "Fail"
	StatusUnknown Status = "Unknown"
)

// RunStatus is the state of a whole run. Running is the only non-terminal
// value.
type RunStatus string

const (
	RunRunning RunStatus = "Running"
	RunPass    RunStatus = "Pass"
	RunFail    RunStatus = "Fail"
	RunError   RunStatus = "Error"
)

// Terminal reports whether s ends a run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunPass, RunFail, RunError:
		return true
	default:
		return false
	}
}

// StepResult is one appended entry of the step log.
type StepResult struct {
	Step        int       `json:"step"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Screenshot  string    `json:"screenshot,omitempty"`
}

// TestRun is the persisted record of a run.
type TestRun struct {
	Name            string       `json:"test_name"`
	Status          RunStatus    `json:"status"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
	DurationSeconds float64      `json:"duration_seconds"`
	Steps           []StepResult `json:"steps"`
	RunID           string       `json:"run_id,omitempty"`
	URL             string       `json:"url,omitempty"`

	// Dir is the run's report directory. It is derived, not persisted.
	Dir string `json:"-"`
}

// Duration returns the run duration.
func (r *TestRun) Duration() time.Duration {
	return time.Duration(r.DurationSeconds * float64(time.Second))
}

// Counts tallies step statuses.
func (r *TestRun) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, s := range r.Steps {
		counts[s.Status]++
	}
	return counts
}

// Rollup computes the terminal status of a run that finished without error:
// Pass iff every non-Info step passed.
func Rollup(steps []StepResult) RunStatus {
	for _, s := range steps {
		if s.Status == StatusInfo {
			continue
		}
		if s.Status != StatusPass {
			return RunFail
		}
	}
	return RunPass
}
