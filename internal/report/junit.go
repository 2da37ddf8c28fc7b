package report

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/thruflo/sightline/internal/results"
)

type junitSuite struct {
	XMLName   xml.Name    `xml:"testsuite"`
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Errors    int         `xml:"errors,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	Time      float64     `xml:"time,attr"`
	Cases     []junitCase `xml:"testcase"`
	Error     *junitFault `xml:"error,omitempty"`
}

type junitCase struct {
	Name      string      `xml:"name,attr"`
	ClassName string      `xml:"classname,attr"`
	Time      float64     `xml:"time,attr"`
	Failure   *junitFault `xml:"failure,omitempty"`
}

type junitFault struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// buildSuite maps a run onto a JUnit suite. Info steps are context, not
// assertions, and are left out. The time of a case is the gap since the
// previous step.
func buildSuite(run *results.TestRun) junitSuite {
	suite := junitSuite{
		Name:      run.Name,
		Timestamp: run.StartTime.Format(time.RFC3339),
		Time:      run.DurationSeconds,
		Cases:     []junitCase{},
	}

	prev := run.StartTime
	for _, step := range run.Steps {
		elapsed := step.Timestamp.Sub(prev).Seconds()
		prev = step.Timestamp
		if step.Status == results.StatusInfo {
			continue
		}

		tc := junitCase{
			Name:      fmt.Sprintf("Step %d: %s", step.Step, step.Description),
			ClassName: run.Name,
			Time:      max(elapsed, 0),
		}
		switch step.Status {
		case results.StatusFail:
			tc.Failure = &junitFault{Message: "step failed", Type: "fail", Content: step.Description}
			suite.Failures++
		case results.StatusUnknown:
			tc.Failure = &junitFault{Message: "no verdict in agent response", Type: "unknown", Content: step.Description}
			suite.Failures++
		}
		suite.Cases = append(suite.Cases, tc)
	}
	suite.Tests = len(suite.Cases)

	if run.Status == results.RunError {
		suite.Errors = 1
		suite.Error = &junitFault{Message: "run aborted", Type: "error"}
		if n := len(run.Steps); n > 0 {
			suite.Error.Content = run.Steps[n-1].Description
		}
	}
	return suite
}

// JUnit writes junit.xml into the run directory.
func JUnit(run *results.TestRun) error {
	data, err := xml.MarshalIndent(buildSuite(run), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal junit report: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(run.Dir, JUnitFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write junit report: %w", err)
	}
	return nil
}
