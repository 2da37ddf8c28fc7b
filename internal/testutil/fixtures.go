package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thruflo/sightline/internal/results"
)

// LoginCase is a two-step YAML test case named "Login".
const LoginCase = `name: Login
steps:
  - description: Enter "demo" and "secret" into the login form and submit it
    expected: The dashboard greets the user by name
  - description: Open the account menu
    expected: A "Sign out" entry is visible
`

// LoginCaseJSON is LoginCase in JSON.
const LoginCaseJSON = `{
  "name": "Login",
  "steps": [
    {
      "description": "Enter \"demo\" and \"secret\" into the login form and submit it",
      "expected": "The dashboard greets the user by name"
    },
    {
      "description": "Open the account menu",
      "expected": "A \"Sign out\" entry is visible"
    }
  ]
}
`

// WriteTestCase writes a test case file into dir and returns its path.
func WriteTestCase(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// SampleRun returns a finished run with one step of every status.
// Returns a new value each time to prevent test interference.
func SampleRun() *results.TestRun {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(42 * time.Second)
	return &results.TestRun{
		RunID:           "3f2c9a4e-6b1d-4c8e-9f10-2a7b5c3d1e90",
		Name:            "Login",
		URL:             "https://example.test/login",
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: 42,
		Status:          results.RunFail,
		Steps: []results.StepResult{
			{Step: 1, Description: "Initial page load", Status: results.StatusInfo, Screenshot: "step_1.png", Timestamp: start},
			{Step: 2, Description: "Submit the login form", Status: results.StatusPass, Screenshot: "step_2.png", Timestamp: start.Add(15 * time.Second)},
			{Step: 3, Description: "Open the account menu", Status: results.StatusFail, Screenshot: "step_3.png", Timestamp: start.Add(30 * time.Second)},
			{Step: 4, Description: "Sign out", Status: results.StatusUnknown, Timestamp: start.Add(42 * time.Second)},
		},
	}
}
