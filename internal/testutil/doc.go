// Package testutil provides shared test utilities for sightline.
//
// # Fixtures
//
// The fixtures.go file provides sample test cases and runs:
//
//   - LoginCase, LoginCaseJSON - a two-step test case in YAML and JSON
//   - WriteTestCase(t, dir, name, content) - writes a test case file
//   - SampleRun() - a finished run with one step of every status
//
// # Environment Helpers
//
// The env.go file provides test environment setup:
//
//   - SetupTestDir(t, config) - creates a temp project with .sightline/config.yaml
//   - RequireChrome(t) - skips unless a local Chrome can be found
//   - RequireAPIKey(t) - skips unless a live agent key is set
//
// # Assertions
//
// The assertions.go file provides custom test assertions:
//
//   - AssertRunFiles(t, dir, names...) - files a run directory must hold
//   - AssertRunStatus(t, run, status) - checks the run status
//   - AssertStepStatuses(t, run, statuses...) - checks every step in order
//
// # Timeouts
//
// The timeout.go file derives contexts from the test deadline:
//
//	func TestSomething(t *testing.T) {
//	    ctx, cancel := testutil.BrowserContext(t)
//	    defer cancel()
//	    // ... test code using ctx
//	}
package testutil
