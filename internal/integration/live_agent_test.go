//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/sightline/internal/agent"
	"github.com/thruflo/sightline/internal/browser"
	"github.com/thruflo/sightline/internal/config"
	"github.com/thruflo/sightline/internal/report"
	"github.com/thruflo/sightline/internal/results"
	"github.com/thruflo/sightline/internal/runner"
	"github.com/thruflo/sightline/internal/testcase"
	"github.com/thruflo/sightline/internal/testutil"
)

func TestLiveAgent_LoginCase(t *testing.T) {
	testutil.RequireChrome(t)
	key := testutil.RequireAPIKey(t)
	site := newSite(t)

	ctx, cancel := testutil.AgentContext(t)
	defer cancel()

	tc, err := testcase.ParseYAML([]byte(testutil.LoginCase))
	require.NoError(t, err)
	tc.Steps = tc.Steps[:1]

	launcher := browser.ChromeLauncher{Config: browser.Config{
		Headless: true,
		Width:    config.DefaultBrowserWidth,
		Height:   config.DefaultBrowserHeight,
	}}
	newAgent := func(actuator browser.Actuator) runner.Agent {
		return agent.New(agent.Config{
			APIKey:     key,
			BaseURL:    config.DefaultBaseURL,
			Model:      config.DefaultModel,
			Timeout:    2 * time.Minute,
			MaxActions: config.DefaultMaxActions,
		}, actuator)
	}

	r := runner.New(launcher, newAgent, runner.Options{
		Reports: results.Options{Root: t.TempDir(), Renderers: report.Renderers(true)},
	})
	run, err := r.Run(ctx, tc, site.URL)
	require.NoError(t, err)

	// The model's judgement is not asserted; only that the run completed.
	assert.True(t, run.Status.Terminal())
	assert.NotEqual(t, results.RunError, run.Status)
	require.Len(t, run.Steps, 2)
	testutil.AssertRunFiles(t, run.Dir, results.ResultsFile, report.HTMLFile, report.JUnitFile, "step_1.png", "step_2.png")
}
