// Package runner orchestrates a single acceptance test run: it opens the
// report, drives the browser through the agent step by step and finalizes
// the run on every exit path.
package runner

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thruflo/sightline/internal/agent"
	"github.com/thruflo/sightline/internal/browser"
	"github.com/thruflo/sightline/internal/conversation"
	"github.com/thruflo/sightline/internal/logging"
	"github.com/thruflo/sightline/internal/prompt"
	"github.com/thruflo/sightline/internal/results"
	"github.com/thruflo/sightline/internal/testcase"
)

// InitialStep is the description of the Info step recorded after the first
// navigation.
const InitialStep = "Initial page load"

// Sink receives every completed run. Sink failures are logged and never
// change the outcome of the run.
type Sink interface {
	Name() string
	Record(ctx context.Context, run *results.TestRun) error
}

// Options configures a Runner.
type Options struct {
	// Reports configures the recorder. URL is filled in by Run.
	Reports results.Options
	// Turn is passed to the agent on every step.
	Turn agent.TurnOptions
	// Sinks are invoked after the run is persisted.
	Sinks []Sink
	// Tracer defaults to the global otel tracer.
	Tracer trace.Tracer
}

// Runner executes test cases.
type Runner struct {
	launcher browser.Launcher
	newAgent AgentFactory
	opts     Options
	tracer   trace.Tracer
}

// New creates a Runner.
func New(launcher browser.Launcher, newAgent AgentFactory, opts Options) *Runner {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/thruflo/sightline/internal/runner")
	}
	return &Runner{
		launcher: launcher,
		newAgent: newAgent,
		opts:     opts,
		tracer:   tracer,
	}
}

// execution is the state of one Run call.
type execution struct {
	rec    *results.Recorder
	conv   *conversation.Conversation
	phases *phases
	log    *logging.Logger
}

// Run executes tc against url. The returned run is sealed and persisted
// whenever the report directory could be opened, including on error. The
// error is the one that aborted the run, if any.
func (r *Runner) Run(ctx context.Context, tc *testcase.TestCase, url string) (*results.TestRun, error) {
	ctx, span := r.tracer.Start(ctx, "sightline.run", trace.WithAttributes(
		attribute.String("test.name", tc.Name),
		attribute.String("test.url", url),
		attribute.Int("test.steps", len(tc.Steps)),
	))
	defer span.End()

	log := logging.With("test", tc.Name)
	ph, err := newPhases(log)
	if err != nil {
		return nil, err
	}
	defer ph.stop()

	opts := r.opts.Reports
	opts.URL = url
	rec, err := results.Open(tc.Name, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to open report: %w", err)
	}

	ex := &execution{rec: rec, phases: ph, log: log.With("run", rec.Run().RunID)}
	ex.log.Info("starting test", "url", url, "steps", len(tc.Steps), "dir", rec.Dir())

	runErr := r.execute(ctx, ex, tc, url)
	run, err := r.finalize(ex, runErr)

	span.SetAttributes(attribute.String("test.status", string(run.Status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	r.sink(context.WithoutCancel(ctx), ex, run)
	return run, err
}

// execute covers the initializing and running phases.
func (r *Runner) execute(ctx context.Context, ex *execution, tc *testcase.TestCase, url string) error {
	session, err := r.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			ex.log.Warn("failed to close browser", "error", err)
		}
	}()

	if err := session.Navigate(ctx, url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	shot, err := session.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to capture initial screenshot: %w", err)
	}
	if _, err := ex.rec.AddStep(InitialStep, results.StatusInfo, shot); err != nil {
		return err
	}

	ex.conv = conversation.New(prompt.Instructions(url, tc.Steps))
	if err := ex.phases.send(eventReady); err != nil {
		return err
	}

	ag := r.newAgent(session)
	for i, step := range tc.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.step(ctx, ex, i+1, step, ag, session); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) step(ctx context.Context, ex *execution, index int, step testcase.Step, ag Agent, actuator browser.Actuator) error {
	ctx, span := r.tracer.Start(ctx, "sightline.step", trace.WithAttributes(
		attribute.Int("step.index", index),
		attribute.String("step.description", step.Description),
	))
	defer span.End()

	outcome, err := ExecuteStep(ctx, index, step, ex.conv, ag, actuator, ex.rec, r.opts.Turn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("step.status", string(outcome.Status)))
	return nil
}

// finalize seals the run. On the error path the error is appended as a
// failed step and the run completes as Error before the error is returned.
func (r *Runner) finalize(ex *execution, runErr error) (*results.TestRun, error) {
	defer r.writeTranscript(ex)

	if runErr == nil {
		status := results.Rollup(ex.rec.Run().Steps)
		if err := ex.phases.send(finalizeEvent(status)); err != nil {
			ex.log.Warn("unexpected phase", "error", err)
		}
		run, err := ex.rec.Complete(status)
		r.finish(ex)
		return run, err
	}

	if err := ex.phases.send(eventError); err != nil {
		ex.log.Warn("unexpected phase", "error", err)
	}
	ex.log.Error("test run failed", "error", runErr)

	errs := []error{runErr}
	if _, err := ex.rec.AddStep("Error: "+runErr.Error(), results.StatusFail, nil); err != nil {
		errs = append(errs, err)
	}
	run, err := ex.rec.Complete(results.RunError)
	if err != nil {
		errs = append(errs, err)
	}
	r.finish(ex)

	if len(errs) == 1 {
		return run, runErr
	}
	return run, errors.Join(errs...)
}

func (r *Runner) finish(ex *execution) {
	if err := ex.phases.send(eventDone); err != nil {
		ex.log.Warn("unexpected phase", "error", err)
	}
}

func (r *Runner) writeTranscript(ex *execution) {
	if ex.conv == nil {
		return
	}
	if _, err := ex.rec.WriteArtifact(results.ConversationFile, ex.conv.Items()); err != nil {
		ex.log.Warn("failed to write conversation transcript", "error", err)
	}
}

func (r *Runner) sink(ctx context.Context, ex *execution, run *results.TestRun) {
	if run == nil {
		return
	}
	for _, s := range r.opts.Sinks {
		if err := s.Record(ctx, run); err != nil {
			ex.log.Warn("sink failed", "sink", s.Name(), "error", err)
			continue
		}
		ex.log.Debug("sink recorded run", "sink", s.Name())
	}
}
