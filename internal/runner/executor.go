package runner

import (
	"context"
	"fmt"

	"github.com/thruflo/sightline/internal/agent"
	"github.com/thruflo/sightline/internal/browser"
	"github.com/thruflo/sightline/internal/conversation"
	"github.com/thruflo/sightline/internal/logging"
	"github.com/thruflo/sightline/internal/prompt"
	"github.com/thruflo/sightline/internal/results"
	"github.com/thruflo/sightline/internal/testcase"
)

// Agent drives one conversational turn: it may act on the browser any number
// of times and returns every item produced during the turn.
type Agent interface {
	RunFullTurn(ctx context.Context, items []conversation.Item, opts agent.TurnOptions) ([]conversation.Item, error)
}

// AgentFactory binds an agent to the browser session of a run.
type AgentFactory func(actuator browser.Actuator) Agent

// StepRecorder is the part of results.Recorder the executor needs.
type StepRecorder interface {
	AddStep(description string, status results.Status, shot results.Image) (int, error)
}

// Outcome describes an executed step.
type Outcome struct {
	Index   int
	Verdict string
	Status  results.Status
}

// ExecuteStep runs step number index (1-based) against the agent, folds the
// turn into conv and records the result with a fresh screenshot.
func ExecuteStep(
	ctx context.Context,
	index int,
	step testcase.Step,
	conv *conversation.Conversation,
	ag Agent,
	actuator browser.Actuator,
	rec StepRecorder,
	opts agent.TurnOptions,
) (Outcome, error) {
	log := logging.With("step", index)
	log.Info("executing step", "description", step.Description)

	turn := conversation.UserTurn(prompt.StepPrompt(index, step))
	output, err := ag.RunFullTurn(ctx, conv.With(turn), opts)
	if err != nil {
		return Outcome{}, fmt.Errorf("step %d: %w", index, err)
	}

	verdict := ExtractVerdict(output)
	status := Classify(verdict)
	log.Debug("agent verdict", "status", string(status), "verdict", verdict)

	conv.Append(turn)
	conv.Append(conversation.Retained(output)...)

	shot, err := actuator.Screenshot(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("step %d: failed to capture screenshot: %w", index, err)
	}
	if _, err := rec.AddStep(step.Description, status, shot); err != nil {
		return Outcome{}, fmt.Errorf("step %d: %w", index, err)
	}

	log.Info("step recorded", "status", string(status))
	return Outcome{Index: index, Verdict: verdict, Status: status}, nil
}
