package runner

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/thruflo/sightline/internal/logging"
	"github.com/thruflo/sightline/internal/results"
)

// Run phases.
const (
	PhaseInitializing    statekit.StateID = "initializing"
	PhaseRunning         statekit.StateID = "running"
	PhaseFinalizingPass  statekit.StateID = "finalizing_pass"
	PhaseFinalizingFail  statekit.StateID = "finalizing_fail"
	PhaseFinalizingError statekit.StateID = "finalizing_error"
	PhaseDone            statekit.StateID = "done"
)

const (
	eventReady statekit.EventType = "READY"
	eventPass  statekit.EventType = "PASS"
	eventFail  statekit.EventType = "FAIL"
	eventError statekit.EventType = "ERROR"
	eventDone  statekit.EventType = "DONE"
)

// phaseContext is carried through the machine.
type phaseContext struct {
	log     *logging.Logger
	entered int
}

func countEntry(ctx **phaseContext, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	(*ctx).entered++
	if (*ctx).log != nil {
		(*ctx).log.Debug("phase event", "event", string(event.Type))
	}
}

func newPhaseMachine() (*statekit.MachineConfig[*phaseContext], error) {
	return statekit.NewMachine[*phaseContext]("run").
		WithInitial(PhaseInitializing).
		WithContext(&phaseContext{}).
		WithAction("enter", countEntry).
		State(PhaseInitializing).
		OnEntry("enter").
		On(eventReady).Target(PhaseRunning).
		On(eventError).Target(PhaseFinalizingError).
		Done().
		State(PhaseRunning).
		OnEntry("enter").
		On(eventPass).Target(PhaseFinalizingPass).
		On(eventFail).Target(PhaseFinalizingFail).
		On(eventError).Target(PhaseFinalizingError).
		Done().
		State(PhaseFinalizingPass).
		OnEntry("enter").
		On(eventDone).Target(PhaseDone).
		Done().
		State(PhaseFinalizingFail).
		OnEntry("enter").
		On(eventDone).Target(PhaseDone).
		Done().
		State(PhaseFinalizingError).
		OnEntry("enter").
		On(eventDone).Target(PhaseDone).
		Done().
		State(PhaseDone).
		Final().
		OnEntry("enter").
		Done().
		Build()
}

// transitions lists the events each phase accepts. Send panics on anything
// else.
var transitions = map[statekit.StateID]map[statekit.EventType]bool{
	PhaseInitializing:    {eventReady: true, eventError: true},
	PhaseRunning:         {eventPass: true, eventFail: true, eventError: true},
	PhaseFinalizingPass:  {eventDone: true},
	PhaseFinalizingFail:  {eventDone: true},
	PhaseFinalizingError: {eventDone: true},
}

// phases tracks where a run is in its lifecycle.
type phases struct {
	interp  *statekit.Interpreter[*phaseContext]
	ctx     *phaseContext
	history []statekit.StateID
}

func newPhases(log *logging.Logger) (*phases, error) {
	machine, err := newPhaseMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to build run state machine: %w", err)
	}

	pc := &phaseContext{log: log}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **phaseContext) {
		*c = pc
	})
	interp.Start()

	p := &phases{interp: interp, ctx: pc}
	p.history = append(p.history, p.current())
	return p, nil
}

func (p *phases) current() statekit.StateID {
	return p.interp.State().Value
}

func (p *phases) send(event statekit.EventType) error {
	from := p.current()
	if !transitions[from][event] {
		return fmt.Errorf("invalid run transition %s from %s", event, from)
	}
	p.interp.Send(statekit.Event{Type: event})
	p.history = append(p.history, p.current())
	if p.ctx.log != nil {
		p.ctx.log.Debug("run phase", "from", string(from), "to", string(p.current()))
	}
	return nil
}

func (p *phases) done() bool {
	return p.interp.Done()
}

func (p *phases) stop() {
	p.interp.Stop()
}

// Phases returns the visited phases in order.
func (p *phases) Phases() []statekit.StateID {
	out := make([]statekit.StateID, len(p.history))
	copy(out, p.history)
	return out
}

func finalizeEvent(status results.RunStatus) statekit.EventType {
	switch status {
	case results.RunPass:
		return eventPass
	case results.RunFail:
		return eventFail
	default:
		return eventError
	}
}
