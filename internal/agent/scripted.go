package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/thruflo/sightline/internal/conversation"
)

// ErrScriptExhausted is returned when a Scripted agent has no turn left.
var ErrScriptExhausted = errors.New("scripted agent has no more turns")

// Scripted returns canned turns in order. It is deterministic and meant for
// tests and dry runs.
type Scripted struct {
	mu     sync.Mutex
	turns  [][]conversation.Item
	repeat []conversation.Item
	inputs [][]conversation.Item
}

// NewScripted creates an agent that answers the nth call with turns[n].
func NewScripted(turns ...[]conversation.Item) *Scripted {
	return &Scripted{turns: turns}
}

// Replies creates an agent whose nth turn is a single assistant message.
func Replies(texts ...string) *Scripted {
	turns := make([][]conversation.Item, len(texts))
	for i, text := range texts {
		turns[i] = []conversation.Item{conversation.AssistantMessage(text)}
	}
	return NewScripted(turns...)
}

// Always creates an agent that answers every turn with the same message.
func Always(text string) *Scripted {
	return &Scripted{repeat: []conversation.Item{conversation.AssistantMessage(text)}}
}

// RunFullTurn records the replayed items and returns the next canned turn.
func (s *Scripted) RunFullTurn(ctx context.Context, items []conversation.Item, opts TurnOptions) ([]conversation.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make([]conversation.Item, len(items))
	copy(seen, items)
	n := len(s.inputs)
	s.inputs = append(s.inputs, seen)

	if n < len(s.turns) {
		return s.turns[n], nil
	}
	if s.repeat != nil {
		return s.repeat, nil
	}
	return nil, ErrScriptExhausted
}

// Inputs returns the items passed on each call so far.
func (s *Scripted) Inputs() [][]conversation.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]conversation.Item, len(s.inputs))
	copy(out, s.inputs)
	return out
}
