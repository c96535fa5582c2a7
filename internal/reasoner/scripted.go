package reasoner

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentfactory/loopkit/internal/schema"
)

// Step is one scripted reasoner response: a turn to return or an error to
// fail with.
type Step struct {
	Turn schema.Turn
	Err  error
}

// Scripted replays a fixed sequence of responses, one per Reason call. It
// backs tests and offline demos; once the script is exhausted every further
// call fails.
type Scripted struct {
	mu    sync.Mutex
	steps []Step
	index int
}

// NewScripted creates a scripted reasoner from the given steps.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Say is a convenience step: a plain assistant answer with no tool calls.
func Say(content string) Step {
	return Step{Turn: schema.NewAssistantTurn(content, nil)}
}

// Call is a convenience step: an assistant turn requesting tool calls.
func Call(content string, calls ...schema.ToolCall) Step {
	return Step{Turn: schema.NewAssistantTurn(content, calls)}
}

// Fail is a convenience step: a reasoner error.
func Fail(err error) Step {
	return Step{Err: err}
}

// Reason implements schema.Reasoner by returning the next scripted step.
func (s *Scripted) Reason(ctx context.Context, _ schema.Transcript, _ []schema.ToolDefinition) (schema.Turn, error) {
	if err := ctx.Err(); err != nil {
		return schema.Turn{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.steps) {
		return schema.Turn{}, fmt.Errorf("script exhausted after %d steps", len(s.steps))
	}
	step := s.steps[s.index]
	s.index++
	if step.Err != nil {
		return schema.Turn{}, step.Err
	}
	return step.Turn, nil
}

// Calls reports how many Reason calls have been consumed.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}
