package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentfactory/loopkit/internal/schema"
)

const plannerPrompt = `Break the following goal into a small set of subtasks.
Goal: %s

Respond with a JSON array only. Each element:
{"id": "<short-id>", "description": "<what to do>", "dependencies": ["<ids this depends on>"]}

Keep the set minimal. Subtasks with no ordering constraint between them must
not depend on each other.`

// Planner asks a reasoner to decompose a goal into a validated Plan.
type Planner struct {
	reasoner schema.Reasoner
}

// NewPlanner creates a planner over the given reasoner.
func NewPlanner(r schema.Reasoner) *Planner {
	return &Planner{reasoner: r}
}

// Plan decomposes the goal. Decomposition or validation failure is a pre-run
// failure; nothing has executed yet.
func (p *Planner) Plan(ctx context.Context, goal string) (*Plan, error) {
	prompt := fmt.Sprintf(plannerPrompt, goal)
	tr := schema.NewTranscript(schema.NewUserTurn(prompt))

	turn, err := p.reasoner.Reason(ctx, tr, nil)
	if err != nil {
		return nil, fmt.Errorf("decompose goal: %w", err)
	}

	subtasks, err := parseSubtasks(turn.Content)
	if err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	for i := range subtasks {
		subtasks[i].Status = schema.SubtaskPending
	}

	plan := &Plan{Goal: goal, Subtasks: subtasks}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return plan, nil
}

// parseSubtasks extracts the JSON array from the reasoner's reply, tolerating
// code fences and surrounding prose.
func parseSubtasks(content string) ([]schema.Subtask, error) {
	raw := strings.TrimSpace(content)

	var subtasks []schema.Subtask
	if err := json.Unmarshal([]byte(raw), &subtasks); err == nil {
		return subtasks, nil
	}

	if i := strings.Index(raw, "["); i >= 0 {
		if j := strings.LastIndex(raw, "]"); j > i {
			if err := json.Unmarshal([]byte(raw[i:j+1]), &subtasks); err == nil {
				return subtasks, nil
			}
		}
	}
	return nil, fmt.Errorf("no JSON subtask array in reply")
}
