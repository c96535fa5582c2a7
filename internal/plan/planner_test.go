package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/agentfactory/loopkit/internal/reasoner"
	"github.com/agentfactory/loopkit/internal/schema"
)

func TestPlanner_ValidDecomposition(t *testing.T) {
	r := reasoner.NewScripted(reasoner.Say(
		`[{"id":"fetch","description":"fetch data"},
		  {"id":"report","description":"write report","dependencies":["fetch"]}]`))
	p, err := NewPlanner(r).Plan(context.Background(), "make a report")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(p.Subtasks))
	}
	for _, st := range p.Subtasks {
		if st.Status != schema.SubtaskPending {
			t.Errorf("subtask %s: expected pending, got %s", st.ID, st.Status)
		}
	}
	if p.Goal != "make a report" {
		t.Errorf("unexpected goal: %q", p.Goal)
	}
}

func TestPlanner_RejectsCyclicDecomposition(t *testing.T) {
	r := reasoner.NewScripted(reasoner.Say(
		`[{"id":"a","description":"x","dependencies":["b"]},
		  {"id":"b","description":"y","dependencies":["a"]}]`))
	_, err := NewPlanner(r).Plan(context.Background(), "goal")
	if err == nil {
		t.Fatal("expected error for cyclic plan")
	}
}

func TestPlanner_ReasonerFailure(t *testing.T) {
	r := reasoner.NewScripted(reasoner.Fail(errors.New("down")))
	_, err := NewPlanner(r).Plan(context.Background(), "goal")
	if err == nil {
		t.Fatal("expected error when decomposition fails")
	}
}

func TestPlanner_UnparseableReply(t *testing.T) {
	r := reasoner.NewScripted(reasoner.Say("I would rather not."))
	_, err := NewPlanner(r).Plan(context.Background(), "goal")
	if err == nil {
		t.Fatal("expected error for unparseable reply")
	}
}
