package plan

import (
	"strings"
	"testing"

	"github.com/agentfactory/loopkit/internal/schema"
)

func subtask(id string, deps ...string) schema.Subtask {
	return schema.Subtask{ID: id, Description: "do " + id, Dependencies: deps, Status: schema.SubtaskPending}
}

// ─── Validate ──────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []schema.Subtask
		wantErr string
	}{
		{"linear chain", []schema.Subtask{subtask("a"), subtask("b", "a"), subtask("c", "b")}, ""},
		{"diamond", []schema.Subtask{subtask("a"), subtask("b", "a"), subtask("c", "a"), subtask("d", "b", "c")}, ""},
		{"empty plan", nil, "no subtasks"},
		{"empty id", []schema.Subtask{{Description: "x"}}, "empty id"},
		{"duplicate id", []schema.Subtask{subtask("a"), subtask("a")}, "duplicate"},
		{"unknown dependency", []schema.Subtask{subtask("a", "ghost")}, "unknown subtask"},
		{"self dependency", []schema.Subtask{subtask("a", "a")}, "depends on itself"},
		{"two-node cycle", []schema.Subtask{subtask("a", "b"), subtask("b", "a")}, "cycle"},
		{"long cycle", []schema.Subtask{subtask("a", "c"), subtask("b", "a"), subtask("c", "b")}, "cycle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Plan{Goal: "g", Subtasks: tt.tasks}
			err := p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in error, got %v", tt.wantErr, err)
			}
		})
	}
}

// ─── parseSubtasks ─────────────────────────────────────────────────────────

func TestParseSubtasks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantLen int
		wantErr bool
	}{
		{"plain array", `[{"id":"a","description":"x"},{"id":"b","description":"y","dependencies":["a"]}]`, 2, false},
		{"fenced", "```json\n[{\"id\":\"a\",\"description\":\"x\"}]\n```", 1, false},
		{"prose around", `Here is the plan: [{"id":"a","description":"x"}] Good luck!`, 1, false},
		{"no array", `I cannot break this down.`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSubtasks(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("expected %d subtasks, got %d", tt.wantLen, len(got))
			}
		})
	}
}
