// Package reflection wraps the run loop with periodic self-critique: every
// few iterations a critic reasoner reviews the recent transcript and decides
// whether the run should continue, adjust, or stop early.
package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentfactory/loopkit/internal/loop"
	"github.com/agentfactory/loopkit/internal/schema"
)

// Decision is the critic's call at a checkpoint.
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionStop     Decision = "stop"
)

// Verdict is the parsed outcome of one reflection checkpoint.
type Verdict struct {
	Decision Decision `json:"decision"`
	Critique string   `json:"critique,omitempty"`
	// ShouldRetry asks the run to take a corrective turn before resuming.
	ShouldRetry bool `json:"shouldRetry,omitempty"`
}

// Policy configures reflection checkpoints.
type Policy struct {
	// Enabled turns reflection on. When false the reflector is a plain
	// pass-through to the runner.
	Enabled bool
	// Every inserts a checkpoint after this many iterations. Defaults to 5.
	Every int
	// Window is how many trailing turns the critic sees. Defaults to 12.
	Window int
}

// Reflector drives a runner in iteration windows, pausing at checkpoints to
// let a critic reasoner review progress. The critic's critique is appended to
// the transcript as a user turn so the next window sees it.
type Reflector struct {
	runner *loop.Runner
	critic schema.Reasoner
	policy Policy
}

// NewReflector wraps a runner with reflection checkpoints. The critic may be
// the same reasoner that drives the run.
func NewReflector(runner *loop.Runner, critic schema.Reasoner, policy Policy) *Reflector {
	if policy.Every <= 0 {
		policy.Every = 5
	}
	if policy.Window <= 0 {
		policy.Window = 12
	}
	return &Reflector{runner: runner, critic: critic, policy: policy}
}

// Run executes a goal under the reflection policy.
func (r *Reflector) Run(ctx context.Context, goal string) *schema.RunResult {
	if !r.policy.Enabled {
		return r.runner.Run(ctx, goal)
	}

	max := r.runner.MaxIterations()
	tr := schema.NewTranscript(schema.NewUserTurn(goal))
	from := 0

	for from < max {
		until := from + r.policy.Every
		if until > max {
			until = max
		}

		res := r.runner.Resume(ctx, tr, from, until)
		tr = res.Transcript
		from = res.Iterations

		// Anything but running out of the window is a real termination.
		if res.StopReason != schema.StopMaxIterations || from >= max {
			return res
		}

		verdict, err := r.reflect(ctx, goal, tr)
		if err != nil {
			// A broken critic never kills a healthy run.
			slog.Warn("reflection checkpoint failed", "error", err)
			continue
		}
		slog.Info("reflection checkpoint",
			"iteration", from, "decision", verdict.Decision)

		if verdict.Decision == DecisionStop {
			res.Status = schema.StatusAborted
			res.StopReason = schema.StopReflection
			if verdict.Critique != "" {
				res.FinalContent = verdict.Critique
			}
			return res
		}
		if verdict.ShouldRetry && verdict.Critique != "" {
			tr.AddUser("Reviewer feedback: " + verdict.Critique)
		}
	}

	// Unreachable in practice; the window loop always returns from inside.
	return r.runner.Resume(ctx, tr, from, max)
}

const criticPrompt = `You are reviewing an agent's progress toward a goal.
Goal: %s

Recent activity:
%s

Is the agent making progress? Respond with JSON only:
{"decision": "continue" | "stop", "critique": "<one short paragraph, or empty>", "shouldRetry": <true to feed the critique back to the agent>}
Use "stop" only when further iterations clearly cannot help.`

// reflect asks the critic for a verdict over the transcript tail.
func (r *Reflector) reflect(ctx context.Context, goal string, tr schema.Transcript) (Verdict, error) {
	prompt := fmt.Sprintf(criticPrompt, goal, renderTail(tr.Tail(r.policy.Window)))
	critique := schema.NewTranscript(schema.NewUserTurn(prompt))

	turn, err := r.critic.Reason(ctx, critique, nil)
	if err != nil {
		return Verdict{}, fmt.Errorf("critic: %w", err)
	}
	return parseVerdict(turn.Content)
}

// parseVerdict extracts the JSON verdict, tolerating code fences and
// surrounding prose. Unknown decisions mean continue.
func parseVerdict(content string) (Verdict, error) {
	raw := strings.TrimSpace(content)
	if i := strings.Index(raw, "{"); i >= 0 {
		if j := strings.LastIndex(raw, "}"); j > i {
			raw = raw[i : j+1]
		}
	}
	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	if v.Decision != DecisionStop {
		v.Decision = DecisionContinue
	}
	return v, nil
}

// renderTail formats recent turns for the critic prompt.
func renderTail(turns []schema.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		switch t.Kind {
		case schema.TurnUser:
			fmt.Fprintf(&sb, "[user] %s\n", clip(t.Content))
		case schema.TurnAssistant:
			if t.Content != "" {
				fmt.Fprintf(&sb, "[assistant] %s\n", clip(t.Content))
			}
			for _, c := range t.ToolCalls {
				fmt.Fprintf(&sb, "[assistant] calls %s\n", c.Name)
			}
		case schema.TurnToolResult:
			status := "ok"
			if t.IsError {
				status = "error"
			}
			fmt.Fprintf(&sb, "[%s %s] %s\n", t.ToolName, status, clip(t.Content))
		}
	}
	return sb.String()
}

func clip(s string) string {
	if len(s) > 400 {
		return s[:400] + "..."
	}
	return s
}
