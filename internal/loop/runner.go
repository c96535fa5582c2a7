// Package loop implements the run controller: the reason-act cycle that
// drives a reasoner against a tool registry until the run terminates.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentfactory/loopkit/internal/schema"
	"github.com/agentfactory/loopkit/internal/shared/textutils"
	"github.com/agentfactory/loopkit/internal/tools"
)

// Options tunes one runner. Zero values fall back to sane defaults in
// NewRunner.
type Options struct {
	// MaxIterations caps reason-act cycles per run. Defaults to 20.
	MaxIterations int
	// TimeBudget caps wall-clock duration per run. Zero means no budget.
	TimeBudget time.Duration
	// ParallelTools dispatches a batch of tool calls concurrently.
	ParallelTools bool
	// Retry governs reasoner call retries.
	Retry RetryPolicy
}

// Runner executes runs: it owns the loop that alternates reasoner calls and
// tool dispatch over a growing transcript. A Runner is stateless between
// runs and safe for concurrent use.
type Runner struct {
	reasoner   schema.Reasoner
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	opts       Options
	emitter    *Emitter
}

// NewRunner builds a runner over the given reasoner and registry.
func NewRunner(reasoner schema.Reasoner, registry *tools.Registry, opts Options) *Runner {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 20
	}
	if opts.Retry.BaseDelay == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &Runner{
		reasoner:   reasoner,
		registry:   registry,
		dispatcher: tools.NewDispatcher(registry, opts.ParallelTools),
		opts:       opts,
	}
}

// SetEmitter attaches an event emitter. Pass nil to detach.
func (r *Runner) SetEmitter(e *Emitter) { r.emitter = e }

// MaxIterations returns the configured iteration cap.
func (r *Runner) MaxIterations() int { return r.opts.MaxIterations }

// Run starts a fresh run for the goal and drives it to termination.
func (r *Runner) Run(ctx context.Context, goal string) *schema.RunResult {
	if r.opts.TimeBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.TimeBudget)
		defer cancel()
	}
	tr := schema.NewTranscript(schema.NewUserTurn(goal))
	return r.Resume(ctx, tr, 0, r.opts.MaxIterations)
}

// Resume drives the loop over an existing transcript, starting from iteration
// `from` and stopping before iteration `until`. Run and higher layers such as
// reflection are both built on it. The returned result always carries the
// transcript as it stood at termination.
func (r *Runner) Resume(ctx context.Context, tr schema.Transcript, from, until int) *schema.RunResult {
	runID := uuid.NewString()
	state := schema.RunState{
		Iterations: from,
		StartedAt:  time.Now(),
		Status:     schema.StatusRunning,
	}
	defs := r.registry.Definitions()

	slog.Info("run started", "run_id", runID, "from", from, "until", until)
	r.emit(runID, EventRunStart, map[string]any{"from": from, "until": until})

	finalContent := lastAssistantContent(tr)
	for {
		// Termination checks, in priority order.
		if errors.Is(ctx.Err(), context.Canceled) {
			return r.finish(runID, &state, tr, finalContent, schema.StatusAborted, schema.StopCancelled, nil)
		}
		if state.Iterations >= until {
			return r.finish(runID, &state, tr, finalContent, schema.StatusAborted, schema.StopMaxIterations, nil)
		}
		if ctx.Err() != nil {
			return r.finish(runID, &state, tr, finalContent, schema.StatusAborted, schema.StopTimeout, nil)
		}

		state.Iterations++
		r.emit(runID, EventIteration, map[string]any{"iteration": state.Iterations})

		turn, err := retry(ctx, r.opts.Retry, func() (schema.Turn, error) {
			return r.reasoner.Reason(ctx, tr, defs)
		})
		if err != nil {
			if stop, reason := stopReasonForContext(ctx); stop {
				return r.finish(runID, &state, tr, finalContent, schema.StatusAborted, reason, nil)
			}
			slog.Error("reasoner unavailable", "run_id", runID, "error", err)
			return r.finish(runID, &state, tr, finalContent, schema.StatusAborted,
				schema.StopReasonerUnavailable, fmt.Errorf("reasoner: %w", err))
		}

		turn = normalizeAssistantTurn(turn)
		tr.Add(turn)
		if turn.Content != "" {
			finalContent = turn.Content
		}
		r.emit(runID, EventAssistantTurn, map[string]any{
			"content":    turn.Content,
			"tool_calls": len(turn.ToolCalls),
			"tool_hint":  textutils.ToolHint(turn.ToolCalls),
		})

		if !turn.HasToolCalls() {
			return r.finish(runID, &state, tr, finalContent, schema.StatusCompleted, "", nil)
		}

		for _, call := range turn.ToolCalls {
			r.emit(runID, EventToolCallStart, map[string]any{"tool": call.Name, "call_id": call.ID})
		}
		results := r.dispatcher.Dispatch(ctx, turn.ToolCalls)
		for _, res := range results {
			tr.Add(res)
			r.emit(runID, EventToolCallEnd, map[string]any{
				"tool":     res.ToolName,
				"call_id":  res.ToolCallID,
				"is_error": res.IsError,
			})
		}
	}
}

func (r *Runner) finish(runID string, state *schema.RunState, tr schema.Transcript,
	finalContent string, status schema.RunStatus, reason schema.StopReason, err error) *schema.RunResult {

	state.Status = status
	state.StopReason = reason
	duration := time.Since(state.StartedAt)
	slog.Info("run finished",
		"run_id", runID, "status", status, "stop_reason", reason,
		"iterations", state.Iterations, "duration", duration)
	r.emit(runID, EventRunEnd, map[string]any{
		"status":      string(status),
		"stop_reason": string(reason),
		"iterations":  state.Iterations,
	})
	return &schema.RunResult{
		RunID:        runID,
		Status:       status,
		StopReason:   reason,
		FinalContent: finalContent,
		Transcript:   tr,
		Iterations:   state.Iterations,
		Duration:     duration,
		Err:          err,
	}
}

func (r *Runner) emit(runID string, typ EventType, data map[string]any) {
	if r.emitter != nil {
		r.emitter.Emit(runID, typ, data)
	}
}

// stopReasonForContext maps a finished context to the matching stop reason.
func stopReasonForContext(ctx context.Context) (bool, schema.StopReason) {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return true, schema.StopCancelled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return true, schema.StopTimeout
	default:
		return false, ""
	}
}

// normalizeAssistantTurn coerces the reasoner's output into a well-formed
// assistant turn: the kind is forced and tool calls missing an ID get one, so
// results can always be correlated back.
func normalizeAssistantTurn(turn schema.Turn) schema.Turn {
	turn.Kind = schema.TurnAssistant
	for i := range turn.ToolCalls {
		if turn.ToolCalls[i].ID == "" {
			turn.ToolCalls[i].ID = uuid.NewString()
		}
	}
	return turn
}

func lastAssistantContent(tr schema.Transcript) string {
	for i := tr.Len() - 1; i >= 0; i-- {
		t := tr.Turns[i]
		if t.Kind == schema.TurnAssistant && t.Content != "" {
			return t.Content
		}
	}
	return ""
}
