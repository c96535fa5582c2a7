package plan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agentfactory/loopkit/internal/loop"
	"github.com/agentfactory/loopkit/internal/schema"
)

// RunnerFactory produces a fresh runner per subtask so concurrent subtask
// runs never share loop state.
type RunnerFactory func() *loop.Runner

// Result is the outcome of executing a whole plan.
type Result struct {
	Status   schema.RunStatus
	Subtasks []schema.Subtask
	// Summary is the result of the final completed subtask, or empty when
	// the plan failed outright.
	Summary string
}

// Executor runs a plan's subtasks in dependency waves: every subtask whose
// dependencies have completed runs in the current wave, concurrently up to
// maxConcurrent. A failed subtask fails its dependents without running them;
// independent branches keep going.
type Executor struct {
	newRunner     RunnerFactory
	maxConcurrent int
}

// NewExecutor creates an executor. maxConcurrent defaults to 4.
func NewExecutor(factory RunnerFactory, maxConcurrent int) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Executor{newRunner: factory, maxConcurrent: maxConcurrent}
}

// Execute runs the plan to completion. The plan must have been validated.
func (e *Executor) Execute(ctx context.Context, p *Plan) *Result {
	var mu sync.Mutex

	for {
		ready, doomed := nextWave(p)

		for _, id := range doomed {
			st := p.Subtask(id)
			st.Status = schema.SubtaskFailed
			st.Result = fmt.Sprintf("not run: dependency failed (%s)", failedDepOf(p, st))
			slog.Warn("subtask skipped", "subtask", id, "reason", st.Result)
		}
		if len(ready) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.maxConcurrent)
		for _, id := range ready {
			st := p.Subtask(id)
			st.Status = schema.SubtaskInProgress
			g.Go(func() error {
				runner := e.newRunner()
				res := runner.Run(gctx, subtaskGoal(p, st))

				mu.Lock()
				defer mu.Unlock()
				if res.Completed() {
					st.Status = schema.SubtaskCompleted
					st.Result = res.FinalContent
				} else {
					st.Status = schema.SubtaskFailed
					st.Result = fmt.Sprintf("run %s (%s)", res.Status, res.StopReason)
				}
				slog.Info("subtask finished", "subtask", st.ID, "status", st.Status)
				return nil
			})
		}
		// Subtask failures are recorded in statuses, never returned.
		_ = g.Wait()
	}

	return summarize(p)
}

// nextWave returns the subtasks ready to run (all deps completed) and those
// doomed by a failed dependency.
func nextWave(p *Plan) (ready, doomed []string) {
	for i := range p.Subtasks {
		st := &p.Subtasks[i]
		if st.Status != schema.SubtaskPending {
			continue
		}
		blocked, dead := false, false
		for _, dep := range st.Dependencies {
			switch p.Subtask(dep).Status {
			case schema.SubtaskFailed:
				dead = true
			case schema.SubtaskCompleted:
			default:
				blocked = true
			}
		}
		switch {
		case dead:
			doomed = append(doomed, st.ID)
		case !blocked:
			ready = append(ready, st.ID)
		}
	}
	return ready, doomed
}

func failedDepOf(p *Plan, st *schema.Subtask) string {
	for _, dep := range st.Dependencies {
		if p.Subtask(dep).Status == schema.SubtaskFailed {
			return dep
		}
	}
	return "unknown"
}

// subtaskGoal builds the goal for one subtask run, folding in the results of
// its completed dependencies.
func subtaskGoal(p *Plan, st *schema.Subtask) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Overall goal: %s\n\nYour subtask: %s\n", p.Goal, st.Description)
	for _, dep := range st.Dependencies {
		d := p.Subtask(dep)
		if d.Status == schema.SubtaskCompleted && d.Result != "" {
			fmt.Fprintf(&sb, "\nResult of %q:\n%s\n", dep, d.Result)
		}
	}
	return sb.String()
}

func summarize(p *Plan) *Result {
	res := &Result{Subtasks: p.Subtasks, Status: schema.StatusCompleted}
	for _, st := range p.Subtasks {
		if st.Status != schema.SubtaskCompleted {
			res.Status = schema.StatusFailed
		}
	}
	if res.Status == schema.StatusCompleted && len(p.Subtasks) > 0 {
		res.Summary = p.Subtasks[len(p.Subtasks)-1].Result
	}
	return res
}
