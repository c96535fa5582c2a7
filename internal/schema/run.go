package schema

import "time"

// RunStatus is the lifecycle state of one run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusAborted   RunStatus = "aborted"
)

// StopReason names why a run left the Running state without completing.
type StopReason string

const (
	StopMaxIterations       StopReason = "max_iterations"
	StopTimeout             StopReason = "timeout"
	StopCancelled           StopReason = "cancelled"
	StopReasonerUnavailable StopReason = "reasoner_unavailable"
	StopReflection          StopReason = "reflection_stop"
)

// RunState is the controller-owned mutable state of one run. One instance per
// run; only the loop controller writes to it.
type RunState struct {
	Iterations int
	StartedAt  time.Time
	Status     RunStatus
	StopReason StopReason
}

// RunResult is what a run always returns: a terminal status plus the
// transcript as it stood at termination. Runs never surface panics or raw
// errors to the caller; Err carries the underlying cause for
// reasoner_unavailable and pre-loop failures.
type RunResult struct {
	RunID        string
	Status       RunStatus
	StopReason   StopReason
	FinalContent string
	Transcript   Transcript
	Iterations   int
	Duration     time.Duration
	Err          error
}

// Completed reports whether the run produced a final answer.
func (r *RunResult) Completed() bool { return r.Status == StatusCompleted }
