package schema

// SubtaskStatus is the lifecycle state of one plan subtask. Transitions are
// monotonic: a subtask never leaves Completed or Failed.
type SubtaskStatus string

const (
	SubtaskPending    SubtaskStatus = "pending"
	SubtaskInProgress SubtaskStatus = "in_progress"
	SubtaskCompleted  SubtaskStatus = "completed"
	SubtaskFailed     SubtaskStatus = "failed"
)

// Subtask is one node in a dependency-ordered decomposition of a larger goal.
// The set is created once at plan time; the executor only advances statuses.
type Subtask struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies,omitempty"`

	Status SubtaskStatus `json:"status"`
	// Result holds the subtask run's final content, or the failure message
	// when Status is Failed.
	Result string `json:"result,omitempty"`
}

// Terminal reports whether the subtask reached a final status.
func (s Subtask) Terminal() bool {
	return s.Status == SubtaskCompleted || s.Status == SubtaskFailed
}
