package schema

// Transcript is the append-only ordered history of one run. Turns are only
// ever added at the end; existing turns are never mutated or removed.
type Transcript struct {
	Turns []Turn `json:"turns"`
}

// NewTranscript creates a transcript seeded with the given turns.
func NewTranscript(turns ...Turn) Transcript {
	return Transcript{Turns: turns}
}

// Add appends a turn.
func (tr *Transcript) Add(turn Turn) {
	tr.Turns = append(tr.Turns, turn)
}

// AddUser appends a user turn.
func (tr *Transcript) AddUser(content string) {
	tr.Add(NewUserTurn(content))
}

// AddToolResult appends a tool-result turn.
func (tr *Transcript) AddToolResult(callID, toolName, result string, isError bool) {
	tr.Add(NewToolResultTurn(callID, toolName, result, isError))
}

// Len returns the number of turns.
func (tr Transcript) Len() int { return len(tr.Turns) }

// Last returns the final turn, if any.
func (tr Transcript) Last() (Turn, bool) {
	if len(tr.Turns) == 0 {
		return Turn{}, false
	}
	return tr.Turns[len(tr.Turns)-1], true
}

// Tail returns up to the last n turns.
func (tr Transcript) Tail(n int) []Turn {
	if n >= len(tr.Turns) {
		return tr.Turns
	}
	return tr.Turns[len(tr.Turns)-n:]
}

// Clone returns a deep-enough copy: the turn slice is copied so appends to
// the clone never alias the original.
func (tr Transcript) Clone() Transcript {
	turns := make([]Turn, len(tr.Turns))
	copy(turns, tr.Turns)
	return Transcript{Turns: turns}
}
