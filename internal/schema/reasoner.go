package schema

import "context"

// Reasoner is the external reasoning capability the loop controller consumes.
// Given the full ordered history and the available tool definitions it
// produces the next assistant turn: text content, zero or more requested tool
// calls, or both. Implementations are treated as opaque collaborators: in
// production a network call to an LLM provider, in tests a scripted sequence.
type Reasoner interface {
	Reason(ctx context.Context, transcript Transcript, tools []ToolDefinition) (Turn, error)
}
