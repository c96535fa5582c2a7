// Package schema is the core data model shared across loopkit packages:
// turns, transcripts, tool contracts, run outcomes and plan subtasks. It is
// the single canonical source of truth for what flows through a run.
package schema

// TurnKind identifies who produced a transcript turn.
type TurnKind string

const (
	TurnUser       TurnKind = "user"
	TurnAssistant  TurnKind = "assistant"
	TurnToolResult TurnKind = "tool_result"
)

// ToolCall is one tool invocation requested by the reasoner.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Turn is one entry of a transcript. Which fields are meaningful depends on
// Kind: user turns carry Content; assistant turns carry Content and/or
// ToolCalls; tool-result turns carry Content plus the call correlation
// fields and the IsError flag.
type Turn struct {
	Kind      TurnKind   `json:"kind"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`

	// Tool-result correlation fields.
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	IsError    bool   `json:"isError,omitempty"`
}

// NewUserTurn creates a user turn.
func NewUserTurn(content string) Turn {
	return Turn{Kind: TurnUser, Content: content}
}

// NewAssistantTurn creates an assistant turn with optional tool calls.
func NewAssistantTurn(content string, calls []ToolCall) Turn {
	return Turn{Kind: TurnAssistant, Content: content, ToolCalls: calls}
}

// NewToolResultTurn creates a tool-result turn correlated to a prior call.
func NewToolResultTurn(callID, toolName, content string, isError bool) Turn {
	return Turn{
		Kind:       TurnToolResult,
		Content:    content,
		ToolCallID: callID,
		ToolName:   toolName,
		IsError:    isError,
	}
}

// HasToolCalls reports whether the turn requests any tool invocations.
func (t Turn) HasToolCalls() bool { return len(t.ToolCalls) > 0 }
