package schema

import (
	"context"
	"encoding/json"
)

// Tool is the interface every loop-callable tool must satisfy.
// Handlers are expected to be pure from the loop's perspective: any mutable
// state they need (connection pools, caches) is their own responsibility and
// must not be shared with other tools through the registry.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema (as raw JSON bytes) for this tool's
	// arguments. Empty means "no declared schema"; arguments pass unchecked.
	Parameters() json.RawMessage
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolDefinition is the declaration surface of a registered tool, handed to
// the reasoning capability so it knows what it may call.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}
