package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// argumentSchema wraps a compiled JSON Schema for one tool's arguments.
type argumentSchema struct {
	compiled *jsonschema.Schema
}

// compileArgumentSchema compiles a tool's raw parameter schema. Returns
// (nil, nil) when the tool declares no parameters.
func compileArgumentSchema(toolName string, raw json.RawMessage) (*argumentSchema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("tool %q: parse parameter schema: %w", toolName, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("tool %q: add schema resource: %w", toolName, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("tool %q: compile parameter schema: %w", toolName, err)
	}
	return &argumentSchema{compiled: compiled}, nil
}

// Validate checks the argument map against the compiled schema.
func (s *argumentSchema) Validate(args map[string]any) error {
	// The validator wants plain JSON types throughout, so round-trip the map
	// to normalize any typed values callers may have put in it.
	normalized, err := normalizeArgs(args)
	if err != nil {
		return fmt.Errorf("normalize arguments: %w", err)
	}
	if err := s.compiled.Validate(normalized); err != nil {
		return fmt.Errorf("arguments do not match schema: %w", err)
	}
	return nil
}

func normalizeArgs(args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}
