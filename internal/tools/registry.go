// Package tools holds the tool registry, the dispatcher that executes tool
// calls on behalf of the loop controller, and the reference tools loopkit
// ships for its demo CLI.
package tools

import (
	"sort"

	"github.com/agentfactory/loopkit/internal/schema"
)

// registeredTool pairs a tool with its compiled argument schema.
type registeredTool struct {
	tool   schema.Tool
	schema *argumentSchema // nil when the tool declares no parameters
}

// Registry holds the set of named tools available to runs. It is immutable
// after Build and safe to share read-only across concurrent runs.
type Registry struct {
	tools map[string]*registeredTool
}

// Get returns the tool with the given name, or nil.
func (r *Registry) Get(name string) schema.Tool {
	if reg := r.tools[name]; reg != nil {
		return reg.tool
	}
	return nil
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the declaration surface of every registered tool,
// sorted by name so reasoner requests are deterministic.
func (r *Registry) Definitions() []schema.ToolDefinition {
	defs := make([]schema.ToolDefinition, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name].tool
		defs = append(defs, schema.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// ValidateArguments checks args against the tool's declared schema.
// Tools without a schema accept anything. The caller is responsible for
// ensuring the tool exists; unknown names validate trivially here.
func (r *Registry) ValidateArguments(name string, args map[string]any) error {
	reg := r.tools[name]
	if reg == nil || reg.schema == nil {
		return nil
	}
	return reg.schema.Validate(args)
}

// RegistryBuilder accumulates tools during the construction phase.
// Call Build() to produce an immutable Registry ready for use.
type RegistryBuilder struct {
	tools []schema.Tool
}

// NewRegistryBuilder returns a fresh RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{}
}

// WithTool adds a tool and returns the builder, enabling chaining.
// A later tool with the same name replaces an earlier one.
func (b *RegistryBuilder) WithTool(tool schema.Tool) *RegistryBuilder {
	b.tools = append(b.tools, tool)
	return b
}

// Build compiles every tool's parameter schema and produces an immutable
// Registry. A tool declaring an invalid JSON Schema fails the build; this is
// a programming error, not a runtime condition.
func (b *RegistryBuilder) Build() (*Registry, error) {
	tools := make(map[string]*registeredTool, len(b.tools))
	for _, t := range b.tools {
		compiled, err := compileArgumentSchema(t.Name(), t.Parameters())
		if err != nil {
			return nil, err
		}
		tools[t.Name()] = &registeredTool{tool: t, schema: compiled}
	}
	return &Registry{tools: tools}, nil
}
