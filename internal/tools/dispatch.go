package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentfactory/loopkit/internal/schema"
)

// Dispatcher executes a batch of tool calls against a registry and converts
// every outcome, success or failure, into tool-result turns. Failures never
// escape the dispatcher as Go errors: an unknown tool, invalid arguments, a
// handler error, or a handler panic all become an error-flagged result turn
// so the reasoner can see what went wrong and adjust.
type Dispatcher struct {
	registry *Registry
	parallel bool
}

// NewDispatcher returns a dispatcher over the given registry. When parallel
// is true, calls within a batch execute concurrently; result order always
// matches call order either way.
func NewDispatcher(registry *Registry, parallel bool) *Dispatcher {
	return &Dispatcher{registry: registry, parallel: parallel}
}

// Dispatch executes every call in the batch and returns one tool-result turn
// per call, in the same order as the calls.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []schema.ToolCall) []schema.Turn {
	results := make([]schema.Turn, len(calls))

	if !d.parallel || len(calls) == 1 {
		for i, call := range calls {
			results[i] = d.dispatchOne(ctx, call)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call schema.ToolCall) {
			defer wg.Done()
			results[i] = d.dispatchOne(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, call schema.ToolCall) schema.Turn {
	tool := d.registry.Get(call.Name)
	if tool == nil {
		slog.Warn("unknown tool requested", "tool", call.Name, "call_id", call.ID)
		return schema.NewToolResultTurn(call.ID, call.Name,
			fmt.Sprintf("unknown tool: %s", call.Name), true)
	}

	if err := d.registry.ValidateArguments(call.Name, call.Arguments); err != nil {
		slog.Warn("tool arguments rejected", "tool", call.Name, "error", err)
		return schema.NewToolResultTurn(call.ID, call.Name,
			fmt.Sprintf("invalid arguments for %s: %v", call.Name, err), true)
	}

	start := time.Now()
	result, err := safeExecute(ctx, tool, call.Arguments)
	elapsed := time.Since(start)
	if err != nil {
		slog.Warn("tool execution failed", "tool", call.Name, "duration", elapsed, "error", err)
		return schema.NewToolResultTurn(call.ID, call.Name,
			fmt.Sprintf("tool %s failed: %v", call.Name, err), true)
	}

	slog.Debug("tool executed", "tool", call.Name, "duration", elapsed)
	return schema.NewToolResultTurn(call.ID, call.Name, result, false)
}

// safeExecute runs the tool and turns a panic into an ordinary error.
func safeExecute(ctx context.Context, tool schema.Tool, args map[string]any) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tool.Execute(ctx, args)
}
