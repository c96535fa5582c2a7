// Package textutils holds small string helpers shared across loopkit.
package textutils

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agentfactory/loopkit/internal/schema"
)

// Truncate shortens a string to at most n bytes, adding "..." if it was
// truncated. The cut never splits a multi-byte rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return cutAtRune(s, n) + "..."
}

// cutAtRune returns s[:n] backed off to the nearest rune boundary.
// Requires len(s) > n.
func cutAtRune(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// StringOrDefault returns s if it's not empty, or def if s is empty.
func StringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ToolHint generates a short display hint for a batch of tool calls,
// e.g. `web_fetch("https://example.com")`.
func ToolHint(calls []schema.ToolCall) string {
	parts := make([]string, 0, len(calls))
	for _, call := range calls {
		// Pick the first string argument in key order so the hint is stable
		// across runs.
		keys := make([]string, 0, len(call.Arguments))
		for k := range call.Arguments {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var firstVal string
		for _, k := range keys {
			if s, ok := call.Arguments[k].(string); ok && s != "" {
				firstVal = s
				break
			}
		}
		if firstVal == "" {
			parts = append(parts, call.Name)
			continue
		}
		if len(firstVal) > 40 {
			firstVal = cutAtRune(firstVal, 40) + "…"
		}
		parts = append(parts, fmt.Sprintf("%s(%q)", call.Name, firstVal))
	}
	return strings.Join(parts, ", ")
}
