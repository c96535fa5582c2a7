package textutils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/agentfactory/loopkit/internal/schema"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello..."},
		{"empty", "", 3, ""},
		{"multi-byte backs off to boundary", "héllo", 2, "h..."},
		{"cut between runes keeps both sides", "日本語", 6, "日本..."},
		{"cut inside rune drops it", "日本語", 4, "日..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("Truncate(%q, %d) produced invalid UTF-8: %q", tt.in, tt.n, got)
			}
		})
	}
}

func TestStringOrDefault(t *testing.T) {
	if got := StringOrDefault("", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
	if got := StringOrDefault("set", "fallback"); got != "set" {
		t.Errorf("expected set, got %q", got)
	}
}

func TestToolHint(t *testing.T) {
	calls := []schema.ToolCall{
		{Name: "web_fetch", Arguments: map[string]any{"url": "https://example.com"}},
		{Name: "list_dir", Arguments: map[string]any{}},
	}
	got := ToolHint(calls)
	want := `web_fetch("https://example.com"), list_dir`
	if got != want {
		t.Errorf("ToolHint = %q, want %q", got, want)
	}
}

func TestToolHint_StableArgumentPick(t *testing.T) {
	call := schema.ToolCall{Name: "write_file", Arguments: map[string]any{
		"path":    "notes.txt",
		"content": "draft",
		"count":   3,
	}}
	want := `write_file("draft")`
	for i := 0; i < 20; i++ {
		if got := ToolHint([]schema.ToolCall{call}); got != want {
			t.Fatalf("iteration %d: ToolHint = %q, want %q", i, got, want)
		}
	}
}

func TestToolHint_LongValueStaysValidUTF8(t *testing.T) {
	call := schema.ToolCall{Name: "write_file", Arguments: map[string]any{
		"content": strings.Repeat("語", 30),
	}}
	got := ToolHint([]schema.ToolCall{call})
	if !utf8.ValidString(got) {
		t.Errorf("hint contains invalid UTF-8: %q", got)
	}
	if !strings.Contains(got, "…") {
		t.Errorf("expected truncation marker in %q", got)
	}
}
