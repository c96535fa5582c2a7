package reasoner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentfactory/loopkit/internal/schema"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		APIKey:  "test-key",
		APIBase: srv.URL,
		Model:   "test-model",
	})
}

func sampleTools() []schema.ToolDefinition {
	return []schema.ToolDefinition{{
		Name:        "echo",
		Description: "echo text",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"text": {"type": "string"}},
			"required": ["text"]
		}`),
	}}
}

// ─── Request shape ─────────────────────────────────────────────────────────

func TestClient_RequestWireFormat(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"},"finish_reason":"stop"}]}`))
	})

	tr := schema.NewTranscript(schema.NewUserTurn("hello"))
	tr.Add(schema.NewAssistantTurn("", []schema.ToolCall{
		{ID: "c1", Name: "echo", Arguments: map[string]any{"text": "x"}},
	}))
	tr.AddToolResult("c1", "echo", "echo: x", false)

	if _, err := client.Reason(context.Background(), tr, sampleTools()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured["model"] != "test-model" {
		t.Errorf("unexpected model: %v", captured["model"])
	}
	msgs := captured["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "user" || first["content"] != "hello" {
		t.Errorf("unexpected first message: %v", first)
	}
	second := msgs[1].(map[string]any)
	if second["role"] != "assistant" {
		t.Errorf("unexpected second role: %v", second["role"])
	}
	if _, ok := second["tool_calls"]; !ok {
		t.Error("expected tool_calls on assistant message")
	}
	third := msgs[2].(map[string]any)
	if third["role"] != "tool" || third["tool_call_id"] != "c1" {
		t.Errorf("unexpected tool message: %v", third)
	}
	if _, ok := captured["tools"]; !ok {
		t.Error("expected tools in request")
	}
}

// ─── Response parsing ──────────────────────────────────────────────────────

func TestClient_ParsesToolCalls(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{
			"content": null,
			"tool_calls": [{
				"id": "call_1",
				"function": {"name": "echo", "arguments": "{\"text\": \"hi\"}"}
			}]
		},"finish_reason":"tool_calls"}]}`))
	})

	turn, err := client.Reason(context.Background(),
		schema.NewTranscript(schema.NewUserTurn("go")), sampleTools())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.Kind != schema.TurnAssistant {
		t.Errorf("expected assistant turn, got %q", turn.Kind)
	}
	if len(turn.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(turn.ToolCalls))
	}
	call := turn.ToolCalls[0]
	if call.ID != "call_1" || call.Name != "echo" {
		t.Errorf("unexpected call: %+v", call)
	}
	if call.Arguments["text"] != "hi" {
		t.Errorf("unexpected arguments: %v", call.Arguments)
	}
}

func TestClient_TruncatedArgumentsRepaired(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{
			"tool_calls": [{
				"id": "call_1",
				"function": {"name": "echo", "arguments": "{\"text\": \"hi\""}
			}]
		}}]}`))
	})

	turn, err := client.Reason(context.Background(),
		schema.NewTranscript(schema.NewUserTurn("go")), sampleTools())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if turn.ToolCalls[0].Arguments["text"] != "hi" {
		t.Errorf("expected repaired arguments, got %v", turn.ToolCalls[0].Arguments)
	}
}

func TestClient_HTTPErrorSurfaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Reason(context.Background(),
		schema.NewTranscript(schema.NewUserTurn("go")), nil)
	if err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}

func TestClient_EmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Reason(context.Background(),
		schema.NewTranscript(schema.NewUserTurn("go")), nil)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

// ─── repairJSON ────────────────────────────────────────────────────────────

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantKey string
		wantErr bool
	}{
		{"valid", `{"a": 1}`, "a", false},
		{"empty", ``, "", false},
		{"truncated value", `{"a": "x"`, "a", false},
		{"trailing garbage", `{"a": 1}]]`, "a", false},
		{"hopeless", `not json at all`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := repairJSON(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantKey != "" {
				if _, ok := out[tt.wantKey]; !ok {
					t.Errorf("expected key %q in %v", tt.wantKey, out)
				}
			}
		})
	}
}
