// Package reasoner provides Reasoner implementations: an HTTP client for
// OpenAI-compatible chat completion endpoints and a scripted replay reasoner
// for tests and offline use.
package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agentfactory/loopkit/internal/schema"
)

// Client calls any OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey      string
	apiBase     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// ClientConfig holds the connection settings for a Client.
type ClientConfig struct {
	APIKey      string
	APIBase     string // defaults to https://api.openai.com/v1
	Model       string
	MaxTokens   int // defaults to 4096
	Temperature float64
}

// NewClient builds a chat completions client.
func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{
		apiKey:      cfg.APIKey,
		apiBase:     base,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Reason implements schema.Reasoner over the chat completions wire format.
func (c *Client) Reason(ctx context.Context, tr schema.Transcript, tools []schema.ToolDefinition) (schema.Turn, error) {
	body := map[string]any{
		"model":       c.model,
		"messages":    wireMessages(tr),
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
	}
	if len(tools) > 0 {
		body["tools"] = wireTools(tools)
		body["tool_choice"] = "auto"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return schema.Turn{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return schema.Turn{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return schema.Turn{}, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.Turn{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return schema.Turn{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(raw))
	}

	return parseChatResponse(raw)
}

// wireMessages converts the transcript to chat completion messages.
func wireMessages(tr schema.Transcript) []map[string]any {
	msgs := make([]map[string]any, 0, tr.Len())
	for _, turn := range tr.Turns {
		switch turn.Kind {
		case schema.TurnUser:
			msgs = append(msgs, map[string]any{"role": "user", "content": turn.Content})
		case schema.TurnAssistant:
			m := map[string]any{"role": "assistant", "content": turn.Content}
			if turn.HasToolCalls() {
				calls := make([]map[string]any, 0, len(turn.ToolCalls))
				for _, tc := range turn.ToolCalls {
					args, err := json.Marshal(tc.Arguments)
					if err != nil {
						args = []byte("{}")
					}
					calls = append(calls, map[string]any{
						"id":   tc.ID,
						"type": "function",
						"function": map[string]any{
							"name":      tc.Name,
							"arguments": string(args),
						},
					})
				}
				m["tool_calls"] = calls
			}
			msgs = append(msgs, m)
		case schema.TurnToolResult:
			msgs = append(msgs, map[string]any{
				"role":         "tool",
				"tool_call_id": turn.ToolCallID,
				"content":      turn.Content,
			})
		}
	}
	return msgs
}

// wireTools converts tool definitions to the function-calling declaration format.
func wireTools(tools []schema.ToolDefinition) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		params := any(map[string]any{"type": "object"})
		if len(t.Parameters) > 0 {
			params = json.RawMessage(t.Parameters)
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  params,
			},
		})
	}
	return out
}

// chatRespBody is the subset of the chat completion response we care about.
type chatRespBody struct {
	Choices []struct {
		Message struct {
			Content   any `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func parseChatResponse(raw []byte) (schema.Turn, error) {
	var body chatRespBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.Turn{}, fmt.Errorf("parse response: %w", err)
	}
	if len(body.Choices) == 0 {
		return schema.Turn{}, fmt.Errorf("empty choices in response")
	}
	msg := body.Choices[0].Message

	content, _ := msg.Content.(string)

	var calls []schema.ToolCall
	for _, tc := range msg.ToolCalls {
		args, err := repairJSON(tc.Function.Arguments)
		if err != nil {
			slog.Warn("failed to parse tool arguments", "tool", tc.Function.Name, "err", err)
			args = map[string]any{}
		}
		calls = append(calls, schema.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return schema.NewAssistantTurn(content, calls), nil
}

// repairJSON attempts to unmarshal JSON, retrying after stripping trailing
// garbage. This handles models that emit truncated tool arguments.
func repairJSON(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}

	stripped := strings.TrimRight(raw, " \t\n\r}]")
	if !strings.HasSuffix(stripped, "}") {
		stripped += "}"
	}
	if err := json.Unmarshal([]byte(stripped), &out); err == nil {
		return out, nil
	}

	if i := strings.LastIndex(raw, "}"); i >= 0 {
		if err := json.Unmarshal([]byte(raw[:i+1]), &out); err == nil {
			return out, nil
		}
	}

	return map[string]any{}, fmt.Errorf("cannot repair JSON: %s", raw)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}
