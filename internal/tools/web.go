package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/agentfactory/loopkit/internal/shared/textutils"
)

const (
	fetchUserAgent = "loopkit/1.0 (+https://github.com/agentfactory/loopkit)"
	maxRedirects   = 5
	maxFetchBytes  = 4 << 20
)

// checkFetchURL rejects anything that is not an http(s) URL with a host.
func checkFetchURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in URL")
	}
	return nil
}

// WebFetchTool fetches a URL and returns its readable text content.
type WebFetchTool struct {
	maxChars   int
	httpClient *http.Client
}

// NewWebFetchTool creates a WebFetchTool. maxChars defaults to 50000.
func NewWebFetchTool(maxChars int) *WebFetchTool {
	if maxChars <= 0 {
		maxChars = 50000
	}
	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &WebFetchTool{maxChars: maxChars, httpClient: client}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }
func (t *WebFetchTool) Description() string {
	return "Fetch a URL and extract its readable text content."
}
func (t *WebFetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "URL to fetch"
			},
			"maxChars": {
				"type": "integer",
				"description": "Truncate the extracted text to this many characters",
				"minimum": 100
			}
		},
		"required": ["url"]
	}`)
}

func (t *WebFetchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	rawURL, _ := params["url"].(string)
	if rawURL == "" {
		return "Error: url is required", nil
	}
	if err := checkFetchURL(rawURL); err != nil {
		return fmt.Sprintf("Error: invalid URL: %v", err), nil
	}

	limit := t.maxChars
	if v, ok := params["maxChars"].(float64); ok && int(v) >= 100 {
		limit = int(v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error fetching %s: %v", rawURL, err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Sprintf("Error: %s returned HTTP %d", rawURL, resp.StatusCode), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), nil
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "html") {
		// Plain text, JSON and friends pass through untouched.
		return textutils.Truncate(string(body), limit), nil
	}

	pageURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), pageURL)
	if err != nil {
		return fmt.Sprintf("Error extracting content: %v", err), nil
	}

	var sb strings.Builder
	if article.Title != "" {
		sb.WriteString(article.Title + "\n\n")
	}
	sb.WriteString(strings.TrimSpace(article.TextContent))
	return textutils.Truncate(sb.String(), limit), nil
}
