package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxFetchBytes = 512 * 1024

// FetchTool retrieves the contents of a URL over HTTP.
type FetchTool struct {
	client *http.Client
}

// NewFetchTool creates a new FetchTool.
func NewFetchTool() *FetchTool {
	return &FetchTool{client: &http.Client{Timeout: 30 * time.Second}}
}

func (t *FetchTool) Name() string { return "fetch" }

func (t *FetchTool) Description() string {
	return "Fetch the contents of a URL via HTTP GET and return the response body."
}

func (t *FetchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to fetch (http or https)",
			},
		},
		"required": []string{"url"},
	}
}

func (t *FetchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	url := GetString(params, "url", "")
	if url == "" {
		return "Error: url is required", nil
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "Error: only http and https URLs are supported", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Sprintf("Error: invalid URL: %v", err), nil
	}
	req.Header.Set("User-Agent", "pawd/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), nil
	}

	if resp.StatusCode >= 400 {
		return fmt.Sprintf("Error: HTTP %d from %s\n%s", resp.StatusCode, url, string(body)), nil
	}
	if len(body) == 0 {
		return "(empty response)", nil
	}
	return string(body), nil
}
