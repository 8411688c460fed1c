package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// MalformedToolCallMarker is injected into the text stream when the
// provider emits a function-call payload that cannot be decoded. The
// engine's recovery policy watches for it.
const MalformedToolCallMarker = "[MALFORMED_TOOL_CALL]"

// OpenAIProvider implements ChatProvider against the OpenAI-compatible
// streaming API. It works with OpenRouter, OpenAI, and other
// compatible gateways.
type OpenAIProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	httpClient   *http.Client
	maxRetries   int
}

// NewOpenAIProvider creates a new OpenAI-compatible streaming provider.
func NewOpenAIProvider(apiKey, apiBase, defaultModel string) *OpenAIProvider {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	return &OpenAIProvider{
		apiKey:       apiKey,
		apiBase:      strings.TrimSuffix(apiBase, "/"),
		defaultModel: defaultModel,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
		maxRetries: 3,
	}
}

// DefaultModel returns the configured default model.
func (p *OpenAIProvider) DefaultModel() string {
	return p.defaultModel
}

// ChatStream sends a streaming completion request and drains the SSE
// response into an ordered chunk sequence.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req *ChatRequest) ([]StreamChunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := map[string]any{
		"model":          model,
		"messages":       p.convertMessages(req.Messages),
		"stream":         true,
		"stream_options": map[string]any{"include_usage": true},
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if len(req.Tools) > 0 {
		body["tools"] = req.Tools
		body["tool_choice"] = "auto"
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 2 * time.Second
			slog.Warn("provider request retry", "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		chunks, retryable, err := p.streamOnce(ctx, jsonBody)
		if err == nil {
			return chunks, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("provider request failed after %d retries: %w", p.maxRetries, lastErr)
}

func (p *OpenAIProvider) streamOnce(ctx context.Context, jsonBody []byte) ([]StreamChunk, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return parseSSEStream(resp.Body)
}

// parseSSEStream reads "data:" lines off an SSE body and normalizes
// each event into a StreamChunk. An undecodable event becomes a
// malformed-call marker chunk rather than an error so the engine's
// recovery policy can handle it.
func parseSSEStream(r io.Reader) ([]StreamChunk, bool, error) {
	var chunks []StreamChunk
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var event openAIStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			slog.Warn("undecodable stream event", "error", err)
			chunks = append(chunks, StreamChunk{DeltaText: MalformedToolCallMarker})
			continue
		}
		if chunk, ok := convertStreamEvent(&event); ok {
			chunks = append(chunks, chunk)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, true, fmt.Errorf("read stream: %w", err)
	}
	return chunks, false, nil
}

func convertStreamEvent(event *openAIStreamEvent) (StreamChunk, bool) {
	chunk := StreamChunk{Model: event.Model}
	populated := event.Model != ""

	if event.Usage != nil {
		chunk.Usage = &Usage{
			PromptTokens:     event.Usage.PromptTokens,
			CompletionTokens: event.Usage.CompletionTokens,
			TotalTokens:      event.Usage.TotalTokens,
		}
		populated = true
	}

	if len(event.Choices) > 0 {
		choice := event.Choices[0]
		chunk.DeltaText = choice.Delta.Content
		if choice.Delta.Reasoning != "" {
			chunk.ThinkingText = choice.Delta.Reasoning
		} else if choice.Delta.ReasoningContent != "" {
			chunk.ThinkingText = choice.Delta.ReasoningContent
		}
		chunk.FinishReason = choice.FinishReason
		for _, tc := range choice.Delta.ToolCalls {
			chunk.ToolCallDeltas = append(chunk.ToolCallDeltas, ToolCallDelta{
				Index:     tc.Index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		if chunk.DeltaText != "" || chunk.ThinkingText != "" || chunk.FinishReason != "" || len(chunk.ToolCallDeltas) > 0 {
			populated = true
		}
	}
	return chunk, populated
}

// convertMessages converts our Message type to OpenAI API format.
func (p *OpenAIProvider) convertMessages(messages []Message) []map[string]any {
	result := make([]map[string]any, len(messages))
	for i, msg := range messages {
		m := map[string]any{
			"role":    msg.Role,
			"content": msg.Content,
		}
		if msg.ToolCallID != "" {
			m["tool_call_id"] = msg.ToolCallID
		}
		if len(msg.ToolCalls) > 0 {
			toolCalls := make([]map[string]any, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				toolCalls[j] = map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": tc.Arguments,
					},
				}
			}
			m["tool_calls"] = toolCalls
		}
		result[i] = m
	}
	return result
}

// OpenAI streaming event types.
type openAIStreamEvent struct {
	Model   string               `json:"model"`
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIStreamChoice struct {
	Delta        openAIStreamDelta `json:"delta"`
	FinishReason string            `json:"finish_reason"`
}

type openAIStreamDelta struct {
	Content          string `json:"content"`
	Reasoning        string `json:"reasoning"`
	ReasoningContent string `json:"reasoning_content"`
	ToolCalls        []struct {
		Index    int    `json:"index"`
		ID       string `json:"id"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}
