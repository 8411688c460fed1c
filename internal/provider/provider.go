// Package provider implements LLM provider interfaces and clients.
package provider

import (
	"context"
	"encoding/json"
)

// Message roles. The first non-System message of a conversation is
// always a User message; downstream code relies on that ordering.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatProvider is the interface for streaming LLM API clients. The
// returned chunk slice is the fully drained stream; callers replay it
// for delta events and hand it to the assembler.
type ChatProvider interface {
	// ChatStream sends a completion request and drains the response
	// stream into an ordered chunk sequence.
	ChatStream(ctx context.Context, req *ChatRequest) ([]StreamChunk, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Model       string
	MaxTokens   int
	Temperature float64
}

// StreamChunk is one normalized unit of a provider response stream.
// Exactly as received: text and tool-call fragments may interleave,
// and a single logical tool call may span many chunks.
type StreamChunk struct {
	DeltaText      string
	ThinkingText   string
	ToolCallDeltas []ToolCallDelta
	ThoughtParts   []string
	FinishReason   string
	Model          string
	Usage          *Usage
}

// ToolCallDelta is a fragment of a tool call keyed by stream index.
// ID and Name arrive once; Arguments arrive as string deltas that
// concatenate in stream order.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Message represents a chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Images     []string   `json:"images,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a fully assembled tool call. Arguments holds the raw
// JSON string as emitted by the model; decode lazily at execution.
type ToolCall struct {
	ID        string `json:"id"`
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Thought   string `json:"thought,omitempty"`
}

// DecodeArguments parses the raw argument JSON into a map.
func (tc ToolCall) DecodeArguments() (map[string]any, error) {
	args := map[string]any{}
	if tc.Arguments == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// ToolDefinition defines a tool that can be called by the LLM.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a function that can be called.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
