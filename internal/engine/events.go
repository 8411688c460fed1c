// Package engine implements the round-based agent loop: streamed
// tool-call assembly, approval gating, anomaly recovery, context
// truncation, and boss/worker role dispatch.
package engine

import (
	"github.com/pawzhub/pawd/internal/provider"
)

// EventType identifies an engine event.
type EventType string

const (
	EventDelta         EventType = "delta"
	EventThinkingDelta EventType = "thinking_delta"
	EventToolRequest   EventType = "tool_request"
	EventToolResult    EventType = "tool_result"
	EventComplete      EventType = "complete"
	EventError         EventType = "error"
)

// Event is a fire-and-forget notification from the loop. Sinks must
// never block or fail the loop.
type Event struct {
	Type           EventType       `json:"type"`
	RunID          string          `json:"run_id,omitempty"`
	Text           string          `json:"text,omitempty"`
	ToolCallID     string          `json:"tool_call_id,omitempty"`
	ToolName       string          `json:"tool_name,omitempty"`
	Arguments      string          `json:"arguments,omitempty"`
	Output         string          `json:"output,omitempty"`
	Success        bool            `json:"success,omitempty"`
	Model          string          `json:"model,omitempty"`
	Usage          *provider.Usage `json:"usage,omitempty"`
	ToolCallsCount int             `json:"tool_calls_count,omitempty"`
	Rounds         int             `json:"rounds,omitempty"`
}

// EventSink receives engine events.
type EventSink interface {
	Publish(Event)
}

// NoopSink discards all events.
type NoopSink struct{}

// Publish discards the event.
func (NoopSink) Publish(Event) {}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(Event)

// Publish calls the function.
func (f SinkFunc) Publish(ev Event) { f(ev) }
