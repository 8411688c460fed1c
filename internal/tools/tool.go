// Package tools implements the builtin tool set and its registry.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pawzhub/pawd/internal/engine"
	"github.com/pawzhub/pawd/internal/provider"
)

// Tool is the interface implemented by all agent tools.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema for the tool's arguments.
	Parameters() map[string]any
	// Execute runs the tool. Failures are returned as error strings in
	// the output, not as errors — an error here means the tool itself
	// could not run at all.
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// Registry holds available tools.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool definitions for a chat request.
func (r *Registry) Definitions() []provider.ToolDefinition {
	defs := make([]provider.ToolDefinition, 0, len(r.tools))
	for _, name := range r.List() {
		tool := r.tools[name]
		defs = append(defs, provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs an assembled tool call. It never returns an error:
// unknown tools, bad arguments, and tool failures all come back as
// unsuccessful results so the model can react.
func (r *Registry) Execute(ctx context.Context, call provider.ToolCall) engine.ToolResult {
	tool, ok := r.tools[call.Name]
	if !ok {
		return engine.ToolResult{Output: fmt.Sprintf("Error: unknown tool '%s'", call.Name), Success: false}
	}

	params, err := call.DecodeArguments()
	if err != nil {
		return engine.ToolResult{Output: fmt.Sprintf("Error: invalid tool arguments: %v", err), Success: false}
	}

	slog.Debug("executing tool", "tool", call.Name, "id", call.ID)
	output, err := tool.Execute(ctx, params)
	if err != nil {
		return engine.ToolResult{Output: fmt.Sprintf("Error executing %s: %v", call.Name, err), Success: false}
	}
	return engine.ToolResult{Output: output, Success: !isErrorOutput(output)}
}

// isErrorOutput recognizes the "Error: ..." convention tools use to
// report failures in-band.
func isErrorOutput(output string) bool {
	return len(output) >= 6 && output[:6] == "Error:"
}

// GetString extracts a string parameter with a default.
func GetString(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
}

// GetInt extracts an integer parameter with a default.
func GetInt(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// GetBool extracts a boolean parameter with a default.
func GetBool(params map[string]any, key string, def bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return def
}
