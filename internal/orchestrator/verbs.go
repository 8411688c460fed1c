package orchestrator

import (
	"context"
	"fmt"

	"github.com/pawzhub/pawd/internal/engine"
	"github.com/pawzhub/pawd/internal/provider"
)

// Orchestration verb names. Boss verbs coordinate workers; the single
// worker verb reports back.
const (
	VerbDelegateTask     = "delegate_task"
	VerbCreateSubAgent   = "create_sub_agent"
	VerbCheckAgentStatus = "check_agent_status"
	VerbSendAgentMessage = "send_agent_message"
	VerbProjectComplete  = "project_complete"
	VerbReportProgress   = "report_progress"
)

// BossVerbDefinitions returns the tool definitions for boss turns.
func BossVerbDefinitions() []provider.ToolDefinition {
	return []provider.ToolDefinition{
		verbDef(VerbDelegateTask,
			"Delegate a task to a new worker agent that runs concurrently.",
			map[string]any{
				"task": map[string]any{"type": "string", "description": "Full description of the task for the worker"},
			}, []string{"task"}),
		verbDef(VerbCreateSubAgent,
			"Create a worker agent for a task using a specific model.",
			map[string]any{
				"task":  map[string]any{"type": "string", "description": "Full description of the task for the worker"},
				"model": map[string]any{"type": "string", "description": "Model to run the worker on (optional)"},
			}, []string{"task"}),
		verbDef(VerbCheckAgentStatus,
			"Check the status of a worker agent, or of all agents when agent_id is omitted.",
			map[string]any{
				"agent_id": map[string]any{"type": "string", "description": "The agent to check (optional)"},
			}, nil),
		verbDef(VerbSendAgentMessage,
			"Queue a message for a worker agent.",
			map[string]any{
				"agent_id": map[string]any{"type": "string", "description": "The agent to message"},
				"message":  map[string]any{"type": "string", "description": "The message content"},
			}, []string{"agent_id", "message"}),
		verbDef(VerbProjectComplete,
			"Mark the project finished and end the session with a final result.",
			map[string]any{
				"result": map[string]any{"type": "string", "description": "Final result or summary of the project"},
			}, []string{"result"}),
	}
}

// WorkerVerbDefinitions returns the tool definitions for worker turns.
func WorkerVerbDefinitions() []provider.ToolDefinition {
	return []provider.ToolDefinition{
		verbDef(VerbReportProgress,
			"Report task progress to the boss. Status \"done\" ends the worker turn.",
			map[string]any{
				"status":  map[string]any{"type": "string", "enum": []string{"working", "done", "failed"}},
				"message": map[string]any{"type": "string", "description": "Progress detail or final summary"},
			}, []string{"status", "message"}),
	}
}

func verbDef(name, description string, props map[string]any, required []string) provider.ToolDefinition {
	params := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return provider.ToolDefinition{
		Type: "function",
		Function: provider.FunctionDef{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// VerbExecutor wraps a base executor so the model sees the role's
// orchestration verbs alongside the builtin tools. The verbs are
// answered by the interceptor and never reach Execute; a verb landing
// here means no coordinator is wired.
type VerbExecutor struct {
	base engine.ToolExecutor
	role engine.RoleKind
}

// NewVerbExecutor wraps base with the verb definitions for kind.
func NewVerbExecutor(base engine.ToolExecutor, kind engine.RoleKind) *VerbExecutor {
	return &VerbExecutor{base: base, role: kind}
}

func (v *VerbExecutor) Definitions() []provider.ToolDefinition {
	var defs []provider.ToolDefinition
	if v.base != nil {
		defs = append(defs, v.base.Definitions()...)
	}
	switch v.role {
	case engine.RoleBoss:
		defs = append(defs, BossVerbDefinitions()...)
	case engine.RoleWorker:
		defs = append(defs, WorkerVerbDefinitions()...)
	}
	return defs
}

func (v *VerbExecutor) Execute(ctx context.Context, call provider.ToolCall) engine.ToolResult {
	if isVerb(call.Name) {
		return engine.ToolResult{Output: fmt.Sprintf("Error: %s is not available in this session", call.Name), Success: false}
	}
	if v.base == nil {
		return engine.ToolResult{Output: fmt.Sprintf("Error: unknown tool '%s'", call.Name), Success: false}
	}
	return v.base.Execute(ctx, call)
}

func isVerb(name string) bool {
	switch name {
	case VerbDelegateTask, VerbCreateSubAgent, VerbCheckAgentStatus,
		VerbSendAgentMessage, VerbProjectComplete, VerbReportProgress:
		return true
	}
	return false
}
