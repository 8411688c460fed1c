package engine

import (
	"context"

	"github.com/pawzhub/pawd/internal/provider"
)

// RoleKind enumerates the closed set of loop roles.
type RoleKind int

const (
	// RoleBoss decomposes work, delegates to workers, and is the only
	// role that emits a Complete event on final text.
	RoleBoss RoleKind = iota
	// RoleWorker executes a delegated task and reports progress.
	RoleWorker
)

// Role parameterizes the loop body. Workers carry the agent id they
// report progress under.
type Role struct {
	Kind    RoleKind
	AgentID string
}

// Boss returns the boss role.
func Boss() Role { return Role{Kind: RoleBoss} }

// Worker returns a worker role for the given agent.
func Worker(agentID string) Role { return Role{Kind: RoleWorker, AgentID: agentID} }

// String returns the role name for logging.
func (r Role) String() string {
	switch r.Kind {
	case RoleBoss:
		return "boss"
	case RoleWorker:
		return "worker:" + r.AgentID
	}
	return "unknown"
}

// InterceptResult is a tool outcome produced by a role interceptor
// instead of normal approval + execution.
type InterceptResult struct {
	Output  string
	Success bool
	// Stop ends the turn after this call (project completed, or a
	// worker reported a terminal status).
	Stop bool
}

// ToolInterceptor is offered every tool call before the approval gate.
// Role-owned orchestration verbs are handled directly; handled=false
// falls through to the gate and executor.
type ToolInterceptor interface {
	Intercept(ctx context.Context, role Role, call provider.ToolCall) (InterceptResult, bool)
}

// InterceptorFunc adapts a function to the ToolInterceptor interface.
type InterceptorFunc func(ctx context.Context, role Role, call provider.ToolCall) (InterceptResult, bool)

// Intercept calls the function.
func (f InterceptorFunc) Intercept(ctx context.Context, role Role, call provider.ToolCall) (InterceptResult, bool) {
	return f(ctx, role, call)
}
