// Package orchestrator implements boss/worker coordination on top of
// the engine's role interceptor.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pawzhub/pawd/internal/engine"
	"github.com/pawzhub/pawd/internal/provider"
	"github.com/pawzhub/pawd/internal/store"
)

// Options configures a Coordinator.
type Options struct {
	Store    *store.Store
	Provider provider.ChatProvider
	Executor engine.ToolExecutor
	Sink     engine.EventSink
	Pending  *engine.PendingApprovals

	MaxWorkers      int
	WorkerMaxRounds int
	WorkerModel     string
	SafeTools       []string
	ApprovalTimeout time.Duration
	ToolTimeout     time.Duration
}

// Coordinator owns a project, spawns workers, and answers the
// orchestration verbs for both roles.
type Coordinator struct {
	opts      Options
	projectID string
	sem       *semaphore
	wg        sync.WaitGroup
}

// NewCoordinator creates a coordinator for a fresh project.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("orchestrator requires a store")
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 4
	}
	if opts.WorkerMaxRounds <= 0 {
		opts.WorkerMaxRounds = 20
	}
	if opts.Sink == nil {
		opts.Sink = engine.NoopSink{}
	}
	if opts.Pending == nil {
		opts.Pending = engine.NewPendingApprovals()
	}
	return &Coordinator{
		opts: opts,
		sem:  newSemaphore(opts.MaxWorkers),
	}, nil
}

// StartProject creates the project record the boss turn runs under.
func (c *Coordinator) StartProject(description string) (string, error) {
	projectID := "proj_" + uuid.NewString()[:8]
	if err := c.opts.Store.CreateProject(projectID, description); err != nil {
		return "", err
	}
	c.projectID = projectID
	return projectID, nil
}

// ProjectID returns the active project id.
func (c *Coordinator) ProjectID() string {
	return c.projectID
}

// Wait blocks until all spawned workers have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Intercept answers the orchestration verbs for the calling role.
// Unhandled tools fall through to the approval gate and executor.
func (c *Coordinator) Intercept(ctx context.Context, role engine.Role, call provider.ToolCall) (engine.InterceptResult, bool) {
	switch role.Kind {
	case engine.RoleBoss:
		return c.interceptBoss(ctx, call)
	case engine.RoleWorker:
		return c.interceptWorker(role.AgentID, call)
	}
	return engine.InterceptResult{}, false
}

func (c *Coordinator) interceptBoss(ctx context.Context, call provider.ToolCall) (engine.InterceptResult, bool) {
	switch call.Name {
	case VerbDelegateTask:
		return c.delegate(ctx, call, c.opts.WorkerModel), true
	case VerbCreateSubAgent:
		params, err := call.DecodeArguments()
		if err != nil {
			return failure(fmt.Sprintf("Error: invalid arguments: %v", err)), true
		}
		model := stringParam(params, "model")
		if model == "" {
			model = c.opts.WorkerModel
		}
		return c.delegate(ctx, call, model), true
	case VerbCheckAgentStatus:
		return c.checkAgentStatus(call), true
	case VerbSendAgentMessage:
		return c.sendAgentMessage(call), true
	case VerbProjectComplete:
		return c.completeProject(call), true
	}
	return engine.InterceptResult{}, false
}

func (c *Coordinator) interceptWorker(agentID string, call provider.ToolCall) (engine.InterceptResult, bool) {
	if call.Name != VerbReportProgress {
		return engine.InterceptResult{}, false
	}
	params, err := call.DecodeArguments()
	if err != nil {
		return failure(fmt.Sprintf("Error: invalid arguments: %v", err)), true
	}
	status := stringParam(params, "status")
	message := stringParam(params, "message")

	kind := store.MessageProgress
	storeStatus := store.AgentWorking
	switch status {
	case "done":
		kind = store.MessageResult
		storeStatus = store.AgentDone
	case "failed":
		kind = store.MessageError
		storeStatus = store.AgentFailed
	}
	if err := c.opts.Store.UpdateAgentStatus(agentID, storeStatus, message); err != nil {
		slog.Warn("failed to update agent status", "agent", agentID, "error", err)
	}
	if err := c.opts.Store.AddMessage(c.projectID, agentID, kind, message); err != nil {
		slog.Warn("failed to log progress", "agent", agentID, "error", err)
	}

	return engine.InterceptResult{
		Output:  fmt.Sprintf("Progress recorded (status: %s).", status),
		Success: true,
		Stop:    status == "done",
	}, true
}

func (c *Coordinator) delegate(ctx context.Context, call provider.ToolCall, model string) engine.InterceptResult {
	params, err := call.DecodeArguments()
	if err != nil {
		return failure(fmt.Sprintf("Error: invalid arguments: %v", err))
	}
	task := stringParam(params, "task")
	if task == "" {
		task = stringParam(params, "description")
	}
	if task == "" {
		return failure("Error: task is required")
	}
	if c.sem.available() == 0 {
		return failure(fmt.Sprintf("Error: all %d worker slots are busy; check agent status and wait for a worker to finish", c.opts.MaxWorkers))
	}

	agentID := "worker_" + uuid.NewString()[:8]
	if err := c.opts.Store.AddAgent(c.projectID, agentID, task, model); err != nil {
		return failure(fmt.Sprintf("Error: could not register agent: %v", err))
	}
	if err := c.opts.Store.AddMessage(c.projectID, agentID, store.MessageDelegation, task); err != nil {
		slog.Warn("failed to log delegation", "agent", agentID, "error", err)
	}

	c.spawnWorker(ctx, agentID, task, model)
	return engine.InterceptResult{
		Output:  fmt.Sprintf("Delegated to agent %s. Use %s to poll its progress.", agentID, VerbCheckAgentStatus),
		Success: true,
	}
}

// spawnWorker runs a worker turn as a goroutine under the semaphore cap.
func (c *Coordinator) spawnWorker(ctx context.Context, agentID, task, model string) {
	if !c.sem.tryAcquire() {
		// delegate checked availability; losing the race is still possible.
		c.recordWorkerError(agentID, "no worker slot available")
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.sem.release()

		slog.Info("worker starting", "agent", agentID, "model", model)
		eng := engine.New(engine.Options{
			Provider:        c.opts.Provider,
			Executor:        NewVerbExecutor(c.opts.Executor, engine.RoleWorker),
			Sink:            c.opts.Sink,
			Pending:         c.opts.Pending,
			Interceptor:     c,
			Role:            engine.Worker(agentID),
			RunID:           agentID,
			Model:           model,
			MaxRounds:       c.opts.WorkerMaxRounds,
			SafeTools:       c.opts.SafeTools,
			ApprovalTimeout: c.opts.ApprovalTimeout,
			ToolTimeout:     c.opts.ToolTimeout,
		})

		messages := []provider.Message{
			{Role: provider.RoleSystem, Content: workerSystemPrompt(agentID, task)},
			{Role: provider.RoleUser, Content: task},
		}
		if _, _, err := eng.RunTurn(ctx, messages); err != nil {
			slog.Error("worker failed", "agent", agentID, "error", err)
			c.recordWorkerError(agentID, err.Error())
		}
	}()
}

func (c *Coordinator) recordWorkerError(agentID, detail string) {
	if err := c.opts.Store.UpdateAgentStatus(agentID, store.AgentFailed, detail); err != nil {
		slog.Warn("failed to mark agent failed", "agent", agentID, "error", err)
	}
	if err := c.opts.Store.AddMessage(c.projectID, agentID, store.MessageError, detail); err != nil {
		slog.Warn("failed to log worker error", "agent", agentID, "error", err)
	}
}

func (c *Coordinator) checkAgentStatus(call provider.ToolCall) engine.InterceptResult {
	params, err := call.DecodeArguments()
	if err != nil {
		return failure(fmt.Sprintf("Error: invalid arguments: %v", err))
	}
	agentID := stringParam(params, "agent_id")
	if agentID == "" {
		return c.statusOverview()
	}

	agent, err := c.opts.Store.GetAgent(agentID)
	if err != nil {
		return failure(fmt.Sprintf("Error: %v", err))
	}
	if agent == nil {
		return failure(fmt.Sprintf("Error: unknown agent %q", agentID))
	}
	out := fmt.Sprintf("Agent %s: status=%s task=%q", agent.AgentID, agent.Status, agent.Task)
	if agent.LastWord != "" {
		out += fmt.Sprintf(" last_report=%q", agent.LastWord)
	}
	return engine.InterceptResult{Output: out, Success: true}
}

func (c *Coordinator) statusOverview() engine.InterceptResult {
	agents, err := c.opts.Store.ListAgents(c.projectID)
	if err != nil {
		return failure(fmt.Sprintf("Error: %v", err))
	}
	if len(agents) == 0 {
		return engine.InterceptResult{Output: "No agents have been delegated to yet.", Success: true}
	}
	var b strings.Builder
	for _, a := range agents {
		fmt.Fprintf(&b, "%s: status=%s task=%q\n", a.AgentID, a.Status, a.Task)
	}
	return engine.InterceptResult{Output: strings.TrimRight(b.String(), "\n"), Success: true}
}

func (c *Coordinator) sendAgentMessage(call provider.ToolCall) engine.InterceptResult {
	params, err := call.DecodeArguments()
	if err != nil {
		return failure(fmt.Sprintf("Error: invalid arguments: %v", err))
	}
	agentID := stringParam(params, "agent_id")
	message := stringParam(params, "message")
	if agentID == "" || message == "" {
		return failure("Error: agent_id and message are required")
	}
	agent, err := c.opts.Store.GetAgent(agentID)
	if err != nil || agent == nil {
		return failure(fmt.Sprintf("Error: unknown agent %q", agentID))
	}
	if err := c.opts.Store.AddMessage(c.projectID, agentID, store.MessageInfo, message); err != nil {
		return failure(fmt.Sprintf("Error: %v", err))
	}
	return engine.InterceptResult{Output: fmt.Sprintf("Message queued for agent %s.", agentID), Success: true}
}

func (c *Coordinator) completeProject(call provider.ToolCall) engine.InterceptResult {
	params, err := call.DecodeArguments()
	if err != nil {
		return failure(fmt.Sprintf("Error: invalid arguments: %v", err))
	}
	result := stringParam(params, "result")
	if result == "" {
		result = stringParam(params, "summary")
	}
	if err := c.opts.Store.CompleteProject(c.projectID, store.ProjectComplete, result); err != nil {
		return failure(fmt.Sprintf("Error: %v", err))
	}
	if err := c.opts.Store.AddMessage(c.projectID, "", store.MessageResult, result); err != nil {
		slog.Warn("failed to log project result", "project", c.projectID, "error", err)
	}
	return engine.InterceptResult{Output: result, Success: true, Stop: true}
}

func workerSystemPrompt(agentID, task string) string {
	return fmt.Sprintf(
		"You are worker agent %s. Complete the assigned task using the available tools, then call %s with status \"done\" and a short summary of the outcome. Report intermediate progress with status \"working\"; use status \"failed\" if the task cannot be completed.\n\nAssigned task: %s",
		agentID, VerbReportProgress, task)
}

func failure(output string) engine.InterceptResult {
	return engine.InterceptResult{Output: output, Success: false}
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
