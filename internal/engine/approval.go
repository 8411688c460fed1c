package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pawzhub/pawd/internal/provider"
)

// DeniedMessage is appended as a synthetic Tool result when a call is
// denied, times out, or its approval channel closes.
const DeniedMessage = "Tool execution denied by user."

// PendingApprovals is the shared map of in-flight approval requests,
// keyed by tool-call id. It is shared across concurrent turns; each
// entry is owned by the turn that registered it until resolved or
// timed out. Inject one per engine host — never a package singleton.
type PendingApprovals struct {
	mu      sync.Mutex
	waiters map[string]chan bool
}

// NewPendingApprovals creates an empty approval map.
func NewPendingApprovals() *PendingApprovals {
	return &PendingApprovals{waiters: make(map[string]chan bool)}
}

// register adds a one-shot waiter for the given tool-call id.
func (p *PendingApprovals) register(id string) chan bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan bool, 1)
	p.waiters[id] = ch
	return ch
}

// remove drops the waiter for id. Idempotent.
func (p *PendingApprovals) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiters, id)
}

// Resolve delivers a verdict for a pending tool call. Resolving an
// unknown id is a no-op; the return value reports whether a waiter
// was found.
func (p *PendingApprovals) Resolve(id string, approved bool) bool {
	p.mu.Lock()
	ch, ok := p.waiters[id]
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- approved:
	default:
		// Waiter already has a verdict buffered.
	}
	return true
}

// Len returns the number of pending approvals.
func (p *PendingApprovals) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// ApprovalGate decides whether a tool call may execute. Safe tools are
// auto-approved; everything else registers a waiter in the shared map,
// fires a ToolRequest event, and awaits a human verdict bounded by the
// configured timeout.
type ApprovalGate struct {
	pending *PendingApprovals
	safe    map[string]bool
	timeout time.Duration
	sink    EventSink
}

// NewApprovalGate creates a gate over the given shared approval map.
func NewApprovalGate(pending *PendingApprovals, safeTools []string, timeout time.Duration, sink EventSink) *ApprovalGate {
	safe := make(map[string]bool, len(safeTools))
	for _, name := range safeTools {
		safe[name] = true
	}
	if sink == nil {
		sink = NoopSink{}
	}
	return &ApprovalGate{pending: pending, safe: safe, timeout: timeout, sink: sink}
}

// Authorize returns true when the call may execute. Deny, timeout,
// closed channel, and context cancellation all report false. The
// pending-map entry is removed on every exit path.
func (g *ApprovalGate) Authorize(ctx context.Context, call provider.ToolCall) bool {
	if g.safe[call.Name] {
		return true
	}

	ch := g.pending.register(call.ID)
	defer g.pending.remove(call.ID)

	g.sink.Publish(Event{
		Type:       EventToolRequest,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Arguments:  call.Arguments,
	})

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case approved, ok := <-ch:
		if !ok {
			slog.Warn("approval channel closed", "tool", call.Name, "id", call.ID)
			return false
		}
		return approved
	case <-timer.C:
		slog.Warn("approval timed out", "tool", call.Name, "id", call.ID, "timeout", g.timeout)
		return false
	case <-ctx.Done():
		return false
	}
}
