package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/pawzhub/pawd/internal/config"
	"github.com/pawzhub/pawd/internal/engine"
	"github.com/pawzhub/pawd/internal/store"
	"github.com/pawzhub/pawd/internal/tools"
	"github.com/pawzhub/pawd/internal/trace"
)

// buildRegistry registers the builtin tool set.
func buildRegistry(cfg *config.Config) *tools.Registry {
	workspace := func() string { return cfg.Paths.Workspace }
	reg := tools.NewRegistry()
	reg.Register(tools.NewReadFileTool())
	reg.Register(tools.NewWriteFileTool(workspace))
	reg.Register(tools.NewDeleteFileTool(workspace))
	reg.Register(tools.NewListDirTool())
	reg.Register(tools.NewFetchTool())
	reg.Register(tools.NewExecTool(cfg.Engine.ToolTimeout(), cfg.Paths.Workspace))
	return reg
}

// openStore opens the sqlite store under the data dir and expires
// approvals left pending by a previous run.
func openStore(cfg *config.Config) (*store.Store, error) {
	dataDir := cfg.Paths.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s, err := store.New(filepath.Join(dataDir, "pawd.db"))
	if err != nil {
		return nil, err
	}
	if n, err := s.ExpireStaleApprovals(cfg.Engine.ApprovalTimeout()); err == nil && n > 0 {
		fmt.Printf("Expired %d stale approval(s) from a previous run.\n", n)
	}
	return s, nil
}

// buildSink assembles the event sink stack: console output, optional
// Kafka tracing, and the interactive approver.
func buildSink(cfg *config.Config, pending *engine.PendingApprovals, st *store.Store, autoApprove bool) (engine.EventSink, func()) {
	sinks := trace.Fanout{
		&consoleSink{out: os.Stdout},
		&approvalAudit{store: st},
		&runRecorder{store: st},
		newStdinApprover(pending, st, os.Stdin, autoApprove),
	}
	closeFn := func() {}
	if cfg.Trace.Enabled && strings.TrimSpace(cfg.Trace.KafkaBrokers) != "" {
		pub := trace.NewPublisher(strings.Split(cfg.Trace.KafkaBrokers, ","), cfg.Trace.RunGroup)
		sinks = append(sinks, pub)
		closeFn = func() { pub.Close() }
	}
	return sinks, closeFn
}

// consoleSink renders engine events on the terminal.
type consoleSink struct {
	out io.Writer
}

func (c *consoleSink) Publish(ev engine.Event) {
	switch ev.Type {
	case engine.EventDelta:
		fmt.Fprint(c.out, ev.Text)
	case engine.EventThinkingDelta:
		fmt.Fprint(c.out, color.HiBlackString(ev.Text))
	case engine.EventToolResult:
		status := color.GreenString("ok")
		if !ev.Success {
			status = color.RedString("failed")
		}
		fmt.Fprintf(c.out, "\n%s %s (%s)\n", color.YellowString("⚙"), ev.ToolName, status)
	case engine.EventComplete:
		fmt.Fprintln(c.out)
		if ev.Usage != nil {
			fmt.Fprintf(c.out, "%s\n", color.HiBlackString(
				"— %s · %d tool calls · %d in / %d out tokens",
				ev.Model, ev.ToolCallsCount, ev.Usage.PromptTokens, ev.Usage.CompletionTokens))
		}
	case engine.EventError:
		fmt.Fprintf(c.out, "\n%s %s\n", color.RedString("error:"), ev.Text)
	}
}

// approvalAudit mirrors approval requests into the store. Verdicts are
// written by the approver / bus router at resolve time.
type approvalAudit struct {
	store *store.Store
}

func (a *approvalAudit) Publish(ev engine.Event) {
	if a.store == nil || ev.Type != engine.EventToolRequest {
		return
	}
	if err := a.store.RecordApproval(ev.ToolCallID, ev.RunID, ev.ToolName, ev.Arguments); err != nil {
		fmt.Printf("approval audit failed: %v\n", err)
	}
}

// runRecorder persists per-turn token accounting on completion.
type runRecorder struct {
	store *store.Store
}

func (r *runRecorder) Publish(ev engine.Event) {
	if r.store == nil || ev.Type != engine.EventComplete || ev.Usage == nil {
		return
	}
	err := r.store.RecordRun(store.RunRecord{
		RunID:            ev.RunID,
		Model:            ev.Model,
		PromptTokens:     ev.Usage.PromptTokens,
		CompletionTokens: ev.Usage.CompletionTokens,
		TotalTokens:      ev.Usage.TotalTokens,
		Rounds:           ev.Rounds,
		ToolCalls:        ev.ToolCallsCount,
	})
	if err != nil {
		fmt.Printf("run accounting failed: %v\n", err)
	}
}

// stdinApprover prompts for tool approval on the terminal. Publish
// never blocks: each prompt runs on its own goroutine, and a mutex
// serializes prompts so concurrent boss and worker requests never
// interleave reads on the shared reader.
type stdinApprover struct {
	pending     *engine.PendingApprovals
	store       *store.Store
	mu          sync.Mutex
	reader      *bufio.Reader
	autoApprove bool
}

func newStdinApprover(pending *engine.PendingApprovals, st *store.Store, in io.Reader, autoApprove bool) *stdinApprover {
	return &stdinApprover{
		pending:     pending,
		store:       st,
		reader:      bufio.NewReader(in),
		autoApprove: autoApprove,
	}
}

func (a *stdinApprover) Publish(ev engine.Event) {
	if ev.Type != engine.EventToolRequest {
		return
	}
	if a.autoApprove {
		a.resolve(ev.ToolCallID, true)
		return
	}
	go a.prompt(ev)
}

func (a *stdinApprover) prompt(ev engine.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Printf("\n%s %s %s\n", color.YellowString("Tool approval:"), ev.ToolName, ev.Arguments)
	fmt.Print("Approve? [y/N] ")
	line, err := a.reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	a.resolve(ev.ToolCallID, err == nil && (answer == "y" || answer == "yes"))
}

func (a *stdinApprover) resolve(id string, approved bool) {
	if !a.pending.Resolve(id, approved) {
		// Another channel answered first; its verdict stands.
		return
	}
	if a.store != nil {
		status := store.ApprovalApproved
		if !approved {
			status = store.ApprovalDenied
		}
		if err := a.store.ResolveApproval(id, status); err != nil {
			fmt.Printf("approval audit failed: %v\n", err)
		}
	}
}
