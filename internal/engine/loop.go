package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pawzhub/pawd/internal/provider"
)

// ToolResult is the outcome of one tool execution. Failures are
// encoded in the result, never raised.
type ToolResult struct {
	Output  string
	Success bool
}

// ToolExecutor runs assembled tool calls.
type ToolExecutor interface {
	Execute(ctx context.Context, call provider.ToolCall) ToolResult
	Definitions() []provider.ToolDefinition
}

// Options configures an Engine.
type Options struct {
	Provider    provider.ChatProvider
	Executor    ToolExecutor
	Sink        EventSink
	Pending     *PendingApprovals
	Interceptor ToolInterceptor
	Role        Role
	RunID       string

	Model       string
	MaxTokens   int
	Temperature float64

	MaxRounds           int
	ContextWindowTokens int
	SafeTools           []string
	ApprovalTimeout     time.Duration
	ToolTimeout         time.Duration
}

// Engine drives turns through the round loop. One Engine may host many
// sequential turns; concurrent turns each get their own Engine sharing
// a PendingApprovals map.
type Engine struct {
	opts Options
	gate *ApprovalGate
}

// New creates an Engine, applying defaults for unset options.
func New(opts Options) *Engine {
	if opts.Sink == nil {
		opts.Sink = NoopSink{}
	}
	if opts.Pending == nil {
		opts.Pending = NewPendingApprovals()
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 30
	}
	if opts.ContextWindowTokens <= 0 {
		opts.ContextWindowTokens = 100000
	}
	if opts.ApprovalTimeout <= 0 {
		opts.ApprovalTimeout = 5 * time.Minute
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = 2 * time.Minute
	}
	e := &Engine{opts: opts}
	// The gate publishes through e.publish so ToolRequest events carry
	// the run id and ride the same panic guard as every other event.
	e.gate = NewApprovalGate(opts.Pending, opts.SafeTools, opts.ApprovalTimeout, SinkFunc(e.publish))
	return e
}

// Pending exposes the shared approval map so external channels can
// resolve verdicts.
func (e *Engine) Pending() *PendingApprovals {
	return e.opts.Pending
}

// RunTurn drives the round loop until the model produces final text,
// a role verb stops the turn, or the round budget runs out. The
// returned message list is the full mutated conversation for
// persistence. Only provider failures return an error.
func (e *Engine) RunTurn(ctx context.Context, messages []provider.Message) (string, []provider.Message, error) {
	var defs []provider.ToolDefinition
	if e.opts.Executor != nil {
		defs = e.opts.Executor.Definitions()
	}

	round := 0
	toolCallsCount := 0
	var lastText, confirmedModel string
	var lastInputTokens, totalOutputTokens int
	breaker := newToolBreaker()
	redirected := false

	for {
		round++
		if round > e.opts.MaxRounds {
			slog.Warn("round budget exhausted", "role", e.opts.Role.String(), "rounds", e.opts.MaxRounds)
			if lastText == "" {
				lastText = "Reached the maximum number of rounds before producing a final answer."
			}
			return e.finish(lastText, confirmedModel, lastInputTokens, totalOutputTokens, toolCallsCount, e.opts.MaxRounds), messages, nil
		}

		chunks, err := e.opts.Provider.ChatStream(ctx, &provider.ChatRequest{
			Messages:    messages,
			Tools:       defs,
			Model:       e.opts.Model,
			MaxTokens:   e.opts.MaxTokens,
			Temperature: e.opts.Temperature,
		})
		if err != nil {
			e.publish(Event{Type: EventError, Text: err.Error()})
			return "", messages, fmt.Errorf("provider: %w", err)
		}

		for _, c := range chunks {
			if c.DeltaText != "" {
				e.publish(Event{Type: EventDelta, Text: c.DeltaText})
			}
			if c.ThinkingText != "" {
				e.publish(Event{Type: EventThinkingDelta, Text: c.ThinkingText})
			}
		}

		resp := Assemble(chunks)
		if resp.Usage.PromptTokens > 0 {
			// Input tokens overwrite: the last round's prompt is the
			// actual context size. Output tokens sum across rounds.
			lastInputTokens = resp.Usage.PromptTokens
		}
		totalOutputTokens += resp.Usage.CompletionTokens
		if resp.Model != "" {
			confirmedModel = resp.Model
		}
		if resp.Text != "" {
			lastText = resp.Text
		}

		if retry, ok := MalformedRetry(resp.Text, round, e.opts.MaxRounds); ok {
			messages = append(messages, retry...)
			continue
		}

		if resp.Text == "" && len(resp.ToolCalls) == 0 {
			if round <= 2 && round < e.opts.MaxRounds {
				slog.Warn("empty model response, injecting nudge", "round", round)
				messages = append(messages, EmptyNudge(messages))
				continue
			}
			return e.finish(EmptyResponseFallback, confirmedModel, lastInputTokens, totalOutputTokens, toolCallsCount, round), messages, nil
		}

		messages = append(messages, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			if !redirected && DetectRepetition(messages) {
				redirected = true
				messages = append(messages, RepetitionRedirect(messages))
				continue
			}
			return e.finish(resp.Text, confirmedModel, lastInputTokens, totalOutputTokens, toolCallsCount, round), messages, nil
		}

		toolCallsCount += len(resp.ToolCalls)
		stop := false
		stopText := ""
		for _, tc := range resp.ToolCalls {
			if breaker.blocked(tc.Name) {
				messages = append(messages, toolMessage(tc, breaker.blockedMessage(tc.Name)))
				continue
			}

			if e.opts.Interceptor != nil {
				if res, handled := e.opts.Interceptor.Intercept(ctx, e.opts.Role, tc); handled {
					e.publish(Event{Type: EventToolResult, ToolCallID: tc.ID, ToolName: tc.Name, Output: res.Output, Success: res.Success})
					messages = append(messages, toolMessage(tc, res.Output))
					if res.Stop {
						stop = true
						stopText = res.Output
						break
					}
					continue
				}
			}

			if !e.gate.Authorize(ctx, tc) {
				e.publish(Event{Type: EventToolResult, ToolCallID: tc.ID, ToolName: tc.Name, Output: DeniedMessage, Success: false})
				messages = append(messages, toolMessage(tc, DeniedMessage))
				continue
			}

			res := e.executeTool(ctx, tc)
			e.publish(Event{Type: EventToolResult, ToolCallID: tc.ID, ToolName: tc.Name, Output: res.Output, Success: res.Success})
			messages = append(messages, toolMessage(tc, res.Output))
			if nudge := breaker.record(tc.Name, res.Success); nudge != "" {
				messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: nudge})
			}
		}

		if stop {
			// Calls after the stopping verb never ran; give them
			// synthetic results so the conversation stays well paired.
			messages = SanitizeToolPairs(messages)
			text := resp.Text
			if text == "" {
				text = stopText
			}
			return e.finish(text, confirmedModel, lastInputTokens, totalOutputTokens, toolCallsCount, round), messages, nil
		}

		messages = Truncate(messages, e.opts.ContextWindowTokens)
	}
}

func (e *Engine) executeTool(ctx context.Context, tc provider.ToolCall) ToolResult {
	if e.opts.Executor == nil {
		return ToolResult{Output: fmt.Sprintf("Error: unknown tool '%s'", tc.Name), Success: false}
	}
	tctx, cancel := context.WithTimeout(ctx, e.opts.ToolTimeout)
	defer cancel()
	return e.opts.Executor.Execute(tctx, tc)
}

// finish publishes Complete for boss turns and returns the final text.
func (e *Engine) finish(text, model string, inputTokens, outputTokens, toolCallsCount, rounds int) string {
	if e.opts.Role.Kind == RoleBoss {
		e.publish(Event{
			Type:           EventComplete,
			Text:           text,
			Model:          model,
			ToolCallsCount: toolCallsCount,
			Rounds:         rounds,
			Usage: &provider.Usage{
				PromptTokens:     inputTokens,
				CompletionTokens: outputTokens,
				TotalTokens:      inputTokens + outputTokens,
			},
		})
	}
	return text
}

// publish delivers an event without letting a misbehaving sink take
// down the loop.
func (e *Engine) publish(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("event sink panicked", "event", ev.Type, "panic", r)
		}
	}()
	ev.RunID = e.opts.RunID
	e.opts.Sink.Publish(ev)
}

func toolMessage(tc provider.ToolCall, output string) provider.Message {
	return provider.Message{
		Role:       provider.RoleTool,
		Content:    output,
		ToolCallID: tc.ID,
	}
}
