package engine

import (
	"log/slog"

	"github.com/pawzhub/pawd/internal/provider"
)

// LostResultMessage is the synthetic Tool result injected for a tool
// call whose real result was truncated away or never recorded.
const LostResultMessage = "[Tool execution was interrupted or result was lost.]"

// estimateTokens approximates a message's token cost with the chars/4
// heuristic plus a flat per-message overhead. Image references count
// as roughly 1000 chars.
func estimateTokens(m provider.Message) int {
	n := len(m.Content)
	n += len(m.Images) * 1000
	for _, tc := range m.ToolCalls {
		n += len(tc.Arguments) + len(tc.Name) + 20
	}
	return n/4 + 4
}

// EstimateConversationTokens sums the estimates for a whole list.
func EstimateConversationTokens(messages []provider.Message) int {
	total := 0
	for _, m := range messages {
		total += estimateTokens(m)
	}
	return total
}

// Truncate drops the oldest messages when the estimated token count
// exceeds the window. The leading System message is kept verbatim and
// nothing at or past the last User message is ever dropped. The cut
// point advances past contiguous Tool messages (never orphan a result)
// and past any non-User message that would become the first turn.
// SanitizeToolPairs always runs afterward.
func Truncate(messages []provider.Message, windowTokens int) []provider.Message {
	total := EstimateConversationTokens(messages)
	if total <= windowTokens || len(messages) <= 3 {
		return messages
	}

	var sys *provider.Message
	rest := messages
	if len(messages) > 0 && messages[0].Role == provider.RoleSystem {
		sys = &messages[0]
		rest = messages[1:]
	}

	tokens := make([]int, len(rest))
	running := total
	for i, m := range rest {
		tokens[i] = estimateTokens(m)
	}

	lastUser := len(rest) - 1
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i].Role == provider.RoleUser {
			lastUser = i
			break
		}
	}

	keepFrom := 0
	for i, t := range tokens {
		if running <= windowTokens || i >= lastUser {
			break
		}
		running -= t
		keepFrom = i + 1
	}

	// Don't split a tool-call/result pair.
	for keepFrom < len(rest) && rest[keepFrom].Role == provider.RoleTool {
		running -= tokens[keepFrom]
		keepFrom++
	}

	// The first non-System turn must be a User message.
	for keepFrom < len(rest) && keepFrom < lastUser && rest[keepFrom].Role != provider.RoleUser {
		running -= tokens[keepFrom]
		keepFrom++
	}

	if keepFrom == 0 {
		return messages
	}

	kept := make([]provider.Message, 0, len(rest)-keepFrom+1)
	if sys != nil {
		kept = append(kept, *sys)
	}
	kept = append(kept, rest[keepFrom:]...)
	slog.Info("mid-loop truncation", "before_tokens", total, "after_tokens", running, "messages_kept", len(kept))

	return SanitizeToolPairs(kept)
}

// SanitizeToolPairs repairs tool-call/result pairing after truncation
// or a crashed turn. Three passes: strip leading orphan Tool messages;
// inject synthetic results for call ids with no matching result
// (System messages injected between the pair don't break the scan);
// drop Tool messages whose id matches no preceding tool call.
// Idempotent.
func SanitizeToolPairs(messages []provider.Message) []provider.Message {
	// Pass 1: strip leading orphan tool results.
	firstNonSystem := 0
	for firstNonSystem < len(messages) && messages[firstNonSystem].Role == provider.RoleSystem {
		firstNonSystem++
	}
	stripEnd := firstNonSystem
	for stripEnd < len(messages) && messages[stripEnd].Role == provider.RoleTool {
		stripEnd++
	}
	if stripEnd > firstNonSystem {
		slog.Warn("removing orphaned leading tool results", "count", stripEnd-firstNonSystem)
		messages = append(messages[:firstNonSystem:firstNonSystem], messages[stripEnd:]...)
	}

	// Pass 2: every assistant tool_calls entry gets a matching result.
	for i := 0; i < len(messages); i++ {
		if messages[i].Role != provider.RoleAssistant || len(messages[i].ToolCalls) == 0 {
			continue
		}

		found := map[string]bool{}
		j := i + 1
		for j < len(messages) {
			switch messages[j].Role {
			case provider.RoleTool:
				found[messages[j].ToolCallID] = true
				j++
			case provider.RoleSystem:
				j++
			default:
				j = len(messages)
			}
		}

		injected := 0
		for _, tc := range messages[i].ToolCalls {
			if found[tc.ID] {
				continue
			}
			synthetic := provider.Message{
				Role:       provider.RoleTool,
				Content:    LostResultMessage,
				ToolCallID: tc.ID,
			}
			at := i + 1 + injected
			messages = append(messages[:at:at], append([]provider.Message{synthetic}, messages[at:]...)...)
			injected++
		}
		if injected > 0 {
			slog.Warn("injected synthetic tool results", "count", injected)
		}

		// Advance past this pair block.
		for i+1 < len(messages) && (messages[i+1].Role == provider.RoleTool || messages[i+1].Role == provider.RoleSystem) {
			i++
		}
	}

	// Pass 3: drop tool results with no matching preceding tool call.
	known := map[string]bool{}
	out := messages[:0]
	removed := 0
	for _, m := range messages {
		if m.Role == provider.RoleAssistant {
			for _, tc := range m.ToolCalls {
				known[tc.ID] = true
			}
		}
		if m.Role == provider.RoleTool && !known[m.ToolCallID] {
			removed++
			continue
		}
		out = append(out, m)
	}
	if removed > 0 {
		slog.Warn("removed orphaned tool results", "count", removed)
	}
	return out
}
