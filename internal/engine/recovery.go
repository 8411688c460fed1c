package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pawzhub/pawd/internal/provider"
)

// EmptyResponseFallback is returned as final text when the model keeps
// producing empty responses after the nudge retries are exhausted.
const EmptyResponseFallback = "I wasn't able to generate a response. This can happen when:\n" +
	"- The conversation context is very large (try compacting the session)\n" +
	"- A content filter was triggered (try rephrasing)\n" +
	"- The model is overwhelmed — try starting a new session\n\n" +
	"Please try again or start a new session."

const malformedCorrective = "Your tool call was malformed. Emit a single valid JSON object for the " +
	"arguments, with every field as proper JSON (objects as objects, NOT stringified). " +
	`Example: {"url":"...","method":"POST","body":{"name":"test","type":0}} ` +
	"Try again now — one tool call at a time."

// MalformedRetry checks the assistant text for the malformed-call
// marker. Within the first two rounds it returns the offending text
// plus a corrective User message to append before restarting the round.
func MalformedRetry(text string, round, maxRounds int) ([]provider.Message, bool) {
	if !strings.Contains(text, provider.MalformedToolCallMarker) || round > 2 || round >= maxRounds {
		return nil, false
	}
	slog.Warn("malformed tool call detected, retrying with corrective instructions", "round", round)
	return []provider.Message{
		{Role: provider.RoleAssistant, Content: text},
		{Role: provider.RoleUser, Content: malformedCorrective},
	}, true
}

// EmptyNudge builds a System message recapping the latest User message
// so the model retries it directly. The recap is cut at a UTF-8-safe
// 300-byte boundary.
func EmptyNudge(messages []provider.Message) provider.Message {
	var recap string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == provider.RoleUser {
			recap = truncateSafe(messages[i].Content, 300)
			break
		}
	}

	var nudge string
	if recap == "" {
		nudge = "[SYSTEM] The model returned an empty response. Retry the user's request. Use tools if needed."
	} else {
		nudge = fmt.Sprintf("[SYSTEM] The model returned an empty response. The user's request is: %q\n"+
			"Respond to this request directly. Ignore previous conversation topics. Use tools if needed.", recap)
	}
	return provider.Message{Role: provider.RoleSystem, Content: nudge}
}

// DetectRepetition compares the two most recent Assistant messages
// among the last three via Jaccard similarity over lower-cased
// whitespace tokens. Above 0.8 the model is treated as stuck.
func DetectRepetition(messages []provider.Message) bool {
	var recent []string
	for i := len(messages) - 1; i >= 0 && len(recent) < 3; i-- {
		if messages[i].Role == provider.RoleAssistant {
			recent = append(recent, messages[i].Content)
		}
	}
	if len(recent) < 2 {
		return false
	}
	sim := jaccard(recent[0], recent[1])
	if sim > 0.8 {
		slog.Warn("response loop detected", "similarity", sim)
		return true
	}
	return false
}

// RepetitionRedirect builds the System message that breaks a response
// loop, echoing the last User request when one exists.
func RepetitionRedirect(messages []provider.Message) provider.Message {
	var lastUser string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == provider.RoleUser {
			lastUser = messages[i].Content
			break
		}
	}

	var redirect string
	if lastUser == "" {
		redirect = "IMPORTANT: You are stuck in a response loop — repeating yourself despite the " +
			"user's request. Read the user's MOST RECENT message carefully and respond ONLY to " +
			"what they actually asked. Do NOT repeat your previous answer. Take action with your tools NOW."
	} else {
		redirect = fmt.Sprintf("CRITICAL: You are stuck repeating yourself instead of acting. STOP repeating. "+
			"The user's actual request is: %q\n\n"+
			"Take action NOW. Use your tools to do what the user asked. Do NOT restate your previous response.",
			truncateSafe(lastUser, 300))
	}
	return provider.Message{Role: provider.RoleSystem, Content: redirect}
}

// jaccard computes token-set similarity between two texts after
// lower-casing and whitespace splitting.
func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = true
	}
	return set
}

// truncateSafe cuts s to at most n bytes without splitting a rune.
func truncateSafe(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
