package engine

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/pawzhub/pawd/internal/provider"
)

// AssembledResponse is one fully drained model round: accumulated text,
// reasoning, and complete tool calls sorted by stream index.
type AssembledResponse struct {
	Text         string
	Thinking     string
	ToolCalls    []provider.ToolCall
	FinishReason string
	Model        string
	Usage        provider.Usage
}

// Assemble merges an ordered chunk sequence into a complete response.
// Tool-call fragments for the same index arrive as separate pieces of
// id/name/argument-string; arguments concatenate in stream order.
// Prompt tokens overwrite per chunk (the last value is the actual
// context size); completion tokens sum across chunks.
func Assemble(chunks []provider.StreamChunk) AssembledResponse {
	var resp AssembledResponse
	var text, thinking strings.Builder

	type partial struct {
		id      string
		name    string
		args    strings.Builder
		thought strings.Builder
	}
	calls := map[int]*partial{}
	lowestIndex := -1

	for _, chunk := range chunks {
		text.WriteString(chunk.DeltaText)
		thinking.WriteString(chunk.ThinkingText)
		if chunk.FinishReason != "" {
			resp.FinishReason = chunk.FinishReason
		}
		if chunk.Model != "" {
			resp.Model = chunk.Model
		}
		if chunk.Usage != nil {
			if chunk.Usage.PromptTokens > 0 {
				resp.Usage.PromptTokens = chunk.Usage.PromptTokens
			}
			resp.Usage.CompletionTokens += chunk.Usage.CompletionTokens
		}

		for _, delta := range chunk.ToolCallDeltas {
			p := calls[delta.Index]
			if p == nil {
				p = &partial{}
				calls[delta.Index] = p
			}
			if delta.ID != "" && p.id == "" {
				p.id = delta.ID
			}
			if delta.Name != "" && p.name == "" {
				p.name = delta.Name
			}
			p.args.WriteString(delta.Arguments)
			if lowestIndex == -1 || delta.Index < lowestIndex {
				lowestIndex = delta.Index
			}
		}

		// Thought parts with no co-occurring tool-call fragment attach
		// to the lowest index seen so far, or index 0 if none yet. This
		// mirrors how providers interleave reasoning with parallel
		// calls; keep the heuristic as-is.
		if len(chunk.ThoughtParts) > 0 {
			target := 0
			if len(chunk.ToolCallDeltas) > 0 {
				target = chunk.ToolCallDeltas[0].Index
			} else if lowestIndex != -1 {
				target = lowestIndex
			}
			p := calls[target]
			if p == nil {
				p = &partial{}
				calls[target] = p
			}
			for _, part := range chunk.ThoughtParts {
				p.thought.WriteString(part)
			}
		}
	}

	resp.Text = text.String()
	resp.Thinking = thinking.String()
	resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens

	indices := make([]int, 0, len(calls))
	for idx := range calls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		p := calls[idx]
		id := p.id
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		resp.ToolCalls = append(resp.ToolCalls, provider.ToolCall{
			ID:        id,
			Index:     idx,
			Name:      p.name,
			Arguments: p.args.String(),
			Thought:   p.thought.String(),
		})
	}
	return resp
}
