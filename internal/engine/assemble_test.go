package engine

import (
	"strings"
	"testing"

	"github.com/pawzhub/pawd/internal/provider"
)

func TestAssemble_TextAccumulation(t *testing.T) {
	resp := Assemble([]provider.StreamChunk{
		{DeltaText: "Hel", Model: "m1"},
		{DeltaText: "lo", FinishReason: "stop"},
	})
	if resp.Text != "Hello" {
		t.Errorf("expected Hello, got %q", resp.Text)
	}
	if resp.FinishReason != "stop" || resp.Model != "m1" {
		t.Errorf("unexpected finish/model: %q / %q", resp.FinishReason, resp.Model)
	}
	if len(resp.ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(resp.ToolCalls))
	}
}

func TestAssemble_SplitInvariance(t *testing.T) {
	// The reconstructed arguments must not depend on where the
	// argument string is split across chunks.
	full := `{"path":"/tmp/file.txt","recursive":true}`
	for split := 0; split <= len(full); split++ {
		chunks := []provider.StreamChunk{
			{ToolCallDeltas: []provider.ToolCallDelta{{Index: 0, ID: "call_a", Name: "read_file"}}},
			{ToolCallDeltas: []provider.ToolCallDelta{{Index: 0, Arguments: full[:split]}}},
			{ToolCallDeltas: []provider.ToolCallDelta{{Index: 0, Arguments: full[split:]}}},
		}
		resp := Assemble(chunks)
		if len(resp.ToolCalls) != 1 {
			t.Fatalf("split %d: expected 1 call, got %d", split, len(resp.ToolCalls))
		}
		if resp.ToolCalls[0].Arguments != full {
			t.Errorf("split %d: got %q", split, resp.ToolCalls[0].Arguments)
		}
	}
}

func TestAssemble_SortedByIndex(t *testing.T) {
	resp := Assemble([]provider.StreamChunk{
		{ToolCallDeltas: []provider.ToolCallDelta{{Index: 2, ID: "c2", Name: "exec"}}},
		{ToolCallDeltas: []provider.ToolCallDelta{{Index: 0, ID: "c0", Name: "read_file"}}},
		{ToolCallDeltas: []provider.ToolCallDelta{{Index: 1, ID: "c1", Name: "list_dir"}}},
	})
	if len(resp.ToolCalls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(resp.ToolCalls))
	}
	for i, want := range []string{"c0", "c1", "c2"} {
		if resp.ToolCalls[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, resp.ToolCalls[i].ID)
		}
		if resp.ToolCalls[i].Index != i {
			t.Errorf("position %d: index %d", i, resp.ToolCalls[i].Index)
		}
	}
}

func TestAssemble_SynthesizesMissingID(t *testing.T) {
	resp := Assemble([]provider.StreamChunk{
		{ToolCallDeltas: []provider.ToolCallDelta{{Index: 0, Name: "fetch", Arguments: "{}"}}},
	})
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(resp.ToolCalls))
	}
	id := resp.ToolCalls[0].ID
	if !strings.HasPrefix(id, "call_") || len(id) <= len("call_") {
		t.Errorf("expected synthesized call_<uuid> id, got %q", id)
	}

	other := Assemble([]provider.StreamChunk{
		{ToolCallDeltas: []provider.ToolCallDelta{{Index: 0, Name: "fetch", Arguments: "{}"}}},
	})
	if other.ToolCalls[0].ID == id {
		t.Error("synthesized ids must be unique across assemblies")
	}
}

func TestAssemble_OrphanThoughtAttachesToLowestIndex(t *testing.T) {
	resp := Assemble([]provider.StreamChunk{
		{ToolCallDeltas: []provider.ToolCallDelta{{Index: 1, ID: "c1", Name: "exec"}}},
		{ThoughtParts: []string{"considering the command"}},
		{ToolCallDeltas: []provider.ToolCallDelta{{Index: 3, ID: "c3", Name: "fetch"}}},
	})
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Thought != "considering the command" {
		t.Errorf("thought should attach to lowest seen index, got %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[1].Thought != "" {
		t.Errorf("higher index should carry no thought, got %q", resp.ToolCalls[1].Thought)
	}
}

func TestAssemble_OrphanThoughtBeforeAnyCallGoesToIndexZero(t *testing.T) {
	resp := Assemble([]provider.StreamChunk{
		{ThoughtParts: []string{"early reasoning"}},
		{ToolCallDeltas: []provider.ToolCallDelta{{Index: 0, ID: "c0", Name: "read_file"}}},
	})
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Thought != "early reasoning" {
		t.Errorf("orphan thought should land on index 0, got %q", resp.ToolCalls[0].Thought)
	}
}

func TestAssemble_UsageOverwritesPromptSumsCompletion(t *testing.T) {
	resp := Assemble([]provider.StreamChunk{
		{Usage: &provider.Usage{PromptTokens: 100, CompletionTokens: 5}},
		{Usage: &provider.Usage{PromptTokens: 120, CompletionTokens: 7}},
	})
	if resp.Usage.PromptTokens != 120 {
		t.Errorf("prompt tokens should overwrite to 120, got %d", resp.Usage.PromptTokens)
	}
	if resp.Usage.CompletionTokens != 12 {
		t.Errorf("completion tokens should sum to 12, got %d", resp.Usage.CompletionTokens)
	}
	if resp.Usage.TotalTokens != 132 {
		t.Errorf("total should be 132, got %d", resp.Usage.TotalTokens)
	}
}
