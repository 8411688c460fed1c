package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIProvider_DefaultModel(t *testing.T) {
	p := NewOpenAIProvider("test-key", "", "")
	if p.DefaultModel() != "gpt-4o" {
		t.Errorf("expected default model gpt-4o, got %s", p.DefaultModel())
	}

	p = NewOpenAIProvider("test-key", "", "openai/gpt-4")
	if p.DefaultModel() != "openai/gpt-4" {
		t.Errorf("expected model openai/gpt-4, got %s", p.DefaultModel())
	}
}

func sseBody(events ...string) string {
	var b strings.Builder
	for _, e := range events {
		b.WriteString("data: " + e + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func TestOpenAIProvider_StreamTextAndUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"model":"test-model-v2","choices":[{"delta":{"content":"Hello, "}}]}`,
			`{"choices":[{"delta":{"content":"world!"},"finish_reason":"stop"}]}`,
			`{"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`,
		))
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, "test-model")
	chunks, err := p.ChatStream(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("ChatStream() error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].DeltaText != "Hello, " || chunks[0].Model != "test-model-v2" {
		t.Errorf("unexpected first chunk: %+v", chunks[0])
	}
	if chunks[1].FinishReason != "stop" {
		t.Errorf("expected finish_reason stop, got %q", chunks[1].FinishReason)
	}
	if chunks[2].Usage == nil || chunks[2].Usage.TotalTokens != 15 {
		t.Errorf("expected usage chunk with 15 total tokens, got %+v", chunks[2].Usage)
	}
}

func TestOpenAIProvider_StreamToolCallFragments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"read_file"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"/tmp/a\"}"}}]},"finish_reason":"tool_calls"}]}`,
		))
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, "test-model")
	chunks, err := p.ChatStream(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "read"}},
	})
	if err != nil {
		t.Fatalf("ChatStream() error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].ToolCallDeltas[0].ID != "call_1" || chunks[0].ToolCallDeltas[0].Name != "read_file" {
		t.Errorf("unexpected first fragment: %+v", chunks[0].ToolCallDeltas[0])
	}
	got := chunks[1].ToolCallDeltas[0].Arguments + chunks[2].ToolCallDeltas[0].Arguments
	if got != `{"path":"/tmp/a"}` {
		t.Errorf("argument fragments did not concatenate to valid JSON: %q", got)
	}
}

func TestOpenAIProvider_UndecodableEventBecomesMarker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {not json\n\ndata: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, "test-model")
	chunks, err := p.ChatStream(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("ChatStream() error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].DeltaText != MalformedToolCallMarker {
		t.Errorf("expected malformed marker chunk, got %+v", chunks)
	}
}

func TestOpenAIProvider_RetryOn500(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(`{"choices":[{"delta":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, "test-model")
	chunks, err := p.ChatStream(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("ChatStream() error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls (one retry), got %d", calls)
	}
	if len(chunks) != 1 || chunks[0].DeltaText != "ok" {
		t.Errorf("unexpected chunks after retry: %+v", chunks)
	}
}

func TestOpenAIProvider_NoRetryOn401(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, "test-model")
	_, err := p.ChatStream(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if calls != 1 {
		t.Errorf("expected no retry on 401, got %d calls", calls)
	}
}

func TestParseModelString(t *testing.T) {
	prov, model := ParseModelString("openrouter/anthropic/claude-3.5")
	if prov != "openrouter" || model != "anthropic/claude-3.5" {
		t.Errorf("got %q / %q", prov, model)
	}

	prov, model = ParseModelString("gpt-4o")
	if prov != "" || model != "gpt-4o" {
		t.Errorf("bare model: got %q / %q", prov, model)
	}
}

func TestToolCall_DecodeArguments(t *testing.T) {
	tc := ToolCall{Arguments: `{"path":"/tmp/x","depth":2}`}
	args, err := tc.DecodeArguments()
	if err != nil {
		t.Fatalf("DecodeArguments() error: %v", err)
	}
	if args["path"] != "/tmp/x" {
		t.Errorf("expected path /tmp/x, got %v", args["path"])
	}

	if _, err := (ToolCall{Arguments: "{broken"}).DecodeArguments(); err == nil {
		t.Error("expected error on broken JSON")
	}

	args, err = (ToolCall{}).DecodeArguments()
	if err != nil || len(args) != 0 {
		t.Errorf("empty arguments should decode to empty map, got %v / %v", args, err)
	}
}
