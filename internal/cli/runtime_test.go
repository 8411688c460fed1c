package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pawzhub/pawd/internal/engine"
	"github.com/pawzhub/pawd/internal/provider"
	"github.com/pawzhub/pawd/internal/store"
)

func TestConsoleSink_Rendering(t *testing.T) {
	var buf bytes.Buffer
	sink := &consoleSink{out: &buf}

	sink.Publish(engine.Event{Type: engine.EventDelta, Text: "hello "})
	sink.Publish(engine.Event{Type: engine.EventDelta, Text: "world"})
	sink.Publish(engine.Event{Type: engine.EventToolResult, ToolName: "exec", Success: true})
	sink.Publish(engine.Event{Type: engine.EventError, Text: "boom"})

	out := buf.String()
	for _, want := range []string{"hello world", "exec", "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleSink_CompleteSummary(t *testing.T) {
	var buf bytes.Buffer
	sink := &consoleSink{out: &buf}
	sink.Publish(engine.Event{
		Type:           engine.EventComplete,
		Model:          "gpt-4o",
		ToolCallsCount: 3,
		Usage:          &provider.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	})
	if !strings.Contains(buf.String(), "gpt-4o") {
		t.Errorf("summary missing model:\n%s", buf.String())
	}
}

func TestStdinApprover(t *testing.T) {
	pending := engine.NewPendingApprovals()

	cases := []struct {
		input    string
		auto     bool
		approved bool
	}{
		{"y\n", false, true},
		{"yes\n", false, true},
		{"n\n", false, false},
		{"\n", false, false},
		{"", true, true},
	}
	for _, tc := range cases {
		approver := newStdinApprover(pending, nil, strings.NewReader(tc.input), tc.auto)

		verdict := make(chan bool, 1)
		go func() {
			gate := engine.NewApprovalGate(pending, nil, time.Second, approver)
			verdict <- gate.Authorize(context.Background(), provider.ToolCall{ID: "c1", Name: "exec"})
		}()

		select {
		case got := <-verdict:
			if got != tc.approved {
				t.Errorf("input %q auto=%v: approved = %v, want %v", tc.input, tc.auto, got, tc.approved)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("input %q: approval never resolved", tc.input)
		}
	}
}

func TestStdinApprover_ConcurrentRequests(t *testing.T) {
	// Boss and worker turns share one approver; simultaneous requests
	// must both resolve without fighting over the reader.
	pending := engine.NewPendingApprovals()
	approver := newStdinApprover(pending, nil, strings.NewReader("y\ny\n"), false)

	verdicts := make(chan bool, 2)
	for _, id := range []string{"c1", "c2"} {
		go func(id string) {
			gate := engine.NewApprovalGate(pending, nil, 2*time.Second, approver)
			verdicts <- gate.Authorize(context.Background(), provider.ToolCall{ID: id, Name: "exec"})
		}(id)
	}
	for i := 0; i < 2; i++ {
		select {
		case got := <-verdicts:
			if !got {
				t.Error("concurrent request denied, want approved")
			}
		case <-time.After(3 * time.Second):
			t.Fatal("concurrent approval never resolved")
		}
	}
}

func TestStdinApprover_PublishDoesNotBlock(t *testing.T) {
	// A ToolRequest with nobody reading the terminal must not stall
	// the sink fanout; the prompt waits on its own goroutine.
	pending := engine.NewPendingApprovals()
	approver := newStdinApprover(pending, nil, blockedReader{}, false)

	done := make(chan struct{})
	go func() {
		approver.Publish(engine.Event{Type: engine.EventToolRequest, ToolCallID: "c1", ToolName: "exec"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on the terminal prompt")
	}
}

// blockedReader simulates a terminal with no input forthcoming.
type blockedReader struct{}

func (blockedReader) Read(p []byte) (int, error) {
	time.Sleep(time.Hour)
	return 0, nil
}

func TestRunRecorder(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "cli.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer s.Close()

	rec := &runRecorder{store: s}
	rec.Publish(engine.Event{Type: engine.EventDelta, Text: "ignored"})
	rec.Publish(engine.Event{
		Type:           engine.EventComplete,
		RunID:          "run_9",
		Model:          "gpt-4o",
		ToolCallsCount: 2,
		Rounds:         4,
		Usage:          &provider.Usage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60},
	})

	got, err := s.GetRun("run_9")
	if err != nil || got == nil {
		t.Fatalf("run not recorded: %+v, %v", got, err)
	}
	if got.TotalTokens != 60 || got.ToolCalls != 2 || got.Rounds != 4 {
		t.Errorf("run = %+v", got)
	}
}

func TestApprovalAudit(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "cli.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer s.Close()

	audit := &approvalAudit{store: s}
	audit.Publish(engine.Event{Type: engine.EventToolRequest, ToolCallID: "c1", RunID: "r1", ToolName: "exec", Arguments: "{}"})

	rec, err := s.GetApproval("c1")
	if err != nil || rec == nil {
		t.Fatalf("approval not recorded: %+v, %v", rec, err)
	}
	if rec.Status != store.ApprovalPending || rec.Tool != "exec" {
		t.Errorf("approval = %+v", rec)
	}
}
