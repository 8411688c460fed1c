package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "pawd.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProjectLifecycle(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateProject("proj-1", "build the thing"); err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err := s.GetProject("proj-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p == nil || p.Status != ProjectActive || p.Description != "build the thing" {
		t.Fatalf("unexpected project: %+v", p)
	}

	if err := s.CompleteProject("proj-1", ProjectComplete, "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	p, _ = s.GetProject("proj-1")
	if p.Status != ProjectComplete || p.Result != "done" {
		t.Errorf("project not completed: %+v", p)
	}
	if p.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	missing, err := s.GetProject("nope")
	if err != nil || missing != nil {
		t.Errorf("missing project should be (nil, nil), got %+v, %v", missing, err)
	}
}

func TestAgentsAndMessages(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateProject("proj-1", "x"); err != nil {
		t.Fatal(err)
	}

	if err := s.AddAgent("proj-1", "worker-1", "research topic", "gpt-4o-mini"); err != nil {
		t.Fatalf("add agent: %v", err)
	}
	if err := s.AddAgent("proj-1", "worker-2", "write summary", ""); err != nil {
		t.Fatalf("add agent: %v", err)
	}

	if err := s.UpdateAgentStatus("worker-1", AgentDone, "finished research"); err != nil {
		t.Fatalf("update: %v", err)
	}
	a, err := s.GetAgent("worker-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if a.Status != AgentDone || a.LastWord != "finished research" {
		t.Errorf("unexpected agent: %+v", a)
	}

	if err := s.UpdateAgentStatus("ghost", AgentDone, ""); err == nil {
		t.Error("updating unknown agent must fail")
	}

	agents, err := s.ListAgents("proj-1")
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 2 || agents[0].AgentID != "worker-1" {
		t.Errorf("unexpected agents: %+v", agents)
	}

	for _, kind := range []string{MessageDelegation, MessageProgress, MessageResult} {
		if err := s.AddMessage("proj-1", "worker-1", kind, kind+" text"); err != nil {
			t.Fatalf("add message: %v", err)
		}
	}
	msgs, err := s.ListMessages("proj-1", 10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Kind != MessageDelegation || msgs[2].Kind != MessageResult {
		t.Errorf("unexpected messages: %+v", msgs)
	}

	msgs, _ = s.ListMessages("proj-1", 2)
	if len(msgs) != 2 || msgs[0].Kind != MessageProgress {
		t.Errorf("limit should keep newest entries, got %+v", msgs)
	}
}

func TestApprovalAudit(t *testing.T) {
	s := newTestStore(t)

	if err := s.RecordApproval("call_1", "run_1", "exec", `{"command":"ls"}`); err != nil {
		t.Fatalf("record: %v", err)
	}
	// duplicate record must not fail
	if err := s.RecordApproval("call_1", "run_1", "exec", `{"command":"ls"}`); err != nil {
		t.Fatalf("duplicate record: %v", err)
	}

	if err := s.ResolveApproval("call_1", ApprovalApproved); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	r, err := s.GetApproval("call_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Status != ApprovalApproved || r.RespondedAt == nil {
		t.Errorf("unexpected approval: %+v", r)
	}

	// resolving again must not change a terminal status
	if err := s.ResolveApproval("call_1", ApprovalDenied); err != nil {
		t.Fatalf("re-resolve: %v", err)
	}
	r, _ = s.GetApproval("call_1")
	if r.Status != ApprovalApproved {
		t.Errorf("terminal status was overwritten: %+v", r)
	}
}

func TestExpireStaleApprovals(t *testing.T) {
	s := newTestStore(t)

	if err := s.RecordApproval("old", "", "exec", ""); err != nil {
		t.Fatal(err)
	}
	// Anything pending is older than a negative cutoff in the future.
	n, err := s.ExpireStaleApprovals(-time.Hour)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired row, got %d", n)
	}
	r, _ := s.GetApproval("old")
	if r.Status != ApprovalTimeout {
		t.Errorf("status = %q", r.Status)
	}
}

func TestRecordRun(t *testing.T) {
	s := newTestStore(t)

	rec := RunRecord{RunID: "run_1", Model: "gpt-4o", PromptTokens: 120, CompletionTokens: 40, TotalTokens: 160, Rounds: 3, ToolCalls: 2}
	if err := s.RecordRun(rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	rec.TotalTokens = 200
	rec.Rounds = 4
	if err := s.RecordRun(rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetRun("run_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalTokens != 200 || got.Rounds != 4 || got.Model != "gpt-4o" {
		t.Errorf("unexpected run: %+v", got)
	}
}
