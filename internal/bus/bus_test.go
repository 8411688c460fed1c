package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishAndConsumeInbound(t *testing.T) {
	b := NewMessageBus()
	b.PublishInbound(&InboundMessage{Channel: "slack", Content: "hello"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if msg.Content != "hello" {
		t.Errorf("content = %q", msg.Content)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp should be filled in")
	}
}

func TestConsumeInbound_ContextCancel(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.ConsumeInbound(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestDispatchOutbound_RoutesByChannel(t *testing.T) {
	b := NewMessageBus()
	got := make(chan string, 1)
	b.Subscribe("slack", func(m *OutboundMessage) { got <- m.Content })
	b.Subscribe("cli", func(m *OutboundMessage) { t.Error("wrong channel invoked") })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(&OutboundMessage{Channel: "slack", Content: "reply"})
	select {
	case content := <-got:
		if content != "reply" {
			t.Errorf("content = %q", content)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound message was not dispatched")
	}
}

func TestParseApprovalReply(t *testing.T) {
	cases := []struct {
		in       string
		wantID   string
		approved bool
		ok       bool
	}{
		{"approve:call_123", "call_123", true, true},
		{"deny:call_123", "call_123", false, true},
		{"  Approve: call_9 ", "call_9", true, true},
		{"approve:", "", false, false},
		{"maybe:call_123", "", false, false},
		{"just a chat message", "", false, false},
	}
	for _, tc := range cases {
		reply, ok := ParseApprovalReply(tc.in)
		if ok != tc.ok {
			t.Errorf("%q: ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if !ok {
			continue
		}
		if reply.CallID != tc.wantID || reply.Approved != tc.approved {
			t.Errorf("%q: got %+v", tc.in, reply)
		}
	}
}
