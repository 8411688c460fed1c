// Package bus provides the async message bus between chat channels and
// the agent runtime.
package bus

import (
	"context"
	"strings"
	"sync"
	"time"
)

// InboundMessage is a message from a channel to the agent.
type InboundMessage struct {
	Channel   string    `json:"channel"`
	SenderID  string    `json:"sender_id"`
	ChatID    string    `json:"chat_id"`
	RunID     string    `json:"run_id,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboundMessage is a message from the agent to a channel.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	RunID   string `json:"run_id,omitempty"`
	Content string `json:"content"`
}

// MessageBus decouples channels from the agent core.
type MessageBus struct {
	inbound  chan *InboundMessage
	outbound chan *OutboundMessage
	subs     map[string][]func(*OutboundMessage)
	mu       sync.RWMutex
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan *InboundMessage, 100),
		outbound: make(chan *OutboundMessage, 100),
		subs:     make(map[string][]func(*OutboundMessage)),
	}
}

// PublishInbound sends a message from a channel to the agent.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.inbound <- msg
}

// ConsumeInbound blocks until a message is available or context is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishOutbound sends a message from the agent to channels.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	b.outbound <- msg
}

// Subscribe registers a callback for outbound messages to a channel.
func (b *MessageBus) Subscribe(channel string, callback func(*OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[channel] = append(b.subs[channel], callback)
}

// DispatchOutbound runs the outbound dispatcher. Run as a goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.outbound:
			b.mu.RLock()
			callbacks := b.subs[msg.Channel]
			b.mu.RUnlock()

			for _, cb := range callbacks {
				cb(msg)
			}
		}
	}
}

// InboundSize returns the number of pending inbound messages.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}

// OutboundSize returns the number of pending outbound messages.
func (b *MessageBus) OutboundSize() int {
	return len(b.outbound)
}

// ApprovalReply is a parsed approve/deny reply from a channel.
type ApprovalReply struct {
	CallID   string
	Approved bool
}

// ParseApprovalReply recognizes "approve:<call_id>" and "deny:<call_id>"
// replies. Whitespace and case in the verb are forgiven; the call id is
// taken verbatim.
func ParseApprovalReply(content string) (ApprovalReply, bool) {
	verb, id, found := strings.Cut(strings.TrimSpace(content), ":")
	if !found {
		return ApprovalReply{}, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ApprovalReply{}, false
	}
	switch strings.ToLower(strings.TrimSpace(verb)) {
	case "approve":
		return ApprovalReply{CallID: id, Approved: true}, true
	case "deny":
		return ApprovalReply{CallID: id, Approved: false}, true
	}
	return ApprovalReply{}, false
}
