package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/pawzhub/pawd/internal/bus"
	"github.com/pawzhub/pawd/internal/config"
	"github.com/pawzhub/pawd/internal/engine"
)

// slackAPI is the subset of the Slack client the channel uses.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackChannel posts agent output and approval prompts to Slack.
type SlackChannel struct {
	BaseChannel
	config config.SlackConfig
	api    slackAPI
}

// NewSlackChannel creates a Slack channel from config.
func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus) *SlackChannel {
	var api slackAPI
	if cfg.Enabled && cfg.BotToken != "" {
		api = slack.New(cfg.BotToken)
	}
	return &SlackChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		api:         api,
	}
}

func (c *SlackChannel) Name() string { return "slack" }

// Start subscribes the channel to outbound bus messages.
func (c *SlackChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		if err := c.Send(ctx, msg); err != nil {
			slog.Warn("slack send failed", "chat", msg.ChatID, "error", err)
		}
	})
	return nil
}

func (c *SlackChannel) Stop() error { return nil }

// Send posts a message. An empty ChatID falls back to the configured
// default channel.
func (c *SlackChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	if c.api == nil {
		return fmt.Errorf("slack channel is not configured")
	}
	channelID := strings.TrimSpace(msg.ChatID)
	if channelID == "" {
		channelID = c.config.Channel
	}
	if channelID == "" {
		return fmt.Errorf("no slack channel to post to")
	}
	_, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(msg.Content, false))
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	return nil
}

// HandleInbound forwards a user reply from Slack onto the bus.
func (c *SlackChannel) HandleInbound(senderID, chatID, text string) {
	c.Bus.PublishInbound(&bus.InboundMessage{
		Channel:  c.Name(),
		SenderID: strings.TrimSpace(senderID),
		ChatID:   strings.TrimSpace(chatID),
		Content:  text,
	})
}

// ApprovalSink turns ToolRequest events into Slack approval prompts.
// Other event types are ignored.
type ApprovalSink struct {
	channel *SlackChannel
}

// NewApprovalSink creates a sink posting approval prompts through ch.
func NewApprovalSink(ch *SlackChannel) *ApprovalSink {
	return &ApprovalSink{channel: ch}
}

// Publish posts the approval prompt for tool requests.
func (s *ApprovalSink) Publish(ev engine.Event) {
	if ev.Type != engine.EventToolRequest {
		return
	}
	s.channel.Bus.PublishOutbound(&bus.OutboundMessage{
		Channel: s.channel.Name(),
		RunID:   ev.RunID,
		Content: FormatApprovalPrompt(ev.ToolCallID, ev.ToolName, ev.Arguments),
	})
}

// FormatApprovalPrompt renders the approve/deny instructions for a
// pending tool call.
func FormatApprovalPrompt(callID, tool, arguments string) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":lock: Tool approval required: *%s*\n", tool)
	if arguments != "" {
		fmt.Fprintf(&b, "```%s```\n", arguments)
	}
	fmt.Fprintf(&b, "Reply `approve:%s` or `deny:%s`.", callID, callID)
	return b.String()
}
