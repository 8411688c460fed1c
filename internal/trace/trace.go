// Package trace publishes engine events to a Kafka topic for external
// run observation.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pawzhub/pawd/internal/engine"
)

// messageWriter abstracts the kafka writer for tests.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is an engine.EventSink that mirrors events onto Kafka.
type Publisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
}

// TopicName returns the trace topic for a run group.
func TopicName(group string) string {
	if group == "" {
		group = "pawd"
	}
	return fmt.Sprintf("pawd.%s.traces", group)
}

// NewPublisher creates a Kafka-backed publisher for the run group.
func NewPublisher(brokers []string, group string) *Publisher {
	topic := TopicName(group)
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic:   topic,
		timeout: 10 * time.Second,
	}
}

// Publish mirrors an event onto the trace topic. Delivery is
// best-effort: failures are logged, never raised.
func (p *Publisher) Publish(ev engine.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("trace event not serializable", "type", ev.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RunID),
		Value: payload,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		slog.Warn("trace publish failed", "topic", p.topic, "type", ev.Type, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Fanout publishes every event to all sinks in order.
type Fanout []engine.EventSink

// Publish delivers the event to each sink.
func (f Fanout) Publish(ev engine.Event) {
	for _, sink := range f {
		sink.Publish(ev)
	}
}
