// Package kafka publishes lifecycle transitions to a Kafka topic as an
// audit/event stream for downstream collaborators (dashboards, archival).
// The stream is optional and strictly fire-and-forget: a publish failure is
// logged and never blocks or fails the cycle that produced the transitions.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces transition events to a Kafka topic.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the transitions topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishTransitions serializes and publishes one cycle's transitions in a
// single WriteMessages call. Keyed by identity so one warning's history
// lands in one partition, in order.
func (p *Publisher) PublishTransitions(ctx context.Context, transitions []domain.Transition) {
	if len(transitions) == 0 {
		return
	}

	msgs := make([]kafkago.Message, 0, len(transitions))
	for _, t := range transitions {
		msg, err := serializeToMessage(t)
		if err != nil {
			p.logger.Warn("skipping unserializable transition", "identity", t.Alert.Identity, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("publishing transitions failed", "count", len(msgs), "error", err)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a transition into a Kafka message.
func serializeToMessage(t domain.Transition) (kafkago.Message, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize transition: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(t.Alert.Identity),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(t.Kind.String())},
			{Key: "event", Value: []byte(t.Alert.Event)},
			{Key: "occurred_at", Value: []byte(t.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
