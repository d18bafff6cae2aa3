// Package events publishes pipeline events to Kafka. Publishing is
// best-effort and never blocks or fails an API request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	GenerationCompleted = "generation_completed"
	RefinementCompleted = "refinement_completed"
	TestRunCreated      = "test_run_created"
	TestRunFinished     = "test_run_finished"
)

// EventProducer is the publishing interface, mockable in tests.
type EventProducer interface {
	Produce(ctx context.Context, event string, payload map[string]any)
}

// Producer writes events to a Kafka topic. With no brokers or topic
// configured every method is a no-op.
type Producer struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

func NewProducer(brokers []string, topic string, logger zerolog.Logger) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{logger: logger}
	}
	return &Producer{
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Produce sends one event. Failures are logged and swallowed.
func (p *Producer) Produce(ctx context.Context, event string, payload map[string]any) {
	if p.writer == nil {
		return
	}
	msg := map[string]any{"event": event, "at": time.Now().UTC()}
	for k, v := range payload {
		msg[k] = v
	}
	body, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn().Err(err).Str("event", event).Msg("marshaling kafka event")
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: body}); err != nil {
		p.logger.Warn().Err(err).Str("event", event).Msg("writing kafka event")
	}
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
