package events

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestUnconfiguredProducerIsNoop(t *testing.T) {
	for _, p := range []*Producer{
		NewProducer(nil, "topic", zerolog.Nop()),
		NewProducer([]string{"localhost:9092"}, "", zerolog.Nop()),
	} {
		p.Produce(context.Background(), TestRunCreated, map[string]any{"id": 1})
		if err := p.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}
}

func TestConfiguredProducerHasWriter(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "qa-events", zerolog.Nop())
	if p.writer == nil {
		t.Fatal("expected a configured writer")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
