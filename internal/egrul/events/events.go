// Package events publishes one record per handled EGRUL request.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mark-rom/egrul-bot/internal/platform/kafka/producer"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "egrul.requests"

// OutcomeOK is the outcome of a successful request; failures carry their category.
const OutcomeOK = "ok"

// RequestEvent describes a handled request. The identifier is hashed.
type RequestEvent struct {
	Operation      string    `json:"kind"`
	IdentifierHash string    `json:"identifier_hash"`
	IdentifierKind string    `json:"identifier_kind,omitempty"`
	Outcome        string    `json:"outcome"`
	RequestID      string    `json:"request_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher accepts request events. Publishing never blocks the request on delivery.
type Publisher interface {
	Publish(ctx context.Context, event RequestEvent) error
}

// Producer is the subset of the Kafka producer used here.
type Producer interface {
	ProduceAsync(msg *producer.Message) error
}

// KafkaPublisher writes events as JSON records keyed by the identifier hash.
type KafkaPublisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher creates a publisher for topic; an empty topic means DefaultTopic.
func NewKafkaPublisher(p Producer, topic string, logger *slog.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{producer: p, topic: topic, logger: logger}
}

// Publish encodes event and hands it to the producer.
func (k *KafkaPublisher) Publish(ctx context.Context, event RequestEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode request event: %w", err)
	}

	err = k.producer.ProduceAsync(&producer.Message{
		Topic: k.topic,
		Key:   []byte(event.IdentifierHash),
		Value: payload,
		Headers: map[string]string{
			"event_type": "egrul.request." + event.Operation,
		},
	})
	if err != nil {
		k.logger.WarnContext(ctx, "request event dropped", "operation", event.Operation, "error", err)
		return fmt.Errorf("publish request event: %w", err)
	}
	return nil
}

// Noop discards events. It is used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, RequestEvent) error { return nil }

// Memory keeps events in process. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []RequestEvent
}

// NewMemory creates an empty in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, event RequestEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []RequestEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RequestEvent, len(m.events))
	copy(out, m.events)
	return out
}
