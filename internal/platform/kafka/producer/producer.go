// Package producer publishes records to Kafka through franz-go.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a record to publish.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Config holds producer configuration.
type Config struct {
	Brokers         string // comma-separated seed brokers
	Acks            string // "0", "1" or "all"
	Retries         int
	DeliveryTimeout time.Duration
}

// DefaultConfig returns defaults for fire-and-forget request events.
func DefaultConfig() Config {
	return Config{
		Acks:            "1",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}
}

// ErrClosed is returned by every call made after Close.
var ErrClosed = errors.New("producer is closed")

// Producer wraps the franz-go client.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// New creates a producer. The client connects lazily; use Healthy to verify brokers.
func New(cfg Config, logger *slog.Logger) (*Producer, error) {
	if cfg.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	acks := parseAcks(cfg.Acks)
	opts := []kgo.Opt{
		kgo.SeedBrokers(splitBrokers(cfg.Brokers)...),
		kgo.RequiredAcks(acks),
		kgo.RecordRetries(cfg.Retries),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	}
	if acks != kgo.AllISRAcks() {
		// Idempotent writes require acks=all.
		opts = append(opts, kgo.DisableIdempotentWrite())
	}
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, logger: logger}, nil
}

// ProduceAsync buffers msg for background delivery. Delivery failures are logged.
func (p *Producer) ProduceAsync(msg *Message) error {
	return p.whileOpen(func() error {
		p.client.Produce(context.Background(), toRecord(msg), p.logDeliveryFailure)
		return nil
	})
}

// Produce sends msg and waits for the broker acknowledgement.
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	return p.whileOpen(func() error {
		if err := p.client.ProduceSync(ctx, toRecord(msg)).FirstErr(); err != nil {
			return fmt.Errorf("produce to %s: %w", msg.Topic, err)
		}
		return nil
	})
}

// Healthy reports whether any broker answers.
func (p *Producer) Healthy(ctx context.Context) error {
	return p.whileOpen(func() error {
		return p.client.Ping(ctx)
	})
}

// Close flushes buffered records for up to timeout and shuts the client down.
func (p *Producer) Close(timeout time.Duration) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("kafka producer closed with unflushed records", "error", err)
	}
	p.client.Close()
}

// whileOpen runs fn under the read lock unless the producer has been closed.
func (p *Producer) whileOpen(fn func() error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	return fn()
}

func (p *Producer) logDeliveryFailure(r *kgo.Record, err error) {
	if err != nil {
		p.logger.Error("kafka delivery failed", "topic", r.Topic, "key", string(r.Key), "error", err)
	}
}

// parseAcks maps "0" and "all"; anything else means the leader acknowledges.
func parseAcks(v string) kgo.Acks {
	switch v {
	case "0":
		return kgo.NoAck()
	case "all", "-1":
		return kgo.AllISRAcks()
	default:
		return kgo.LeaderAck()
	}
}

func toRecord(msg *Message) *kgo.Record {
	headers := make([]kgo.RecordHeader, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return &kgo.Record{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
