package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark-rom/egrul-bot/internal/platform/kafka/producer"
)

type recordingProducer struct {
	mu       sync.Mutex
	messages []*producer.Message
	err      error
}

func (r *recordingProducer) ProduceAsync(msg *producer.Message) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func TestKafkaPublisherEncodesEvent(t *testing.T) {
	rec := &recordingProducer{}
	pub := NewKafkaPublisher(rec, "", nil)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := pub.Publish(context.Background(), RequestEvent{
		Operation:      "lookup",
		IdentifierHash: "abc123",
		IdentifierKind: "inn",
		Outcome:        OutcomeOK,
		Timestamp:      ts,
	})
	require.NoError(t, err)
	require.Len(t, rec.messages, 1)

	msg := rec.messages[0]
	assert.Equal(t, DefaultTopic, msg.Topic)
	assert.Equal(t, "abc123", string(msg.Key))
	assert.Equal(t, "egrul.request.lookup", msg.Headers["event_type"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "lookup", decoded["kind"])
	assert.Equal(t, "ok", decoded["outcome"])
	assert.Equal(t, "2026-03-01T12:00:00Z", decoded["timestamp"])
	assert.NotContains(t, decoded, "request_id")
}

func TestKafkaPublisherStampsMissingTimestamp(t *testing.T) {
	rec := &recordingProducer{}
	pub := NewKafkaPublisher(rec, "custom", nil)

	require.NoError(t, pub.Publish(context.Background(), RequestEvent{Operation: "extraction", Outcome: "no_match"}))
	require.Len(t, rec.messages, 1)
	assert.Equal(t, "custom", rec.messages[0].Topic)

	var event RequestEvent
	require.NoError(t, json.Unmarshal(rec.messages[0].Value, &event))
	assert.False(t, event.Timestamp.IsZero())
}

func TestKafkaPublisherProducerClosed(t *testing.T) {
	pub := NewKafkaPublisher(&recordingProducer{err: errors.New("producer is closed")}, "", nil)
	err := pub.Publish(context.Background(), RequestEvent{Operation: "lookup"})
	assert.ErrorContains(t, err, "producer is closed")
}

func TestMemoryPublisher(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Publish(context.Background(), RequestEvent{Operation: "lookup"})
		}()
	}
	wg.Wait()

	assert.Len(t, m.Events(), 10)
	assert.NoError(t, Noop{}.Publish(context.Background(), RequestEvent{}))
}
