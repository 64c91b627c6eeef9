//go:build integration

// Package containers provides testcontainers-based fixtures for integration tests.
// Containers are started on first use and shared by every suite in the test binary;
// Ryuk reaps them when the binary exits.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
	kafka    *KafkaContainer
}

var manager = sync.OnceValue(func() *Manager { return &Manager{} })

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	return manager()
}

// lazy returns *slot, calling start to fill it on first use. The caller holds m.mu.
func lazy[C any](t *testing.T, slot **C, start func(*testing.T) *C) *C {
	t.Helper()
	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}

// GetPostgres returns a migrated Postgres container.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	return lazy(t, &m.postgres, NewPostgresContainer)
}

// GetRedis returns a Redis container with a connected client.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	return lazy(t, &m.redis, NewRedisContainer)
}

// GetKafka returns a Redpanda container speaking the Kafka protocol.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	return lazy(t, &m.kafka, NewKafkaContainer)
}
