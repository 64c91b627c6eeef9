package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mark-rom/egrul-bot/internal/egrul/metrics"
	"github.com/mark-rom/egrul-bot/internal/egrul/models"
)

const backendMemory = "memory"

// MemoryCache is a per-process LRU record cache with TTL eviction.
type MemoryCache struct {
	lru     *expirable.LRU[models.Identifier, models.RegistryRecord]
	metrics *metrics.Metrics
}

// NewMemoryCache creates a cache holding at most size records for ttl each.
// metrics may be nil.
func NewMemoryCache(size int, ttl time.Duration, m *metrics.Metrics) *MemoryCache {
	return &MemoryCache{
		lru:     expirable.NewLRU[models.Identifier, models.RegistryRecord](size, nil, ttl),
		metrics: m,
	}
}

// FindRecord returns a copy of the cached record for id, or ErrNotFound.
func (c *MemoryCache) FindRecord(_ context.Context, id models.Identifier) (*models.RegistryRecord, error) {
	record, ok := c.lru.Get(id)
	if !ok {
		c.metrics.RecordCacheMiss(backendMemory)
		return nil, ErrNotFound
	}
	c.metrics.RecordCacheHit(backendMemory)
	return &record, nil
}

// SaveRecord stores record under id, replacing any previous entry.
func (c *MemoryCache) SaveRecord(_ context.Context, id models.Identifier, record *models.RegistryRecord) error {
	if record == nil {
		return fmt.Errorf("registry record is required")
	}
	c.lru.Add(id, *record)
	return nil
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}
