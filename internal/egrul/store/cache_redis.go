package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mark-rom/egrul-bot/internal/egrul/metrics"
	"github.com/mark-rom/egrul-bot/internal/egrul/models"
)

const (
	backendRedis         = "redis"
	redisRecordKeyPrefix = "egrul:record:"
)

// RedisCache persists registry records in Redis with TTL-based eviction.
// It lets several server replicas share lookups.
type RedisCache struct {
	client   redis.UniversalClient
	cacheTTL time.Duration
	metrics  *metrics.Metrics
}

// NewRedisCache constructs a Redis-backed record cache; metrics may be nil.
func NewRedisCache(client redis.UniversalClient, cacheTTL time.Duration, m *metrics.Metrics) *RedisCache {
	return &RedisCache{
		client:   client,
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// FindRecord loads a cached record by identifier.
//
// Errors: returns ErrNotFound on cache miss; wraps Redis or JSON decode errors.
func (c *RedisCache) FindRecord(ctx context.Context, id models.Identifier) (*models.RegistryRecord, error) {
	data, err := c.client.Get(ctx, recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.RecordCacheMiss(backendRedis)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find record cache: %w", err)
	}

	var record models.RegistryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode record cache: %w", err)
	}
	c.metrics.RecordCacheHit(backendRedis)
	return &record, nil
}

// SaveRecord writes a record to Redis; overwrites any existing entry.
func (c *RedisCache) SaveRecord(ctx context.Context, id models.Identifier, record *models.RegistryRecord) error {
	if record == nil {
		return fmt.Errorf("registry record is required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record cache: %w", err)
	}
	if err := c.client.Set(ctx, recordKey(id), payload, c.cacheTTL).Err(); err != nil {
		return fmt.Errorf("save record cache: %w", err)
	}
	return nil
}

func recordKey(id models.Identifier) string {
	return redisRecordKeyPrefix + id.String()
}
