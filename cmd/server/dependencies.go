package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark-rom/egrul-bot/internal/egrul/client"
	"github.com/mark-rom/egrul-bot/internal/egrul/events"
	"github.com/mark-rom/egrul-bot/internal/egrul/metrics"
	"github.com/mark-rom/egrul-bot/internal/egrul/service"
	"github.com/mark-rom/egrul-bot/internal/egrul/store"
	"github.com/mark-rom/egrul-bot/internal/egrul/tracer"
	"github.com/mark-rom/egrul-bot/internal/platform/config"
	"github.com/mark-rom/egrul-bot/internal/platform/database"
	"github.com/mark-rom/egrul-bot/internal/platform/kafka"
	"github.com/mark-rom/egrul-bot/internal/platform/kafka/producer"
	"github.com/mark-rom/egrul-bot/internal/platform/redis"
)

const producerFlushTimeout = 5 * time.Second

// dependencies holds everything the router needs plus the resources to release.
type dependencies struct {
	registry   *client.Client
	lookup     *service.Lookup
	extraction *service.Extraction
	requests   store.RequestLog
	events     events.Publisher

	redis    *redis.Client
	db       *database.Pool
	producer *producer.Producer
	kafka    *kafka.HealthChecker
}

func buildDependencies(ctx context.Context, cfg config.Config, log *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}
	m := metrics.New()

	var tr tracer.Tracer = tracer.NewNoop()
	if cfg.Telemetry.Enabled {
		tr = tracer.NewOTel()
		log.Info("otel tracing enabled")
	}

	deps.registry = client.New(client.Config{
		BaseURL:   cfg.Registry.BaseURL,
		UserAgent: cfg.Registry.UserAgent,
		Timeout:   cfg.Registry.Timeout,
	}, client.WithMetrics(m), client.WithTracer(tr))

	opts := []service.Option{
		service.WithLogger(log),
		service.WithTracer(tr),
		service.WithMetrics(m),
		service.WithPollAttempts(cfg.Registry.PollAttempts),
		service.WithPollInterval(cfg.Registry.PollInterval),
	}

	cache, err := deps.recordCache(ctx, cfg, m, log)
	if err != nil {
		deps.Close()
		return nil, err
	}
	lookupOpts := opts
	if cache != nil {
		lookupOpts = append(append([]service.Option{}, opts...), service.WithCache(cache))
	}
	deps.lookup = service.NewLookup(deps.registry, lookupOpts...)
	deps.extraction = service.NewExtraction(deps.registry, opts...)

	if err := deps.requestLog(ctx, cfg, log); err != nil {
		deps.Close()
		return nil, err
	}
	if err := deps.eventPublisher(cfg, log); err != nil {
		deps.Close()
		return nil, err
	}
	return deps, nil
}

// recordCache picks Redis when configured, an in-process LRU otherwise, and nothing
// when the TTL is zero.
func (d *dependencies) recordCache(ctx context.Context, cfg config.Config, m *metrics.Metrics, log *slog.Logger) (service.RecordCache, error) {
	if cfg.Cache.TTL == 0 {
		log.Info("record cache disabled")
		return nil, nil
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		d.redis = rc
		log.Info("record cache backed by redis", "ttl", cfg.Cache.TTL)
		return store.NewRedisCache(rc.Client, cfg.Cache.TTL, m), nil
	}

	log.Info("record cache in memory", "ttl", cfg.Cache.TTL, "size", cfg.Cache.Size)
	return store.NewMemoryCache(cfg.Cache.Size, cfg.Cache.TTL, m), nil
}

// requestLog uses Postgres when DATABASE_URL is set, applying migrations first.
func (d *dependencies) requestLog(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Database.URL == "" {
		log.Info("request log in memory")
		d.requests = store.NewInMemoryRequestLog()
		return nil
	}

	if err := database.Migrate(cfg.Database.URL, log); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	dbCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	dbCfg.MaxIdleConns = cfg.Database.MaxIdleConns
	dbCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime

	pool, err := database.Open(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	d.db = pool
	d.requests = store.NewPostgresRequestLog(pool.DB())
	log.Info("request log in postgres")
	return nil
}

// eventPublisher publishes to Kafka when brokers are configured.
func (d *dependencies) eventPublisher(cfg config.Config, log *slog.Logger) error {
	if cfg.Kafka.Brokers == "" {
		d.events = events.Noop{}
		return nil
	}

	pcfg := producer.DefaultConfig()
	pcfg.Brokers = cfg.Kafka.Brokers
	pcfg.Acks = cfg.Kafka.Acks
	p, err := producer.New(pcfg, log)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	d.producer = p
	d.kafka = kafka.NewHealthChecker(cfg.Kafka.Brokers)
	d.events = events.NewKafkaPublisher(p, cfg.Kafka.Topic, log)
	log.Info("request events enabled", "topic", cfg.Kafka.Topic)
	return nil
}

// Close releases every opened resource. Safe to call on a partially built value.
func (d *dependencies) Close() {
	if d.producer != nil {
		d.producer.Close(producerFlushTimeout)
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}
