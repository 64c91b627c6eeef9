package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mark-rom/egrul-bot/internal/egrul/handler"
	"github.com/mark-rom/egrul-bot/internal/platform/config"
	"github.com/mark-rom/egrul-bot/internal/platform/health"
	"github.com/mark-rom/egrul-bot/pkg/platform/middleware/metadata"
	"github.com/mark-rom/egrul-bot/pkg/platform/middleware/request"
)

func newRouter(cfg config.Config, deps *dependencies, log *slog.Logger) (http.Handler, error) {
	trusted, err := metadata.ParsePrefixes(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(trusted...).Handler)
	r.Use(request.RequestTime)
	r.Use(request.Logger(log))
	r.Use(request.Latency(request.NewMetrics()))

	h := health.New(cfg.Environment)
	h.RegisterCheck("registry", deps.registry.Health)
	if deps.redis != nil {
		h.RegisterCheck("redis", deps.redis.Health)
	}
	if deps.db != nil {
		h.RegisterCheck("postgres", deps.db.Health)
	}
	if deps.producer != nil {
		h.RegisterCheck("kafka", func(ctx context.Context) error {
			if err := deps.kafka.Check(ctx); err != nil {
				return err
			}
			return deps.producer.Healthy(ctx)
		})
	}
	h.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	api := handler.New(deps.lookup, deps.extraction, log,
		handler.WithRequestLog(deps.requests),
		handler.WithEvents(deps.events),
	)
	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.RequestTimeout))
		r.Use(request.BodyLimit(request.DefaultMaxBodyBytes))
		r.Use(request.ContentTypeJSON)
		r.Use(request.UserID)
		api.Register(r)
	})
	return r, nil
}
