package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mark-rom/egrul-bot/internal/platform/config"
	"github.com/mark-rom/egrul-bot/internal/platform/health"
	"github.com/mark-rom/egrul-bot/internal/platform/httpserver"
	"github.com/mark-rom/egrul-bot/internal/platform/logger"
)

const redisStatsInterval = 15 * time.Second

// main wires dependencies and keeps the server lifecycle small. Business logic lives
// in internal/egrul.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("egrul server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	log.Info("initializing egrul server",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"version", health.Version,
		"registry", cfg.Registry.BaseURL,
	)

	deps, err := buildDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	router, err := newRouter(cfg, deps, log)
	if err != nil {
		return err
	}
	srv := httpserver.New(cfg.Addr, router, httpserver.DefaultConfig(cfg.RequestTimeout), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if deps.redis != nil {
		g.Go(func() error {
			return deps.redis.ReportPoolStats(gctx, redisStatsInterval)
		})
	}
	return g.Wait()
}
