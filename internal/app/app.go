// Package app holds the shared bootstrap used by every job binary: config,
// logging, tracing, metrics, the ops endpoint, and the database pool.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentifier/rentifier/internal/adapter/observability"
	"github.com/rentifier/rentifier/internal/adapter/repo/postgres"
	"github.com/rentifier/rentifier/internal/config"
)

// App carries the process-wide resources a job binary needs.
type App struct {
	Cfg  config.Config
	Pool *pgxpool.Pool

	shutdownTracing func(context.Context) error
}

// Bootstrap loads configuration and brings up logging, tracing, metrics, the
// ops listener and a migrated database pool. serviceName overrides
// OTEL_SERVICE_NAME so each binary reports under its own name.
func Bootstrap(ctx context.Context, serviceName string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if serviceName != "" {
		cfg.OTELServiceName = serviceName
	}
	slog.SetDefault(observability.SetupLogger(cfg))

	shutdown, err := observability.SetupTracing(cfg)
	if err != nil {
		return nil, fmt.Errorf("op=app.tracing: %w", err)
	}
	observability.InitMetrics()
	go observability.ServeOps(fmt.Sprintf(":%d", cfg.OpsPort))

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("op=app.pool: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("op=app.migrate: %w", err)
	}

	return &App{Cfg: cfg, Pool: pool, shutdownTracing: shutdown}, nil
}

// Close releases the pool and flushes traces.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			slog.Error("tracing shutdown", slog.Any("error", err))
		}
	}
}

// RunJob executes fn once, or on a fixed interval when interval > 0, giving
// each pass its own timeout. The loop ends when ctx is cancelled; the error
// of the final pass is returned.
func RunJob(ctx context.Context, interval, timeout time.Duration, fn func(context.Context) error) error {
	runOnce := func() error {
		rctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(rctx)
	}

	if interval <= 0 {
		return runOnce()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last error
	for {
		if err := runOnce(); err != nil {
			slog.Error("job pass failed", slog.Any("error", err))
			last = err
		} else {
			last = nil
		}
		select {
		case <-ctx.Done():
			return last
		case <-ticker.C:
		}
	}
}
