// Command collector runs one collection pass over every enabled source,
// appending new candidates to listings_raw. Pass -interval to run as a
// long-lived loop instead of a one-shot cron job.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rentifier/rentifier/internal/adapter/repo/postgres"
	"github.com/rentifier/rentifier/internal/adapter/source"
	"github.com/rentifier/rentifier/internal/adapter/source/yad2"
	"github.com/rentifier/rentifier/internal/app"
	"github.com/rentifier/rentifier/internal/domain"
	"github.com/rentifier/rentifier/internal/usecase"
)

func main() {
	os.Exit(run())
}

func run() int {
	interval := flag.Duration("interval", 0, "run continuously at this interval (0 runs once)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, "rentifier-collector")
	if err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		return 1
	}
	defer a.Close()

	var connectors []domain.Connector
	if a.Cfg.Yad2Enabled {
		connectors = append(connectors, yad2.New(a.Cfg))
	}
	registry := source.NewRegistry(connectors...)

	rawRepo := postgres.NewRawListingRepo(a.Pool)
	rawRepo.ChunkSize = a.Cfg.RawInsertChunkSize
	svc := usecase.NewCollectorService(
		postgres.NewSourceRepo(a.Pool),
		postgres.NewCityRepo(a.Pool),
		rawRepo,
		registry,
		postgres.NewWorkerStateRepo(a.Pool),
	)

	err = app.RunJob(ctx, *interval, a.Cfg.RunTimeout, func(rctx context.Context) error {
		start := time.Now()
		sum, err := svc.Run(rctx)
		if err != nil {
			return err
		}
		slog.Info("collector pass finished",
			slog.Duration("took", time.Since(start)),
			slog.Int("success", sum.Success),
			slog.Int("errors", sum.Errors))
		return nil
	})
	if err != nil {
		slog.Error("collector run failed", slog.Any("error", err))
		return 1
	}
	return 0
}
