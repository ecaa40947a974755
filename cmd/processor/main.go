// Command processor drains unprocessed raw listings into the canonical
// listings table, one bounded batch per pass. Pass -interval to run as a
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

	"github.com/rentifier/rentifier/internal/adapter/queue/redpanda"
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

	a, err := app.Bootstrap(ctx, "rentifier-processor")
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

	var events domain.EventPublisher
	if a.Cfg.EventsEnabled() {
		producer, err := redpanda.NewProducer(a.Cfg.KafkaBrokers, a.Cfg.ListingEventsTopic)
		if err != nil {
			slog.Error("listing event producer init failed", slog.Any("error", err))
			return 1
		}
		defer producer.Close()
		events = producer
	}

	svc := usecase.NewProcessorService(
		postgres.NewRawListingRepo(a.Pool),
		postgres.NewListingRepo(a.Pool),
		postgres.NewSourceRepo(a.Pool),
		registry,
		events,
		postgres.NewWorkerStateRepo(a.Pool),
		a.Cfg.ProcessorBatchSize,
	)

	err = app.RunJob(ctx, *interval, a.Cfg.RunTimeout, func(rctx context.Context) error {
		start := time.Now()
		sum, err := svc.Run(rctx)
		if err != nil {
			return err
		}
		slog.Info("processor pass finished",
			slog.Duration("took", time.Since(start)),
			slog.Int("processed", sum.Processed),
			slog.Int("failed", sum.Failed))
		return nil
	})
	if err != nil {
		slog.Error("processor run failed", slog.Any("error", err))
		return 1
	}
	return 0
}
