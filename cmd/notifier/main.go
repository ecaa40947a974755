// Command notifier matches freshly ingested listings against user filters
// and delivers chat notifications, at most once per (user, listing). Pass
// -interval to run as a long-lived loop instead of a one-shot cron job.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rentifier/rentifier/internal/adapter/repo/postgres"
	"github.com/rentifier/rentifier/internal/adapter/telegram"
	"github.com/rentifier/rentifier/internal/app"
	"github.com/rentifier/rentifier/internal/service/ratelimiter"
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

	a, err := app.Bootstrap(ctx, "rentifier-notifier")
	if err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		return 1
	}
	defer a.Close()

	if a.Cfg.TelegramBotToken == "" {
		slog.Error("TELEGRAM_BOT_TOKEN is required")
		return 1
	}

	var limiter ratelimiter.Limiter
	if a.Cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.Cfg.RedisAddr,
			Password: a.Cfg.RedisPassword,
		})
		defer func() { _ = rdb.Close() }()
		limiter = ratelimiter.NewRedisLuaLimiter(rdb, a.Pool,
			ratelimiter.NewBucketConfigFromPerMinute(a.Cfg.ChatSendPerMinute))
	} else {
		slog.Info("REDIS_ADDR not set; chat send pacing disabled")
	}

	svc := usecase.NewNotifierService(
		postgres.NewListingRepo(a.Pool),
		postgres.NewFilterRepo(a.Pool),
		postgres.NewNotificationRepo(a.Pool),
		postgres.NewWorkerStateRepo(a.Pool),
		telegram.New(a.Cfg),
		limiter,
		telegram.Channel,
		a.Cfg.FirstRunWindow,
	)

	err = app.RunJob(ctx, *interval, a.Cfg.RunTimeout, func(rctx context.Context) error {
		start := time.Now()
		sum, err := svc.Run(rctx)
		if err != nil {
			return err
		}
		slog.Info("notifier pass finished",
			slog.Duration("took", time.Since(start)),
			slog.Int("sent", sum.Sent),
			slog.Int("failed", sum.Failed),
			slog.Float64("image_success_rate", sum.ImageSuccessRate))
		return nil
	})
	if err != nil {
		slog.Error("notifier run failed", slog.Any("error", err))
		return 1
	}
	return 0
}
