package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rentifier/rentifier/internal/adapter/observability"
	"github.com/rentifier/rentifier/internal/domain"
	"github.com/rentifier/rentifier/internal/service/ratelimiter"
)

// DefaultFirstRunWindow bounds the lookback when no watermark exists yet.
const DefaultFirstRunWindow = 24 * time.Hour

// NotifySummary reports one notifier run, including the image delivery
// split used to compute the success rate.
type NotifySummary struct {
	Matched          int     `json:"matched"`
	Sent             int     `json:"sent"`
	Failed           int     `json:"failed"`
	Skipped          int     `json:"skipped"`
	ImageSuccess     int     `json:"image_success"`
	ImageFallback    int     `json:"image_fallback"`
	NoImage          int     `json:"no_image"`
	ImageSuccessRate float64 `json:"image_success_rate"`
}

// NotifierService fans listings out to matching user filters and delivers
// at most one notification per (user, listing), ever.
type NotifierService struct {
	Listings      domain.ListingRepository
	Filters       domain.FilterRepository
	Notifications domain.NotificationRepository
	Worker        domain.WorkerStateRepository
	Transport     domain.ChatTransport
	Limiter       ratelimiter.Limiter

	// Channel recorded on notifications_sent rows.
	Channel        string
	FirstRunWindow time.Duration
	Now            func() time.Time
}

// NewNotifierService wires the notifier job. Limiter may be nil.
func NewNotifierService(listings domain.ListingRepository, filters domain.FilterRepository, notifications domain.NotificationRepository, worker domain.WorkerStateRepository, transport domain.ChatTransport, limiter ratelimiter.Limiter, channel string, firstRunWindow time.Duration) *NotifierService {
	return &NotifierService{
		Listings:       listings,
		Filters:        filters,
		Notifications:  notifications,
		Worker:         worker,
		Transport:      transport,
		Limiter:        limiter,
		Channel:        channel,
		FirstRunWindow: firstRunWindow,
	}
}

func (s *NotifierService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Run delivers notifications for listings ingested since the watermark. The
// watermark is captured before any reads and advanced only when the run
// completes without interruption, so a crashed run replays and the sent
// table deduplicates. Retryable delivery failures hold the watermark behind
// the affected listings so they are redriven on the next run.
func (s *NotifierService) Run(ctx context.Context) (NotifySummary, error) {
	currentRun := s.now()
	window := s.FirstRunWindow
	if window <= 0 {
		window = DefaultFirstRunWindow
	}
	since := currentRun.Add(-window)

	ws, err := s.Worker.Get(ctx, domain.WorkerNotify)
	switch {
	case err == nil:
		if ws.LastRunAt != nil {
			since = *ws.LastRunAt
		}
	case errors.Is(err, domain.ErrNotFound):
		// First run: bounded lookback.
	default:
		return NotifySummary{}, err
	}

	listings, err := s.Listings.ListIngestedSince(ctx, since)
	if err != nil {
		return NotifySummary{}, err
	}
	filters, err := s.Filters.ListActive(ctx)
	if err != nil {
		return NotifySummary{}, err
	}

	var sum NotifySummary
	var redrive *time.Time
	for _, l := range listings {
		for _, fw := range filters {
			if ctx.Err() != nil {
				// Watermark stays put; the next run replays this window.
				return sum, ctx.Err()
			}
			if !Matches(l, fw.Filter) {
				continue
			}
			sum.Matched++
			retry, err := s.deliver(ctx, l, fw, &sum)
			if err != nil {
				if ctx.Err() != nil {
					return sum, err
				}
				slog.Error("deliver notification",
					slog.String("listing_id", l.ID),
					slog.String("user_id", fw.User.ID),
					slog.Any("error", err))
				sum.Failed++
				observability.NotificationsTotal.WithLabelValues("error").Inc()
			}
			if retry && (redrive == nil || l.IngestedAt.Before(*redrive)) {
				t := l.IngestedAt
				redrive = &t
			}
		}
	}

	// Pairs that failed retryably (or were deferred by the rate limit) must
	// reappear in the next window, so the watermark only advances to just
	// before the earliest such listing. Already-sent neighbors that get
	// replayed are absorbed by the sent-table dedup.
	watermark := currentRun
	if redrive != nil {
		watermark = redrive.Add(-time.Millisecond)
		slog.Info("holding watermark for retryable failures",
			slog.Time("watermark", watermark))
	}

	sum.ImageSuccessRate = imageSuccessRate(sum)
	if err := s.Worker.Upsert(ctx, domain.WorkerState{
		WorkerName: domain.WorkerNotify,
		LastRunAt:  &watermark,
		LastStatus: domain.RunStatusOK,
	}); err != nil {
		return sum, fmt.Errorf("op=notify.watermark: %w", err)
	}
	slog.Info("notifier run complete",
		slog.Int("listings", len(listings)),
		slog.Int("matched", sum.Matched),
		slog.Int("sent", sum.Sent),
		slog.Int("failed", sum.Failed),
		slog.Int("skipped", sum.Skipped),
		slog.Float64("image_success_rate", sum.ImageSuccessRate))
	return sum, nil
}

// deliver handles one (listing, filter) pair end to end. A returned error is
// counted as a failure by the caller; retry reports whether the pair must be
// replayed by a later run, which holds the watermark behind the listing.
func (s *NotifierService) deliver(ctx context.Context, l domain.Listing, fw domain.FilterWithUser, sum *NotifySummary) (retry bool, err error) {
	exists, err := s.Notifications.Exists(ctx, fw.User.ID, l.ID)
	if err != nil {
		return true, fmt.Errorf("op=notify.exists: %w", err)
	}
	if exists {
		sum.Skipped++
		observability.NotificationsTotal.WithLabelValues("skipped").Inc()
		return false, nil
	}

	if s.Limiter != nil {
		key := "chat:" + strconv.FormatInt(fw.User.ChatID, 10)
		allowed, retryAfter, _ := s.Limiter.Allow(ctx, key, 1)
		if !allowed {
			// No sent row, so the pair is retried next run.
			slog.Info("notification deferred by rate limit",
				slog.Int64("chat_id", fw.User.ChatID),
				slog.Duration("retry_after", retryAfter))
			sum.Skipped++
			observability.NotificationsTotal.WithLabelValues("deferred").Inc()
			return true, nil
		}
	}

	text := RenderMessage(l)
	sent, retryable, err := s.send(ctx, fw.User.ChatID, l, text, sum)
	if err != nil {
		return true, err
	}
	if !sent {
		sum.Failed++
		observability.NotificationsTotal.WithLabelValues("error").Inc()
		return retryable, nil
	}

	filterID := fw.Filter.ID
	err = s.Notifications.Record(ctx, domain.NotificationSent{
		UserID:    fw.User.ID,
		ListingID: l.ID,
		FilterID:  &filterID,
		SentAt:    s.now(),
		Channel:   s.Channel,
	})
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		// Delivered but not recorded: surfaced so the operator sees it. The
		// pair may double-send next run.
		return true, fmt.Errorf("op=notify.record: %w", err)
	}
	sum.Sent++
	observability.NotificationsTotal.WithLabelValues("sent").Inc()
	return false, nil
}

// send attempts photo-first delivery. Photo failures that are retryable get
// no fallback (a later run retries the photo); non-retryable image failures
// fall back to text in the same run. Transport errors are treated as
// retryable network faults.
func (s *NotifierService) send(ctx context.Context, chatID int64, l domain.Listing, text string, sum *NotifySummary) (sent, retryable bool, err error) {
	if l.ImageURL == "" {
		res, err := s.Transport.SendMessage(ctx, chatID, text, ParseModeHTML)
		if err != nil {
			return false, true, err
		}
		if res.Success {
			sum.NoImage++
			observability.NotifierImagesTotal.WithLabelValues("none").Inc()
		}
		return res.Success, res.Retryable, nil
	}

	res, err := s.Transport.SendPhoto(ctx, chatID, l.ImageURL, text, ParseModeHTML)
	if err != nil {
		return false, true, err
	}
	if res.Success {
		sum.ImageSuccess++
		observability.NotifierImagesTotal.WithLabelValues("success").Inc()
		return true, false, nil
	}
	if res.Retryable || res.ImageAvailable {
		return false, res.Retryable, nil
	}

	slog.Debug("photo rejected, falling back to text",
		slog.String("listing_id", l.ID),
		slog.String("reason", res.Error))
	fres, err := s.Transport.SendMessage(ctx, chatID, text, ParseModeHTML)
	if err != nil {
		return false, true, err
	}
	if fres.Success {
		sum.ImageFallback++
		observability.NotifierImagesTotal.WithLabelValues("fallback").Inc()
	}
	return fres.Success, fres.Retryable, nil
}

func imageSuccessRate(sum NotifySummary) float64 {
	total := sum.ImageSuccess + sum.ImageFallback
	if total == 0 {
		return 0
	}
	return float64(sum.ImageSuccess) / float64(total)
}
