package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentifier/rentifier/internal/domain"
)

var notifyNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func notifyFixture() (*NotifierService, *fakeListingRepo, *fakeFilterRepo, *fakeNotificationRepo, *fakeWorkerRepo, *fakeTransport) {
	listings := &fakeListingRepo{}
	filters := &fakeFilterRepo{}
	notifications := &fakeNotificationRepo{existing: map[pairKey]bool{}}
	worker := &fakeWorkerRepo{states: map[string]domain.WorkerState{}}
	transport := &fakeTransport{}
	svc := NewNotifierService(listings, filters, notifications, worker, transport, nil, "telegram", 24*time.Hour)
	svc.Now = func() time.Time { return notifyNow }
	return svc, listings, filters, notifications, worker, transport
}

func matchAllFilter(filterID, userID string, chatID int64) domain.FilterWithUser {
	return domain.FilterWithUser{
		Filter: domain.Filter{ID: filterID, UserID: userID, Enabled: true},
		User:   domain.User{ID: userID, ChatID: chatID},
	}
}

func TestNotifierRunSendsAndRecords(t *testing.T) {
	svc, listings, filters, notifications, worker, transport := notifyFixture()
	listings.listings = []domain.Listing{{ID: "l1", Title: "דירה", URL: "https://x/1", ImageURL: "https://img/1.jpg"}}
	filters.filters = []domain.FilterWithUser{matchAllFilter("f1", "u1", 100)}

	sum, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.ImageSuccess)
	assert.Equal(t, 1.0, sum.ImageSuccessRate)

	require.Len(t, transport.photoCalls, 1)
	assert.Equal(t, int64(100), transport.photoCalls[0].chatID)
	assert.Equal(t, "https://img/1.jpg", transport.photoCalls[0].photoURL)

	require.Len(t, notifications.recorded, 1)
	rec := notifications.recorded[0]
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "l1", rec.ListingID)
	require.NotNil(t, rec.FilterID)
	assert.Equal(t, "f1", *rec.FilterID)
	assert.Equal(t, "telegram", rec.Channel)

	// Watermark advanced to the run's start time.
	require.Len(t, worker.upserts, 1)
	assert.Equal(t, domain.WorkerNotify, worker.upserts[0].WorkerName)
	require.NotNil(t, worker.upserts[0].LastRunAt)
	assert.Equal(t, notifyNow, *worker.upserts[0].LastRunAt)
}

func TestNotifierRunSkipsAlreadySentPair(t *testing.T) {
	svc, listings, filters, notifications, _, transport := notifyFixture()
	listings.listings = []domain.Listing{{ID: "l1", Title: "x", URL: "u"}}
	filters.filters = []domain.FilterWithUser{matchAllFilter("f1", "u1", 100)}
	notifications.existing[pairKey{"u1", "l1"}] = true

	sum, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Sent)
	assert.Equal(t, 1, sum.Skipped)
	assert.Empty(t, transport.textCalls)
	assert.Empty(t, transport.photoCalls)
}

func TestNotifierRunOnePerUserAcrossFilters(t *testing.T) {
	svc, listings, filters, notifications, _, transport := notifyFixture()
	listings.listings = []domain.Listing{{ID: "l1", Title: "x", URL: "u"}}
	// Two filters for the same user both match; the second hits the row
	// recorded by the first.
	filters.filters = []domain.FilterWithUser{
		matchAllFilter("f1", "u1", 100),
		matchAllFilter("f2", "u1", 100),
	}

	sum, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.Skipped)
	assert.Len(t, transport.textCalls, 1)
	assert.Len(t, notifications.recorded, 1)
}

func TestNotifierRunRetryablePhotoFailureNoFallback(t *testing.T) {
	svc, listings, filters, notifications, worker, transport := notifyFixture()
	ingested := notifyNow.Add(-10 * time.Minute)
	listings.listings = []domain.Listing{{ID: "l1", Title: "x", URL: "u", ImageURL: "https://img/1.jpg", IngestedAt: ingested}}
	filters.filters = []domain.FilterWithUser{matchAllFilter("f1", "u1", 100)}
	transport.photoResults = []domain.SendResult{{Retryable: true, ImageAvailable: true, Error: "502"}}

	sum, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Sent)
	assert.Equal(t, 1, sum.Failed)
	// Retryable failures wait for the next run; no text fallback, no row.
	assert.Empty(t, transport.textCalls)
	assert.Empty(t, notifications.recorded)

	// The watermark stays behind the failed listing so the next window
	// includes it again.
	require.Len(t, worker.upserts, 1)
	require.NotNil(t, worker.upserts[0].LastRunAt)
	assert.True(t, worker.upserts[0].LastRunAt.Before(ingested))
}

func TestNotifierRunRedeliversAfterRetryableFailure(t *testing.T) {
	svc, listings, filters, notifications, worker, transport := notifyFixture()
	ingested := notifyNow.Add(-10 * time.Minute)
	listings.listings = []domain.Listing{{ID: "l1", Title: "x", URL: "u", ImageURL: "https://img/1.jpg", IngestedAt: ingested}}
	filters.filters = []domain.FilterWithUser{matchAllFilter("f1", "u1", 100)}

	// First run: the photo send hits a transient upstream error.
	transport.photoResults = []domain.SendResult{{Retryable: true, ImageAvailable: true, Error: "502"}}
	sum, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Sent)
	assert.Equal(t, 1, sum.Failed)
	assert.Empty(t, notifications.recorded)

	require.Len(t, worker.upserts, 1)
	mark := worker.upserts[0]
	require.NotNil(t, mark.LastRunAt)
	assert.True(t, mark.LastRunAt.Before(ingested), "watermark must not pass the failed listing")
	worker.states[domain.WorkerNotify] = mark

	// Second run with a healthy transport picks the window up again and
	// delivers the pair.
	sum, err = svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, listings.since.Before(ingested), "held watermark keeps the listing in the window")
	assert.Equal(t, 1, sum.Sent)
	require.Len(t, notifications.recorded, 1)
	assert.Equal(t, "l1", notifications.recorded[0].ListingID)

	// With nothing left to retry the watermark advances to the run time.
	require.Len(t, worker.upserts, 2)
	assert.Equal(t, notifyNow, *worker.upserts[1].LastRunAt)
}

func TestNotifierRunBadImageFallsBackToText(t *testing.T) {
	svc, listings, filters, notifications, _, transport := notifyFixture()
	listings.listings = []domain.Listing{{ID: "l1", Title: "x", URL: "u", ImageURL: "https://img/broken.jpg"}}
	filters.filters = []domain.FilterWithUser{matchAllFilter("f1", "u1", 100)}
	transport.photoResults = []domain.SendResult{{Retryable: false, ImageAvailable: false, Error: "wrong file identifier"}}

	sum, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.ImageFallback)
	assert.Zero(t, sum.ImageSuccess)
	assert.Zero(t, sum.ImageSuccessRate)
	require.Len(t, transport.textCalls, 1)
	assert.Len(t, notifications.recorded, 1)
}

func TestNotifierRunFirstRunWindow(t *testing.T) {
	svc, listings, _, _, _, _ := notifyFixture()

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notifyNow.Add(-24*time.Hour), listings.since)
}

func TestNotifierRunUsesWatermark(t *testing.T) {
	svc, listings, _, _, worker, _ := notifyFixture()
	mark := notifyNow.Add(-15 * time.Minute)
	worker.states[domain.WorkerNotify] = domain.WorkerState{
		WorkerName: domain.WorkerNotify,
		LastRunAt:  &mark,
		LastStatus: domain.RunStatusOK,
	}

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mark, listings.since)
}

func TestNotifierRunRateLimitedPairIsDeferred(t *testing.T) {
	svc, listings, filters, notifications, worker, transport := notifyFixture()
	limiter := &fakeLimiter{denied: map[string]time.Duration{"chat:100": 3 * time.Second}}
	svc.Limiter = limiter
	ingested := notifyNow.Add(-5 * time.Minute)
	listings.listings = []domain.Listing{{ID: "l1", Title: "x", URL: "u", IngestedAt: ingested}}
	filters.filters = []domain.FilterWithUser{
		matchAllFilter("f1", "u1", 100),
		matchAllFilter("f2", "u2", 200),
	}

	sum, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, []string{"chat:100", "chat:200"}, limiter.calls)
	// Only the unthrottled chat was delivered and recorded.
	require.Len(t, transport.textCalls, 1)
	assert.Equal(t, int64(200), transport.textCalls[0].chatID)
	require.Len(t, notifications.recorded, 1)
	assert.Equal(t, "u2", notifications.recorded[0].UserID)

	// The deferred pair has no sent row, so the watermark holds the listing
	// in the window for the next run.
	require.Len(t, worker.upserts, 1)
	require.NotNil(t, worker.upserts[0].LastRunAt)
	assert.True(t, worker.upserts[0].LastRunAt.Before(ingested))
}

func TestNotifierRunPairFailureDoesNotBlockOthers(t *testing.T) {
	svc, listings, filters, notifications, worker, _ := notifyFixture()
	ingested := notifyNow.Add(-5 * time.Minute)
	listings.listings = []domain.Listing{{ID: "l1", Title: "x", URL: "u", IngestedAt: ingested}}
	filters.filters = []domain.FilterWithUser{
		matchAllFilter("f1", "u1", 100),
		matchAllFilter("f2", "u2", 200),
	}
	notifications.existsErr = errors.New("transient")

	// Both pairs fail the existence check but the run still completes; the
	// watermark holds behind the listing so a later run redrives both pairs.
	sum, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Failed)
	require.Len(t, worker.upserts, 1)
	require.NotNil(t, worker.upserts[0].LastRunAt)
	assert.True(t, worker.upserts[0].LastRunAt.Before(ingested))
}

func TestNotifierRunCancelledContextKeepsWatermark(t *testing.T) {
	svc, listings, filters, _, worker, _ := notifyFixture()
	listings.listings = []domain.Listing{{ID: "l1", Title: "x", URL: "u"}}
	filters.filters = []domain.FilterWithUser{matchAllFilter("f1", "u1", 100)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx)
	require.Error(t, err)
	assert.Empty(t, worker.upserts)
}

func TestNotifierRunMatchingRespectsFilter(t *testing.T) {
	svc, listings, filters, _, _, transport := notifyFixture()
	listings.listings = []domain.Listing{
		{ID: "cheap", Title: "x", URL: "u", Price: fptr(4000), City: "תל אביב"},
		{ID: "pricey", Title: "x", URL: "u", Price: fptr(9000), City: "תל אביב"},
	}
	fw := matchAllFilter("f1", "u1", 100)
	fw.Filter.MaxPrice = fptr(5000)
	fw.Filter.Cities = []string{"תל אביב"}
	filters.filters = []domain.FilterWithUser{fw}

	sum, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Matched)
	assert.Equal(t, 1, sum.Sent)
	require.Len(t, transport.textCalls, 1)
}
