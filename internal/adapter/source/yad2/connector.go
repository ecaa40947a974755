package yad2

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rentifier/rentifier/internal/adapter/observability"
	"github.com/rentifier/rentifier/internal/config"
	"github.com/rentifier/rentifier/internal/domain"
)

// SourceName must match the seeded Source.Name row.
const SourceName = "yad2"

const itemURLPrefix = "https://www.yad2.co.il/item/"

// Connector implements domain.Connector for the yad2 marketplace. One
// monitored city is fetched per invocation, round-robin; positional and
// breaker state live in the opaque cursor.
type Connector struct {
	client *client
	now    func() time.Time
}

// New builds the connector from configuration.
func New(cfg config.Config) *Connector {
	return &Connector{
		client: newClient(cfg.Yad2BaseURL, cfg.SourceHTTPTimeout, cfg.SourceMaxAttempts),
		now:    time.Now,
	}
}

// Name implements domain.Connector.
func (c *Connector) Name() string { return SourceName }

// FetchNew implements domain.Connector. The returned cursor is non-nil even
// on error so breaker counters survive failed runs; the round-robin index
// only advances on success.
func (c *Connector) FetchNew(ctx context.Context, cursorBytes []byte, view domain.ConnectorStore) (domain.FetchResult, error) {
	cur := decodeCursor(cursorBytes)
	now := c.now().UTC()

	if cur.circuitOpen(now) {
		observability.CircuitOpen.WithLabelValues(SourceName).Set(1)
		slog.Info("circuit open, skipping fetch",
			slog.String("source", SourceName),
			slog.Time("open_until", *cur.CircuitOpenUntil))
		return domain.FetchResult{NextCursor: cursorBytes}, nil
	}
	observability.CircuitOpen.WithLabelValues(SourceName).Set(0)

	cities, err := view.EnabledCities(ctx)
	if err != nil {
		return domain.FetchResult{NextCursor: cursorBytes}, fmt.Errorf("op=yad2.fetch_new: %w", err)
	}
	if len(cities) == 0 {
		return domain.FetchResult{NextCursor: cursorBytes}, nil
	}

	idx := cur.LastCityIndex % len(cities)
	city := cities[idx]

	feed, err := c.client.fetchCity(ctx, city.CityCode)
	if err != nil {
		if opened := cur.recordFailure(now); opened {
			observability.CircuitOpen.WithLabelValues(SourceName).Set(1)
			slog.Warn("circuit_opened",
				slog.String("source", SourceName),
				slog.Int("consecutive_failures", cur.ConsecutiveFailures),
				slog.Time("open_until", *cur.CircuitOpenUntil))
		}
		return domain.FetchResult{NextCursor: cur.encode()}, err
	}
	cur.recordSuccess()

	var candidates []domain.ListingCandidate
	for _, item := range feed.Data.Feed.Items {
		id := itemID(item)
		if id == "" || cur.seen(id) {
			continue
		}
		cand, err := toCandidate(item, id)
		if err != nil {
			slog.Warn("skipping malformed feed item",
				slog.String("source", SourceName),
				slog.String("item_id", id),
				slog.Any("error", err))
			continue
		}
		cur.markSeen(id)
		candidates = append(candidates, cand)
	}
	cur.LastCityIndex = (idx + 1) % len(cities)

	slog.Debug("fetched city feed",
		slog.String("source", SourceName),
		slog.String("city", city.CityName),
		slog.Int("candidates", len(candidates)))
	return domain.FetchResult{Candidates: candidates, NextCursor: cur.encode()}, nil
}

func itemID(item feedItem) string {
	if item.OrderID != 0 {
		return strconv.FormatInt(item.OrderID, 10)
	}
	return item.Token
}

// toCandidate preserves the full feed item in SourceData so Normalize never
// needs to re-fetch.
func toCandidate(item feedItem, id string) (domain.ListingCandidate, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return domain.ListingCandidate{}, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.ListingCandidate{}, err
	}
	cand := domain.ListingCandidate{
		Source:         SourceName,
		SourceItemID:   id,
		RawTitle:       item.Title,
		RawDescription: item.Description,
		RawURL:         itemURLPrefix + item.Token,
		SourceData:     data,
	}
	if item.DateAdded != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", item.DateAdded); err == nil {
			utc := t.UTC()
			cand.RawPostedAt = &utc
		}
	}
	return cand, nil
}
