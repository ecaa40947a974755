// Package redpanda publishes canonical-listing events for downstream
// consumers. Publishing is best effort: a broker outage never fails the
// processor item that triggered it.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/rentifier/rentifier/internal/domain"
)

// Producer wraps a Kafka producer and implements domain.EventPublisher.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer constructs a fire-and-forget listing event producer.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	slog.Info("creating listing event producer",
		slog.Any("brokers", brokers),
		slog.String("topic", topic))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(5),
		kgo.ProducerBatchMaxBytes(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// listingEvent is the wire payload for listing.upserted events.
type listingEvent struct {
	Event        string     `json:"event"`
	ListingID    string     `json:"listing_id"`
	SourceID     int64      `json:"source_id"`
	SourceItemID string     `json:"source_item_id"`
	City         string     `json:"city,omitempty"`
	Price        *float64   `json:"price,omitempty"`
	Bedrooms     *float64   `json:"bedrooms,omitempty"`
	URL          string     `json:"url"`
	IngestedAt   time.Time  `json:"ingested_at"`
	PostedAt     *time.Time `json:"posted_at,omitempty"`
}

// PublishListingUpserted emits one event per canonical upsert, keyed by
// listing id so per-listing ordering holds within a partition.
func (p *Producer) PublishListingUpserted(ctx context.Context, l domain.Listing) error {
	ev := listingEvent{
		Event:        "listing.upserted",
		ListingID:    l.ID,
		SourceID:     l.SourceID,
		SourceItemID: l.SourceItemID,
		City:         l.City,
		Price:        l.Price,
		Bedrooms:     l.Bedrooms,
		URL:          l.URL,
		IngestedAt:   l.IngestedAt,
		PostedAt:     l.PostedAt,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("op=events.publish: %w", err)
	}
	rec := &kgo.Record{Topic: p.topic, Key: []byte(l.ID), Value: b}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("op=events.publish: %w", err)
	}
	return nil
}

// Close flushes and releases the underlying client.
func (p *Producer) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
