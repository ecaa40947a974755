package domain

import (
	"context"
	"time"
)

// Repositories (ports)

type SourceRepository interface {
	ListEnabled(ctx context.Context) ([]Source, error)
	Get(ctx context.Context, id int64) (Source, error)
	GetState(ctx context.Context, sourceID int64) (SourceState, error)
	UpdateState(ctx context.Context, st SourceState) error
}

type CityRepository interface {
	EnabledCities(ctx context.Context) ([]MonitoredCity, error)
}

type RawListingRepository interface {
	// InsertBatch inserts rows in bounded chunks; duplicate
	// (source_id, source_item_id) rows are silently dropped. Returns the
	// number of rows actually inserted.
	InsertBatch(ctx context.Context, rows []RawListing) (int64, error)
	ListUnprocessed(ctx context.Context, limit int) ([]RawListing, error)
}

type ListingRepository interface {
	// UpsertWithRaw upserts the canonical listing and marks the owning raw
	// row processed in the same transaction. IngestedAt is preserved across
	// re-upserts.
	UpsertWithRaw(ctx context.Context, l Listing, rawID string) (Listing, error)
	ListIngestedSince(ctx context.Context, since time.Time) ([]Listing, error)
}

type FilterRepository interface {
	// ListActive returns enabled filters joined with their users, ordered by
	// filter id ascending.
	ListActive(ctx context.Context) ([]FilterWithUser, error)
}

type NotificationRepository interface {
	Exists(ctx context.Context, userID, listingID string) (bool, error)
	// Record inserts the row; a primary-key conflict returns ErrConflict.
	Record(ctx context.Context, n NotificationSent) error
}

type WorkerStateRepository interface {
	Get(ctx context.Context, name string) (WorkerState, error)
	Upsert(ctx context.Context, ws WorkerState) error
}

// Connector (port)

// ListingCandidate is a source's raw-but-structured view of a listing as
// emitted by FetchNew, before normalization. SourceData preserves the
// upstream blob verbatim so Normalize never re-fetches.
type ListingCandidate struct {
	Source         string         `json:"source"`
	SourceItemID   string         `json:"source_item_id"`
	RawTitle       string         `json:"raw_title"`
	RawDescription string         `json:"raw_description,omitempty"`
	RawURL         string         `json:"raw_url"`
	RawPostedAt    *time.Time     `json:"raw_posted_at,omitempty"`
	SourceData     map[string]any `json:"source_data,omitempty"`
}

// ListingDraft is the connector's partially populated canonical listing.
type ListingDraft struct {
	Title        string
	Description  string
	Price        *float64
	Currency     string
	PricePeriod  string
	Bedrooms     *float64
	City         string
	Neighborhood string
	Street       string
	HouseNumber  string
	Floor        *int
	SquareMeters *float64
	PropertyType string
	Latitude     *float64
	Longitude    *float64
	ImageURL     string
	Tags         []string
	PostedAt     *time.Time
}

// FetchResult carries new candidates plus the cursor to persist. NextCursor
// may be non-nil even on error so connector-internal state (circuit breaker
// counters) survives failed runs.
type FetchResult struct {
	Candidates []ListingCandidate
	NextCursor []byte
}

// ConnectorStore is the read-only view a connector gets of operator data.
type ConnectorStore interface {
	EnabledCities(ctx context.Context) ([]MonitoredCity, error)
}

// Connector is the per-marketplace contract. Name must match Source.Name.
// Normalize is pure and total over candidates the connector itself emitted.
type Connector interface {
	Name() string
	FetchNew(ctx context.Context, cursor []byte, view ConnectorStore) (FetchResult, error)
	Normalize(c ListingCandidate) (ListingDraft, error)
}

// ChatTransport (port)

// SendResult reports a delivery attempt. ImageAvailable is false when a
// photo send failed for a non-retryable image reason (bad URL, dimensions),
// signalling the caller it may fall back to text.
type SendResult struct {
	Success        bool
	MessageID      int64
	Error          string
	Retryable      bool
	ImageAvailable bool
}

type ChatTransport interface {
	SendMessage(ctx context.Context, chatID int64, text, parseMode string) (SendResult, error)
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption, parseMode string) (SendResult, error)
}

// EventPublisher (port) emits best-effort canonical-listing events for
// downstream consumers; failures never poison the pipeline.
type EventPublisher interface {
	PublishListingUpserted(ctx context.Context, l Listing) error
}
