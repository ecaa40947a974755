// Package domain holds the core entities and ports of the listings pipeline.
package domain

import (
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
)

// Run statuses recorded in source_states / worker_states.
const (
	RunStatusOK    = "ok"
	RunStatusError = "error"
)

// WorkerNotify is the worker_states row name used as the notifier watermark.
const WorkerNotify = "notify"

// Source identifies a marketplace integration. Rows are operator-seeded and
// never deleted while listings reference them.
type Source struct {
	ID        int64
	Name      string
	Enabled   bool
	CreatedAt time.Time
}

// SourceState is the collector-owned per-source row. Cursor is opaque bytes
// produced and consumed only by the owning connector.
type SourceState struct {
	SourceID   int64
	Cursor     []byte
	LastRunAt  *time.Time
	LastStatus string
	LastError  string
}

// MonitoredCity is an operator-curated city the reference connector iterates.
type MonitoredCity struct {
	ID       int64
	CityName string
	CityCode string
	Enabled  bool
	Priority int
}

// RawListing is a candidate blob persisted by the collector before
// normalization. (SourceID, SourceItemID) is unique; duplicate inserts are
// silently dropped.
type RawListing struct {
	ID           string
	SourceID     int64
	SourceItemID string
	URL          string
	RawJSON      []byte
	FetchedAt    time.Time
	ProcessedAt  *time.Time
}

// Listing is the canonical, deduplicated row. Upserts replace all mutable
// fields but preserve IngestedAt.
type Listing struct {
	ID             string
	SourceID       int64
	SourceItemID   string
	Title          string
	Description    string
	Price          *float64
	Currency       string
	PricePeriod    string
	Bedrooms       *float64
	City           string
	Neighborhood   string
	Street         string
	HouseNumber    string
	Floor          *int
	SquareMeters   *float64
	PropertyType   string
	Latitude       *float64
	Longitude      *float64
	ImageURL       string
	Tags           []string
	RelevanceScore *float64
	URL            string
	PostedAt       *time.Time
	IngestedAt     time.Time
}

// HasTag reports whether the listing carries the given tag.
func (l Listing) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// User is owned by the external chat UI; the pipeline only reads it.
type User struct {
	ID          string
	ChatID      int64
	DisplayName string
	CreatedAt   time.Time
}

// Filter is a user's saved search. Nil/empty dimensions mean "no constraint".
type Filter struct {
	ID            string
	UserID        string
	Name          string
	MinPrice      *float64
	MaxPrice      *float64
	MinBedrooms   *float64
	MaxBedrooms   *float64
	Cities        []string
	Neighborhoods []string
	Keywords      []string
	MustHaveTags  []string
	ExcludeTags   []string
	Enabled       bool
	CreatedAt     time.Time
}

// FilterWithUser joins a filter with its owning user for notifier fan-out.
type FilterWithUser struct {
	Filter Filter
	User   User
}

// NotificationSent records a delivered notification. The (UserID, ListingID)
// primary key caps delivery at one per pair, ever.
type NotificationSent struct {
	UserID    string
	ListingID string
	FilterID  *string
	SentAt    time.Time
	Channel   string
}

// WorkerState carries per-job run bookkeeping; the notifier row doubles as
// its watermark.
type WorkerState struct {
	WorkerName string
	LastRunAt  *time.Time
	LastStatus string
	LastError  string
}
