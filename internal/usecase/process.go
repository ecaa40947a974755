package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rentifier/rentifier/internal/adapter/observability"
	"github.com/rentifier/rentifier/internal/domain"
	"github.com/rentifier/rentifier/internal/service/extract"
)

// DefaultProcessorBatchSize bounds one processor pass.
const DefaultProcessorBatchSize = 50

// ItemError pairs a raw row id with the failure that left it unprocessed.
type ItemError struct {
	RawID string `json:"raw_id"`
	Error string `json:"error"`
}

// ProcessSummary reports one processor run.
type ProcessSummary struct {
	Processed int         `json:"processed"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// ProcessorService normalizes raw candidates into canonical listings.
type ProcessorService struct {
	Raw      domain.RawListingRepository
	Listings domain.ListingRepository
	Sources  domain.SourceRepository
	Registry ConnectorRegistry
	Events   domain.EventPublisher
	Worker   domain.WorkerStateRepository

	BatchSize int
	Now       func() time.Time
}

// NewProcessorService wires the processor job. Events may be nil.
func NewProcessorService(raw domain.RawListingRepository, listings domain.ListingRepository, sources domain.SourceRepository, reg ConnectorRegistry, events domain.EventPublisher, worker domain.WorkerStateRepository, batchSize int) *ProcessorService {
	return &ProcessorService{
		Raw:       raw,
		Listings:  listings,
		Sources:   sources,
		Registry:  reg,
		Events:    events,
		Worker:    worker,
		BatchSize: batchSize,
	}
}

func (s *ProcessorService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Run handles one batch of unprocessed raw rows, oldest first. Item failures
// are isolated: the row stays unprocessed and the loop continues.
func (s *ProcessorService) Run(ctx context.Context) (ProcessSummary, error) {
	limit := s.BatchSize
	if limit <= 0 {
		limit = DefaultProcessorBatchSize
	}
	items, err := s.Raw.ListUnprocessed(ctx, limit)
	if err != nil {
		return ProcessSummary{}, err
	}

	var sum ProcessSummary
	names := map[int64]string{}
	for _, it := range items {
		if ctx.Err() != nil {
			slog.Warn("processor run cancelled", slog.Int("remaining", len(items)-sum.Processed-sum.Failed))
			break
		}
		if err := s.processItem(ctx, it, names); err != nil {
			slog.Error("process raw listing",
				slog.String("raw_id", it.ID),
				slog.Any("error", err))
			sum.Failed++
			sum.Errors = append(sum.Errors, ItemError{RawID: it.ID, Error: err.Error()})
			observability.ProcessedItemsTotal.WithLabelValues("error").Inc()
			continue
		}
		sum.Processed++
		observability.ProcessedItemsTotal.WithLabelValues("ok").Inc()
	}

	s.recordWorkerRun(ctx, sum)
	slog.Info("processor run complete",
		slog.Int("processed", sum.Processed),
		slog.Int("failed", sum.Failed))
	return sum, nil
}

func (s *ProcessorService) processItem(ctx context.Context, it domain.RawListing, names map[int64]string) error {
	var cand domain.ListingCandidate
	if err := json.Unmarshal(it.RawJSON, &cand); err != nil {
		return fmt.Errorf("op=process.decode: %w", err)
	}

	name, ok := names[it.SourceID]
	if !ok {
		src, err := s.Sources.Get(ctx, it.SourceID)
		if err != nil {
			return fmt.Errorf("op=process.source: %w", err)
		}
		name = src.Name
		names[it.SourceID] = name
	}

	conn, ok := s.Registry.Lookup(name)
	if !ok {
		// Row stays unprocessed; a later deploy with the connector picks it
		// up.
		return fmt.Errorf("op=process.connector: no connector for source %q: %w", name, domain.ErrNotFound)
	}

	draft, err := conn.Normalize(cand)
	if err != nil {
		return fmt.Errorf("op=process.normalize: %w", err)
	}
	ex := extract.All(cand.RawTitle, cand.RawDescription)

	listing := composeListing(it, cand, draft, ex)
	saved, err := s.Listings.UpsertWithRaw(ctx, listing, it.ID)
	if err != nil {
		return fmt.Errorf("op=process.upsert: %w", err)
	}

	if s.Events != nil {
		if err := s.Events.PublishListingUpserted(ctx, saved); err != nil {
			slog.Warn("publish listing event",
				slog.String("listing_id", saved.ID),
				slog.Any("error", err))
			observability.ListingEventsTotal.WithLabelValues("error").Inc()
		} else {
			observability.ListingEventsTotal.WithLabelValues("ok").Inc()
		}
	}
	return nil
}

// composeListing merges the connector draft with text extraction. Extraction
// wins for price, rooms and location when it produced a signal; structural
// fields come from the draft; tags are the union with extraction first.
func composeListing(it domain.RawListing, cand domain.ListingCandidate, draft domain.ListingDraft, ex extract.Result) domain.Listing {
	l := domain.Listing{
		SourceID:     it.SourceID,
		SourceItemID: it.SourceItemID,
		Title:        draft.Title,
		Description:  draft.Description,
		Price:        draft.Price,
		Currency:     draft.Currency,
		PricePeriod:  draft.PricePeriod,
		Bedrooms:     draft.Bedrooms,
		City:         draft.City,
		Neighborhood: draft.Neighborhood,
		Street:       draft.Street,
		HouseNumber:  draft.HouseNumber,
		Floor:        draft.Floor,
		SquareMeters: draft.SquareMeters,
		PropertyType: draft.PropertyType,
		Latitude:     draft.Latitude,
		Longitude:    draft.Longitude,
		ImageURL:     draft.ImageURL,
		URL:          cand.RawURL,
		PostedAt:     draft.PostedAt,
	}
	if l.Title == "" {
		l.Title = cand.RawTitle
	}
	if l.Description == "" {
		l.Description = cand.RawDescription
	}
	if l.PostedAt == nil {
		l.PostedAt = cand.RawPostedAt
	}

	if ex.Price != nil {
		amount := ex.Price.Amount
		l.Price = &amount
		l.Currency = ex.Price.Currency
		l.PricePeriod = ex.Price.Period
	}
	if ex.Rooms != nil {
		rooms := *ex.Rooms
		l.Bedrooms = &rooms
	}
	if ex.Location != nil {
		l.City = ex.Location.City
		if ex.Location.Neighborhood != "" {
			l.Neighborhood = ex.Location.Neighborhood
		}
	}
	l.Tags = mergeTags(ex.Tags, draft.Tags)
	if ex.Confidence > 0 {
		conf := ex.Confidence
		l.RelevanceScore = &conf
	}
	return l
}

func mergeTags(primary, secondary []string) []string {
	if len(primary) == 0 && len(secondary) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	out := make([]string, 0, len(primary)+len(secondary))
	for _, set := range [][]string{primary, secondary} {
		for _, t := range set {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func (s *ProcessorService) recordWorkerRun(ctx context.Context, sum ProcessSummary) {
	if s.Worker == nil {
		return
	}
	now := s.now()
	status := domain.RunStatusOK
	lastErr := ""
	if sum.Failed > 0 {
		status = domain.RunStatusError
		lastErr = sum.Errors[len(sum.Errors)-1].Error
	}
	if err := s.Worker.Upsert(ctx, domain.WorkerState{
		WorkerName: "process",
		LastRunAt:  &now,
		LastStatus: status,
		LastError:  lastErr,
	}); err != nil {
		slog.Error("record processor worker state", slog.Any("error", err))
	}
}
