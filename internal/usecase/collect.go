package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rentifier/rentifier/internal/adapter/observability"
	"github.com/rentifier/rentifier/internal/domain"
)

// ConnectorRegistry resolves a source name to its connector.
type ConnectorRegistry interface {
	Lookup(name string) (domain.Connector, bool)
}

// SourceRunError pairs a source name with the failure it hit this run.
type SourceRunError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// CollectSummary reports one collector run. One source's failure never
// aborts the run, so a summary can carry both successes and errors.
type CollectSummary struct {
	TotalSources int              `json:"total_sources"`
	Success      int              `json:"success"`
	Errors       int              `json:"errors"`
	Skipped      int              `json:"skipped"`
	TotalFetched int64            `json:"total_fetched"`
	ErrorDetails []SourceRunError `json:"error_details,omitempty"`
}

// CollectorService runs one collection pass over every enabled source.
type CollectorService struct {
	Sources  domain.SourceRepository
	Cities   domain.CityRepository
	Raw      domain.RawListingRepository
	Registry ConnectorRegistry
	Worker   domain.WorkerStateRepository
	Now      func() time.Time
}

// NewCollectorService wires the collector job.
func NewCollectorService(sources domain.SourceRepository, cities domain.CityRepository, raw domain.RawListingRepository, reg ConnectorRegistry, worker domain.WorkerStateRepository) *CollectorService {
	return &CollectorService{Sources: sources, Cities: cities, Raw: raw, Registry: reg, Worker: worker}
}

func (s *CollectorService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Run fetches new candidates from every enabled source. Sources are
// isolated: a failing source records an error state and the loop moves on.
// Returns an error only when the source list itself cannot be loaded.
func (s *CollectorService) Run(ctx context.Context) (CollectSummary, error) {
	sources, err := s.Sources.ListEnabled(ctx)
	if err != nil {
		return CollectSummary{}, err
	}
	sum := CollectSummary{TotalSources: len(sources)}

	for _, src := range sources {
		if ctx.Err() != nil {
			slog.Warn("collector run cancelled", slog.Int("remaining", sum.TotalSources-sum.Success-sum.Errors-sum.Skipped))
			break
		}
		s.runSource(ctx, src, &sum)
	}

	s.recordWorkerRun(ctx, sum)
	slog.Info("collector run complete",
		slog.Int("total_sources", sum.TotalSources),
		slog.Int("success", sum.Success),
		slog.Int("errors", sum.Errors),
		slog.Int("skipped", sum.Skipped),
		slog.Int64("total_fetched", sum.TotalFetched))
	return sum, nil
}

func (s *CollectorService) runSource(ctx context.Context, src domain.Source, sum *CollectSummary) {
	log := slog.With(slog.String("source", src.Name))

	conn, ok := s.Registry.Lookup(src.Name)
	if !ok {
		log.Warn("no connector registered for enabled source, skipping")
		sum.Skipped++
		observability.SourceRunsTotal.WithLabelValues(src.Name, "skipped").Inc()
		return
	}

	st, err := s.Sources.GetState(ctx, src.ID)
	if err != nil {
		log.Error("load source state", slog.Any("error", err))
		s.fail(sum, src.Name, err)
		return
	}

	start := time.Now()
	fr, ferr := conn.FetchNew(ctx, st.Cursor, s.Cities)
	observability.SourceFetchDuration.WithLabelValues(src.Name).Observe(time.Since(start).Seconds())
	now := s.now()

	if ferr != nil {
		// The connector may hand back an updated cursor even on failure so
		// breaker counters persist; the positional part never advances here.
		cursor := st.Cursor
		if fr.NextCursor != nil {
			cursor = fr.NextCursor
		}
		uerr := s.Sources.UpdateState(ctx, domain.SourceState{
			SourceID:   src.ID,
			Cursor:     cursor,
			LastRunAt:  &now,
			LastStatus: domain.RunStatusError,
			LastError:  ferr.Error(),
		})
		if uerr != nil {
			log.Error("record error state", slog.Any("error", uerr))
		}
		log.Error("source fetch failed", slog.Any("error", ferr))
		s.fail(sum, src.Name, ferr)
		return
	}

	inserted, err := s.Raw.InsertBatch(ctx, s.toRawRows(src.ID, fr.Candidates, now))
	if err != nil {
		// Cursor stays put so the next run re-fetches; dedup absorbs the
		// replay.
		log.Error("insert raw listings", slog.Any("error", err))
		uerr := s.Sources.UpdateState(ctx, domain.SourceState{
			SourceID:   src.ID,
			Cursor:     st.Cursor,
			LastRunAt:  &now,
			LastStatus: domain.RunStatusError,
			LastError:  err.Error(),
		})
		if uerr != nil {
			log.Error("record error state", slog.Any("error", uerr))
		}
		s.fail(sum, src.Name, err)
		return
	}

	if err := s.Sources.UpdateState(ctx, domain.SourceState{
		SourceID:   src.ID,
		Cursor:     fr.NextCursor,
		LastRunAt:  &now,
		LastStatus: domain.RunStatusOK,
	}); err != nil {
		// Raw rows are already durable; a stale cursor just re-fetches next
		// run.
		log.Error("record ok state", slog.Any("error", err))
		s.fail(sum, src.Name, err)
		return
	}

	sum.Success++
	sum.TotalFetched += int64(len(fr.Candidates))
	observability.SourceRunsTotal.WithLabelValues(src.Name, "ok").Inc()
	observability.RawListingsInsertedTotal.WithLabelValues(src.Name).Add(float64(inserted))
	log.Info("source fetch complete",
		slog.Int("fetched", len(fr.Candidates)),
		slog.Int64("inserted", inserted))
}

func (s *CollectorService) fail(sum *CollectSummary, source string, err error) {
	sum.Errors++
	sum.ErrorDetails = append(sum.ErrorDetails, SourceRunError{Source: source, Error: err.Error()})
	observability.SourceRunsTotal.WithLabelValues(source, "error").Inc()
}

func (s *CollectorService) toRawRows(sourceID int64, cands []domain.ListingCandidate, fetchedAt time.Time) []domain.RawListing {
	rows := make([]domain.RawListing, 0, len(cands))
	for _, c := range cands {
		blob, err := json.Marshal(c)
		if err != nil {
			slog.Error("marshal candidate", slog.String("source_item_id", c.SourceItemID), slog.Any("error", err))
			continue
		}
		rows = append(rows, domain.RawListing{
			SourceID:     sourceID,
			SourceItemID: c.SourceItemID,
			URL:          c.RawURL,
			RawJSON:      blob,
			FetchedAt:    fetchedAt,
		})
	}
	return rows
}

func (s *CollectorService) recordWorkerRun(ctx context.Context, sum CollectSummary) {
	if s.Worker == nil {
		return
	}
	now := s.now()
	status := domain.RunStatusOK
	lastErr := ""
	if sum.Errors > 0 {
		status = domain.RunStatusError
		lastErr = sum.ErrorDetails[len(sum.ErrorDetails)-1].Error
	}
	if err := s.Worker.Upsert(ctx, domain.WorkerState{
		WorkerName: "collect",
		LastRunAt:  &now,
		LastStatus: status,
		LastError:  lastErr,
	}); err != nil {
		slog.Error("record collector worker state", slog.Any("error", err))
	}
}
