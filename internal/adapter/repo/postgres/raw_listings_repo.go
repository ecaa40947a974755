package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rentifier/rentifier/internal/domain"
)

// DefaultInsertChunkSize bounds rows per insert statement to stay within
// platform payload limits.
const DefaultInsertChunkSize = 500

const rawInsertColumns = 6

// RawListingRepo persists raw candidate blobs for the collector.
type RawListingRepo struct {
	Pool      PgxPool
	ChunkSize int
}

// NewRawListingRepo constructs a RawListingRepo with the default chunk size.
func NewRawListingRepo(p PgxPool) *RawListingRepo {
	return &RawListingRepo{Pool: p, ChunkSize: DefaultInsertChunkSize}
}

// InsertBatch inserts rows in bounded chunks. Duplicate
// (source_id, source_item_id) rows are dropped by ON CONFLICT DO NOTHING;
// the returned count reflects rows actually inserted.
func (r *RawListingRepo) InsertBatch(ctx context.Context, rows []domain.RawListing) (int64, error) {
	tracer := otel.Tracer("repo.raw_listings")
	ctx, span := tracer.Start(ctx, "raw_listings.InsertBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(rows)))
	if len(rows) == 0 {
		return 0, nil
	}
	chunkSize := r.ChunkSize
	if chunkSize <= 0 || chunkSize > DefaultInsertChunkSize {
		chunkSize = DefaultInsertChunkSize
	}
	var inserted int64
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		q, args := buildRawInsert(rows[start:end])
		tag, err := r.Pool.Exec(ctx, q, args...)
		if err != nil {
			return inserted, fmt.Errorf("op=raw.insert_batch: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// buildRawInsert renders one multi-row insert statement for a chunk.
func buildRawInsert(rows []domain.RawListing) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO listings_raw (id, source_id, source_item_id, url, raw_json, fetched_at) VALUES `)
	args := make([]any, 0, len(rows)*rawInsertColumns)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i * rawInsertColumns
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		id := row.ID
		if id == "" {
			id = ulid.Make().String()
		}
		args = append(args, id, row.SourceID, row.SourceItemID, row.URL, string(row.RawJSON), row.FetchedAt)
	}
	sb.WriteString(` ON CONFLICT (source_id, source_item_id) DO NOTHING`)
	return sb.String(), args
}

// ListUnprocessed returns up to limit raw rows with no processed_at, oldest
// fetched first.
func (r *RawListingRepo) ListUnprocessed(ctx context.Context, limit int) ([]domain.RawListing, error) {
	tracer := otel.Tracer("repo.raw_listings")
	ctx, span := tracer.Start(ctx, "raw_listings.ListUnprocessed")
	defer span.End()
	q := `SELECT id, source_id, source_item_id, url, raw_json, fetched_at, processed_at
		FROM listings_raw WHERE processed_at IS NULL ORDER BY fetched_at ASC LIMIT $1`
	rows, err := r.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=raw.list_unprocessed: %w", err)
	}
	defer rows.Close()
	var out []domain.RawListing
	for rows.Next() {
		var rl domain.RawListing
		var rawJSON string
		if err := rows.Scan(&rl.ID, &rl.SourceID, &rl.SourceItemID, &rl.URL, &rawJSON, &rl.FetchedAt, &rl.ProcessedAt); err != nil {
			return nil, fmt.Errorf("op=raw.list_unprocessed: %w", err)
		}
		rl.RawJSON = []byte(rawJSON)
		out = append(out, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=raw.list_unprocessed: %w", err)
	}
	return out, nil
}
