package postgres

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/rentifier/rentifier/internal/domain"
)

// SourceRepo persists sources and their collector-owned state.
type SourceRepo struct{ Pool PgxPool }

// NewSourceRepo constructs a SourceRepo with the given pool.
func NewSourceRepo(p PgxPool) *SourceRepo { return &SourceRepo{Pool: p} }

// ListEnabled returns enabled sources ordered by id.
func (r *SourceRepo) ListEnabled(ctx context.Context) ([]domain.Source, error) {
	tracer := otel.Tracer("repo.sources")
	ctx, span := tracer.Start(ctx, "sources.ListEnabled")
	defer span.End()
	q := `SELECT id, name, enabled, created_at FROM sources WHERE enabled ORDER BY id`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=source.list_enabled: %w", err)
	}
	defer rows.Close()
	var out []domain.Source
	for rows.Next() {
		var s domain.Source
		if err := rows.Scan(&s.ID, &s.Name, &s.Enabled, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=source.list_enabled: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=source.list_enabled: %w", err)
	}
	return out, nil
}

// Get loads a source by id.
func (r *SourceRepo) Get(ctx context.Context, id int64) (domain.Source, error) {
	tracer := otel.Tracer("repo.sources")
	ctx, span := tracer.Start(ctx, "sources.Get")
	defer span.End()
	q := `SELECT id, name, enabled, created_at FROM sources WHERE id=$1`
	var s domain.Source
	if err := r.Pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.Name, &s.Enabled, &s.CreatedAt); err != nil {
		if isNoRows(err) {
			return domain.Source{}, fmt.Errorf("op=source.get: %w", domain.ErrNotFound)
		}
		return domain.Source{}, fmt.Errorf("op=source.get: %w", err)
	}
	return s, nil
}

// GetState loads the per-source collector state. A source that has never run
// returns a zero state with a nil cursor.
func (r *SourceRepo) GetState(ctx context.Context, sourceID int64) (domain.SourceState, error) {
	tracer := otel.Tracer("repo.sources")
	ctx, span := tracer.Start(ctx, "sources.GetState")
	defer span.End()
	q := `SELECT COALESCE("cursor",''), last_run_at, COALESCE(last_status,''), COALESCE(last_error,'') FROM source_states WHERE source_id=$1`
	st := domain.SourceState{SourceID: sourceID}
	var cursor string
	if err := r.Pool.QueryRow(ctx, q, sourceID).Scan(&cursor, &st.LastRunAt, &st.LastStatus, &st.LastError); err != nil {
		if isNoRows(err) {
			return domain.SourceState{SourceID: sourceID}, nil
		}
		return domain.SourceState{}, fmt.Errorf("op=source.get_state: %w", err)
	}
	if cursor != "" {
		st.Cursor = []byte(cursor)
	}
	return st, nil
}

// UpdateState upserts the per-source collector state row.
func (r *SourceRepo) UpdateState(ctx context.Context, st domain.SourceState) error {
	tracer := otel.Tracer("repo.sources")
	ctx, span := tracer.Start(ctx, "sources.UpdateState")
	defer span.End()
	q := `INSERT INTO source_states (source_id, "cursor", last_run_at, last_status, last_error)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (source_id) DO UPDATE SET
			"cursor"=EXCLUDED."cursor",
			last_run_at=EXCLUDED.last_run_at,
			last_status=EXCLUDED.last_status,
			last_error=EXCLUDED.last_error`
	_, err := r.Pool.Exec(ctx, q, st.SourceID, string(st.Cursor), st.LastRunAt, st.LastStatus, st.LastError)
	if err != nil {
		return fmt.Errorf("op=source.update_state: %w", err)
	}
	return nil
}

// Upsert seeds a source by name and returns its id.
func (r *SourceRepo) Upsert(ctx context.Context, name string, enabled bool) (int64, error) {
	tracer := otel.Tracer("repo.sources")
	ctx, span := tracer.Start(ctx, "sources.Upsert")
	defer span.End()
	q := `INSERT INTO sources (name, enabled, created_at) VALUES ($1,$2,$3)
		ON CONFLICT (name) DO UPDATE SET enabled=EXCLUDED.enabled
		RETURNING id`
	var id int64
	if err := r.Pool.QueryRow(ctx, q, name, enabled, time.Now().UTC()).Scan(&id); err != nil {
		return 0, fmt.Errorf("op=source.upsert: %w", err)
	}
	return id, nil
}
