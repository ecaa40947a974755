package postgres

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/rentifier/rentifier/internal/domain"
)

// WorkerStateRepo persists per-job run bookkeeping; the notifier row is its
// watermark.
type WorkerStateRepo struct{ Pool PgxPool }

// NewWorkerStateRepo constructs a WorkerStateRepo with the given pool.
func NewWorkerStateRepo(p PgxPool) *WorkerStateRepo { return &WorkerStateRepo{Pool: p} }

// Get loads the state row for a worker name.
func (r *WorkerStateRepo) Get(ctx context.Context, name string) (domain.WorkerState, error) {
	tracer := otel.Tracer("repo.worker_states")
	ctx, span := tracer.Start(ctx, "worker_states.Get")
	defer span.End()
	q := `SELECT worker_name, last_run_at, COALESCE(last_status,''), COALESCE(last_error,'') FROM worker_states WHERE worker_name=$1`
	var ws domain.WorkerState
	if err := r.Pool.QueryRow(ctx, q, name).Scan(&ws.WorkerName, &ws.LastRunAt, &ws.LastStatus, &ws.LastError); err != nil {
		if isNoRows(err) {
			return domain.WorkerState{}, fmt.Errorf("op=worker_state.get: %w", domain.ErrNotFound)
		}
		return domain.WorkerState{}, fmt.Errorf("op=worker_state.get: %w", err)
	}
	return ws, nil
}

// Upsert writes the state row for a worker name.
func (r *WorkerStateRepo) Upsert(ctx context.Context, ws domain.WorkerState) error {
	tracer := otel.Tracer("repo.worker_states")
	ctx, span := tracer.Start(ctx, "worker_states.Upsert")
	defer span.End()
	q := `INSERT INTO worker_states (worker_name, last_run_at, last_status, last_error)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (worker_name) DO UPDATE SET
			last_run_at=EXCLUDED.last_run_at,
			last_status=EXCLUDED.last_status,
			last_error=EXCLUDED.last_error`
	if _, err := r.Pool.Exec(ctx, q, ws.WorkerName, ws.LastRunAt, ws.LastStatus, ws.LastError); err != nil {
		return fmt.Errorf("op=worker_state.upsert: %w", err)
	}
	return nil
}
