package postgres

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/rentifier/rentifier/internal/domain"
)

// CityRepo exposes the operator-curated monitored city list. It doubles as
// the read-only ConnectorStore view handed to connectors.
type CityRepo struct{ Pool PgxPool }

// NewCityRepo constructs a CityRepo with the given pool.
func NewCityRepo(p PgxPool) *CityRepo { return &CityRepo{Pool: p} }

// EnabledCities returns enabled cities in priority-descending, id-ascending
// order (the connector's round-robin order).
func (r *CityRepo) EnabledCities(ctx context.Context) ([]domain.MonitoredCity, error) {
	tracer := otel.Tracer("repo.cities")
	ctx, span := tracer.Start(ctx, "cities.EnabledCities")
	defer span.End()
	q := `SELECT id, city_name, city_code, enabled, priority FROM monitored_cities WHERE enabled ORDER BY priority DESC, id ASC`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=city.enabled: %w", err)
	}
	defer rows.Close()
	var out []domain.MonitoredCity
	for rows.Next() {
		var c domain.MonitoredCity
		if err := rows.Scan(&c.ID, &c.CityName, &c.CityCode, &c.Enabled, &c.Priority); err != nil {
			return nil, fmt.Errorf("op=city.enabled: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=city.enabled: %w", err)
	}
	return out, nil
}

// Upsert seeds a monitored city keyed by its source city code.
func (r *CityRepo) Upsert(ctx context.Context, c domain.MonitoredCity) error {
	tracer := otel.Tracer("repo.cities")
	ctx, span := tracer.Start(ctx, "cities.Upsert")
	defer span.End()
	q := `INSERT INTO monitored_cities (city_name, city_code, enabled, priority) VALUES ($1,$2,$3,$4)
		ON CONFLICT (city_code) DO UPDATE SET
			city_name=EXCLUDED.city_name,
			enabled=EXCLUDED.enabled,
			priority=EXCLUDED.priority`
	if _, err := r.Pool.Exec(ctx, q, c.CityName, c.CityCode, c.Enabled, c.Priority); err != nil {
		return fmt.Errorf("op=city.upsert: %w", err)
	}
	return nil
}
