package postgres

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/rentifier/rentifier/internal/domain"
)

// FilterRepo reads filters owned by the external chat UI.
type FilterRepo struct{ Pool PgxPool }

// NewFilterRepo constructs a FilterRepo with the given pool.
func NewFilterRepo(p PgxPool) *FilterRepo { return &FilterRepo{Pool: p} }

// ListActive returns enabled filters joined with their users, ordered by
// filter id ascending (the matcher's tie-break order).
func (r *FilterRepo) ListActive(ctx context.Context) ([]domain.FilterWithUser, error) {
	tracer := otel.Tracer("repo.filters")
	ctx, span := tracer.Start(ctx, "filters.ListActive")
	defer span.End()
	q := `SELECT f.id, f.user_id, f.name,
			f.min_price, f.max_price, f.min_bedrooms, f.max_bedrooms,
			f.cities, f.neighborhoods, f.keywords, f.must_have_tags, f.exclude_tags,
			f.enabled, f.created_at,
			u.id, u.chat_id, u.display_name, u.created_at
		FROM filters f
		JOIN users u ON u.id = f.user_id
		WHERE f.enabled
		ORDER BY f.id ASC`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=filter.list_active: %w", err)
	}
	defer rows.Close()
	var out []domain.FilterWithUser
	for rows.Next() {
		var fw domain.FilterWithUser
		var cities, neighborhoods, keywords, mustHave, exclude *string
		err := rows.Scan(
			&fw.Filter.ID, &fw.Filter.UserID, &fw.Filter.Name,
			&fw.Filter.MinPrice, &fw.Filter.MaxPrice, &fw.Filter.MinBedrooms, &fw.Filter.MaxBedrooms,
			&cities, &neighborhoods, &keywords, &mustHave, &exclude,
			&fw.Filter.Enabled, &fw.Filter.CreatedAt,
			&fw.User.ID, &fw.User.ChatID, &fw.User.DisplayName, &fw.User.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("op=filter.list_active: %w", err)
		}
		fw.Filter.Cities = decodeStrings(cities)
		fw.Filter.Neighborhoods = decodeStrings(neighborhoods)
		fw.Filter.Keywords = decodeStrings(keywords)
		fw.Filter.MustHaveTags = decodeStrings(mustHave)
		fw.Filter.ExcludeTags = decodeStrings(exclude)
		out = append(out, fw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=filter.list_active: %w", err)
	}
	return out, nil
}
