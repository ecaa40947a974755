package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rentifier/rentifier/internal/domain"
)

// ListingRepo persists canonical listings.
type ListingRepo struct{ Pool PgxPool }

// NewListingRepo constructs a ListingRepo with the given pool.
func NewListingRepo(p PgxPool) *ListingRepo { return &ListingRepo{Pool: p} }

// UpsertWithRaw upserts the canonical listing and marks the owning raw row
// processed inside one transaction: either both land or neither does. On
// conflict all mutable fields are replaced; id and ingested_at keep their
// first-seen values.
func (r *ListingRepo) UpsertWithRaw(ctx context.Context, l domain.Listing, rawID string) (domain.Listing, error) {
	tracer := otel.Tracer("repo.listings")
	ctx, span := tracer.Start(ctx, "listings.UpsertWithRaw")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.sql.table", "listings"),
		attribute.String("source_item_id", l.SourceItemID),
	)

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Listing{}, fmt.Errorf("op=listing.upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := l.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	ingestedAt := l.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = now
	}

	q := `INSERT INTO listings (
			id, source_id, source_item_id, title, description,
			price, currency, price_period, bedrooms,
			city, neighborhood, street, house_number,
			floor, square_meters, property_type, latitude, longitude,
			image_url, tags, relevance_score, url, posted_at, ingested_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		ON CONFLICT (source_id, source_item_id) DO UPDATE SET
			title=EXCLUDED.title,
			description=EXCLUDED.description,
			price=EXCLUDED.price,
			currency=EXCLUDED.currency,
			price_period=EXCLUDED.price_period,
			bedrooms=EXCLUDED.bedrooms,
			city=EXCLUDED.city,
			neighborhood=EXCLUDED.neighborhood,
			street=EXCLUDED.street,
			house_number=EXCLUDED.house_number,
			floor=EXCLUDED.floor,
			square_meters=EXCLUDED.square_meters,
			property_type=EXCLUDED.property_type,
			latitude=EXCLUDED.latitude,
			longitude=EXCLUDED.longitude,
			image_url=EXCLUDED.image_url,
			tags=EXCLUDED.tags,
			relevance_score=EXCLUDED.relevance_score,
			url=EXCLUDED.url,
			posted_at=EXCLUDED.posted_at
		RETURNING id, ingested_at`
	row := tx.QueryRow(ctx, q,
		id, l.SourceID, l.SourceItemID, l.Title, l.Description,
		l.Price, nullStr(l.Currency), nullStr(l.PricePeriod), l.Bedrooms,
		nullStr(l.City), nullStr(l.Neighborhood), nullStr(l.Street), nullStr(l.HouseNumber),
		l.Floor, l.SquareMeters, nullStr(l.PropertyType), l.Latitude, l.Longitude,
		nullStr(l.ImageURL), encodeStrings(l.Tags), l.RelevanceScore, l.URL, l.PostedAt, ingestedAt,
	)
	if err := row.Scan(&l.ID, &l.IngestedAt); err != nil {
		return domain.Listing{}, fmt.Errorf("op=listing.upsert: %w", err)
	}

	if rawID != "" {
		tag, err := tx.Exec(ctx, `UPDATE listings_raw SET processed_at=$2 WHERE id=$1`, rawID, now)
		if err != nil {
			return domain.Listing{}, fmt.Errorf("op=listing.mark_processed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Rolling back keeps the listing and the raw row in step.
			return domain.Listing{}, fmt.Errorf("op=listing.mark_processed: raw row %s: %w", rawID, domain.ErrNotFound)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Listing{}, fmt.Errorf("op=listing.upsert: %w", err)
	}
	return l, nil
}

// ListIngestedSince returns listings ingested strictly after since, newest
// first (the notifier hot path).
func (r *ListingRepo) ListIngestedSince(ctx context.Context, since time.Time) ([]domain.Listing, error) {
	tracer := otel.Tracer("repo.listings")
	ctx, span := tracer.Start(ctx, "listings.ListIngestedSince")
	defer span.End()
	q := `SELECT id, source_id, source_item_id, title, description,
			price, currency, price_period, bedrooms,
			city, neighborhood, street, house_number,
			floor, square_meters, property_type, latitude, longitude,
			image_url, tags, relevance_score, url, posted_at, ingested_at
		FROM listings WHERE ingested_at > $1 ORDER BY ingested_at DESC`
	rows, err := r.Pool.Query(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("op=listing.list_since: %w", err)
	}
	defer rows.Close()
	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("op=listing.list_since: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=listing.list_since: %w", err)
	}
	return out, nil
}

func scanListing(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	var currency, period, city, neighborhood, street, houseNumber, propertyType, imageURL, tags *string
	err := row.Scan(
		&l.ID, &l.SourceID, &l.SourceItemID, &l.Title, &l.Description,
		&l.Price, &currency, &period, &l.Bedrooms,
		&city, &neighborhood, &street, &houseNumber,
		&l.Floor, &l.SquareMeters, &propertyType, &l.Latitude, &l.Longitude,
		&imageURL, &tags, &l.RelevanceScore, &l.URL, &l.PostedAt, &l.IngestedAt,
	)
	if err != nil {
		return domain.Listing{}, err
	}
	l.Currency = derefStr(currency)
	l.PricePeriod = derefStr(period)
	l.City = derefStr(city)
	l.Neighborhood = derefStr(neighborhood)
	l.Street = derefStr(street)
	l.HouseNumber = derefStr(houseNumber)
	l.PropertyType = derefStr(propertyType)
	l.ImageURL = derefStr(imageURL)
	l.Tags = decodeStrings(tags)
	return l, nil
}
