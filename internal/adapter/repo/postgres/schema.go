package postgres

import (
	"context"
	"fmt"
)

// schemaStatements is the idempotent schema bootstrap executed by every job
// binary at startup. Statements run one at a time; pgx's extended protocol
// does not allow multi-statement strings.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sources (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS source_states (
		source_id BIGINT PRIMARY KEY REFERENCES sources(id) ON DELETE CASCADE,
		"cursor" TEXT,
		last_run_at TIMESTAMPTZ,
		last_status TEXT,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS monitored_cities (
		id BIGSERIAL PRIMARY KEY,
		city_name TEXT NOT NULL,
		city_code TEXT NOT NULL UNIQUE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		priority INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS listings_raw (
		id TEXT PRIMARY KEY,
		source_id BIGINT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		source_item_id TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		raw_json TEXT NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL,
		processed_at TIMESTAMPTZ,
		UNIQUE (source_id, source_item_id)
	)`,
	`CREATE INDEX IF NOT EXISTS listings_raw_unprocessed_idx
		ON listings_raw (processed_at) WHERE processed_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		source_id BIGINT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		source_item_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION,
		currency TEXT,
		price_period TEXT,
		bedrooms DOUBLE PRECISION,
		city TEXT,
		neighborhood TEXT,
		street TEXT,
		house_number TEXT,
		floor INT,
		square_meters DOUBLE PRECISION,
		property_type TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		image_url TEXT,
		tags TEXT,
		relevance_score DOUBLE PRECISION,
		url TEXT NOT NULL,
		posted_at TIMESTAMPTZ,
		ingested_at TIMESTAMPTZ NOT NULL,
		UNIQUE (source_id, source_item_id)
	)`,
	`CREATE INDEX IF NOT EXISTS listings_ingested_at_idx ON listings (ingested_at DESC)`,
	`CREATE INDEX IF NOT EXISTS listings_city_idx ON listings (city) WHERE city IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS listings_price_idx ON listings (price) WHERE price IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		chat_id BIGINT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS filters (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		min_price DOUBLE PRECISION,
		max_price DOUBLE PRECISION,
		min_bedrooms DOUBLE PRECISION,
		max_bedrooms DOUBLE PRECISION,
		cities TEXT,
		neighborhoods TEXT,
		keywords TEXT,
		must_have_tags TEXT,
		exclude_tags TEXT,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS filters_user_enabled_idx ON filters (user_id, enabled)`,
	`CREATE TABLE IF NOT EXISTS notifications_sent (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		filter_id TEXT REFERENCES filters(id) ON DELETE SET NULL,
		sent_at TIMESTAMPTZ NOT NULL,
		channel TEXT NOT NULL,
		PRIMARY KEY (user_id, listing_id)
	)`,
	`CREATE TABLE IF NOT EXISTS worker_states (
		worker_name TEXT PRIMARY KEY,
		last_run_at TIMESTAMPTZ,
		last_status TEXT,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS rate_limit_buckets (
		bucket_key TEXT PRIMARY KEY,
		capacity BIGINT NOT NULL,
		refill_rate DOUBLE PRECISION NOT NULL,
		tokens DOUBLE PRECISION NOT NULL,
		last_refill TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate applies the embedded schema. All statements are IF NOT EXISTS so
// re-running is a no-op.
func Migrate(ctx context.Context, pool PgxPool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("op=schema.migrate: %w", err)
		}
	}
	return nil
}
