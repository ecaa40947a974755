package postgres

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/rentifier/rentifier/internal/domain"
)

// NotificationRepo records delivered notifications. The table's primary key
// on (user_id, listing_id) is the authoritative at-most-once guard.
type NotificationRepo struct{ Pool PgxPool }

// NewNotificationRepo constructs a NotificationRepo with the given pool.
func NewNotificationRepo(p PgxPool) *NotificationRepo { return &NotificationRepo{Pool: p} }

// Exists reports whether a (user, listing) pair was already notified.
func (r *NotificationRepo) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	tracer := otel.Tracer("repo.notifications")
	ctx, span := tracer.Start(ctx, "notifications.Exists")
	defer span.End()
	q := `SELECT EXISTS (SELECT 1 FROM notifications_sent WHERE user_id=$1 AND listing_id=$2)`
	var exists bool
	if err := r.Pool.QueryRow(ctx, q, userID, listingID).Scan(&exists); err != nil {
		return false, fmt.Errorf("op=notification.exists: %w", err)
	}
	return exists, nil
}

// Record inserts a sent-notification row. A primary-key conflict is an
// expected outcome, reported as domain.ErrConflict, not a failure.
func (r *NotificationRepo) Record(ctx context.Context, n domain.NotificationSent) error {
	tracer := otel.Tracer("repo.notifications")
	ctx, span := tracer.Start(ctx, "notifications.Record")
	defer span.End()
	q := `INSERT INTO notifications_sent (user_id, listing_id, filter_id, sent_at, channel)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id, listing_id) DO NOTHING`
	tag, err := r.Pool.Exec(ctx, q, n.UserID, n.ListingID, n.FilterID, n.SentAt, n.Channel)
	if err != nil {
		return fmt.Errorf("op=notification.record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=notification.record: %w", domain.ErrConflict)
	}
	return nil
}
