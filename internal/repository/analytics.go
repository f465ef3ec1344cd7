package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// AnalyticsRepository persists response-latency samples for the analytics
// collaborator. Writes are best-effort and always dispatched off the relay path.
type AnalyticsRepository interface {
	RecordResponseTime(ctx context.Context, userID, partnerID string, receivedAt, respondedAt time.Time) error
}

type analyticsRepo struct {
	db *sqlx.DB
}

func NewAnalyticsRepository(db *sqlx.DB) AnalyticsRepository {
	return &analyticsRepo{db: db}
}

func (r *analyticsRepo) RecordResponseTime(ctx context.Context, userID, partnerID string, receivedAt, respondedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO response_time_samples
			(user_id, partner_id, received_at, responded_at, response_ms)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, partnerID, receivedAt, respondedAt,
		respondedAt.Sub(receivedAt).Milliseconds())
	return err
}
