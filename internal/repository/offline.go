package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/model"
)

type OfflineMessageRepository interface {
	Create(ctx context.Context, params model.CreateOfflineMessageParams) (*model.OfflineMessage, error)
	// FindPendingByRecipient returns undelivered messages in original send order.
	FindPendingByRecipient(ctx context.Context, recipientID string) ([]model.OfflineMessage, error)
	MarkDelivered(ctx context.Context, id string) error
	// DeleteDeliveredBefore prunes delivered messages past the retention window.
	DeleteDeliveredBefore(ctx context.Context, deliveredBefore time.Time) (int64, error)
	// CountUndeliveredBefore reports undelivered messages past the safety
	// bound. They are counted, not deleted; removal is a policy decision.
	CountUndeliveredBefore(ctx context.Context, storedBefore time.Time) (int, error)
}

type offlineMessageRepo struct {
	db *sqlx.DB
}

func NewOfflineMessageRepository(db *sqlx.DB) OfflineMessageRepository {
	return &offlineMessageRepo{db: db}
}

func (r *offlineMessageRepo) Create(ctx context.Context, params model.CreateOfflineMessageParams) (*model.OfflineMessage, error) {
	var msg model.OfflineMessage
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO offline_messages
			(id, sender_id, recipient_id, sender_name, payload, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.ID, params.SenderID, params.RecipientID, params.SenderName,
		params.Payload, params.SentAt)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *offlineMessageRepo) FindPendingByRecipient(ctx context.Context, recipientID string) ([]model.OfflineMessage, error) {
	var msgs []model.OfflineMessage
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM offline_messages
		WHERE recipient_id = $1 AND delivered = FALSE
		ORDER BY sent_at ASC
	`, recipientID)
	return msgs, err
}

func (r *offlineMessageRepo) MarkDelivered(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE offline_messages SET
			delivered = TRUE,
			delivered_at = $2
		WHERE id = $1 AND delivered = FALSE
	`, id, time.Now())
	return err
}

func (r *offlineMessageRepo) DeleteDeliveredBefore(ctx context.Context, deliveredBefore time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM offline_messages
		WHERE delivered = TRUE AND delivered_at < $1
	`, deliveredBefore)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *offlineMessageRepo) CountUndeliveredBefore(ctx context.Context, storedBefore time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM offline_messages
		WHERE delivered = FALSE AND stored_at < $1
	`, storedBefore)
	return count, err
}
