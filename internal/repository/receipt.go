package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/model"
)

type ReceiptRepository interface {
	// Upsert creates or advances the receipt for (messageID, recipientID).
	// The status rank guard in the update arm makes regression a no-op at the
	// store level, so concurrent upserts cannot move a receipt backwards.
	Upsert(ctx context.Context, messageID, recipientID, senderID string, status model.ReceiptStatus) error
	Find(ctx context.Context, messageID, recipientID string) (*model.DeliveryReceipt, error)
	DeleteOlderThan(ctx context.Context, receivedBefore time.Time) (int64, error)
}

type receiptRepo struct {
	db *sqlx.DB
}

func NewReceiptRepository(db *sqlx.DB) ReceiptRepository {
	return &receiptRepo{db: db}
}

func (r *receiptRepo) Upsert(ctx context.Context, messageID, recipientID, senderID string, status model.ReceiptStatus) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_receipts
			(message_id, recipient_id, sender_id, status, status_changed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (message_id, recipient_id) DO UPDATE SET
			status = EXCLUDED.status,
			status_changed_at = EXCLUDED.status_changed_at
		WHERE CASE delivery_receipts.status
				WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 0
			END
			< CASE EXCLUDED.status
				WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 0
			END
	`, messageID, recipientID, senderID, status, time.Now())
	return err
}

func (r *receiptRepo) Find(ctx context.Context, messageID, recipientID string) (*model.DeliveryReceipt, error) {
	var receipt model.DeliveryReceipt
	err := r.db.GetContext(ctx, &receipt, `
		SELECT * FROM delivery_receipts
		WHERE message_id = $1 AND recipient_id = $2
	`, messageID, recipientID)
	return HandleNotFound(&receipt, err)
}

func (r *receiptRepo) DeleteOlderThan(ctx context.Context, receivedBefore time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM delivery_receipts WHERE received_at < $1
	`, receivedBefore)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
