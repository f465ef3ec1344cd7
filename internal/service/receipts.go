package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/martinsmelkis/bartering-app-backend-sub000/internal/errors"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/model"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/repository"
)

// Receipts tracks per-message delivery status. Status moves forward only;
// the store-level rank guard makes out-of-order updates no-ops, so this
// service can be called from concurrent relay and flush paths freely.
type Receipts struct {
	repo repository.ReceiptRepository
}

func NewReceipts(repo repository.ReceiptRepository) *Receipts {
	return &Receipts{repo: repo}
}

// Track records or advances a receipt. Idempotent for ids it has not seen.
func (r *Receipts) Track(ctx context.Context, messageID, recipientID, senderID string, status model.ReceiptStatus) error {
	if !status.Valid() {
		return apperrors.InvalidInput("status", string(status))
	}

	if err := r.repo.Upsert(ctx, messageID, recipientID, senderID, status); err != nil {
		return fmt.Errorf("upsert receipt: %w", err)
	}

	log.Debug().
		Str("messageId", messageID).
		Str("recipientId", recipientID).
		Str("status", string(status)).
		Msg("receipt tracked")
	return nil
}

func (r *Receipts) Status(ctx context.Context, messageID, recipientID string) (*model.DeliveryReceipt, error) {
	receipt, err := r.repo.Find(ctx, messageID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("find receipt: %w", err)
	}
	return receipt, nil
}
