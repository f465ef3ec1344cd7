package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/model"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/repository"
)

// Mailbox queues messages for recipients with no live session and serves
// them back, oldest first, on reconnect.
type Mailbox struct {
	repo repository.OfflineMessageRepository
}

func NewMailbox(repo repository.OfflineMessageRepository) *Mailbox {
	return &Mailbox{repo: repo}
}

func (m *Mailbox) Store(ctx context.Context, params model.CreateOfflineMessageParams) (*model.OfflineMessage, error) {
	msg, err := m.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("store offline message: %w", err)
	}

	log.Info().
		Str("messageId", msg.ID).
		Str("senderId", params.SenderID).
		Str("recipientId", params.RecipientID).
		Msg("message queued for offline delivery")

	return msg, nil
}

// Pending returns undelivered messages for a recipient in original send order.
func (m *Mailbox) Pending(ctx context.Context, recipientID string) ([]model.OfflineMessage, error) {
	msgs, err := m.repo.FindPendingByRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("find pending messages: %w", err)
	}
	return msgs, nil
}

func (m *Mailbox) MarkDelivered(ctx context.Context, id string) error {
	if err := m.repo.MarkDelivered(ctx, id); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	log.Debug().Str("messageId", id).Msg("offline message marked delivered")
	return nil
}
