package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/model"
)

func TestMailbox(t *testing.T) {
	ctx := context.Background()

	t.Run("store returns the persisted message", func(t *testing.T) {
		params := model.CreateOfflineMessageParams{
			ID:          "msg-1",
			SenderID:    "alice",
			RecipientID: "bob",
			Payload:     "ciphertext",
			SentAt:      time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		}
		stored := &model.OfflineMessage{ID: "msg-1", SenderID: "alice", RecipientID: "bob"}

		repo := new(mockOfflineRepo)
		repo.On("Create", ctx, params).Return(stored, nil)

		m := NewMailbox(repo)
		msg, err := m.Store(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, stored, msg)
	})

	t.Run("store surfaces persistence failures", func(t *testing.T) {
		repo := new(mockOfflineRepo)
		repo.On("Create", ctx, mock.Anything).Return(nil, assert.AnError)

		m := NewMailbox(repo)
		_, err := m.Store(ctx, model.CreateOfflineMessageParams{ID: "msg-1"})
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("pending passes through in send order", func(t *testing.T) {
		msgs := []model.OfflineMessage{{ID: "msg-1"}, {ID: "msg-2"}}
		repo := new(mockOfflineRepo)
		repo.On("FindPendingByRecipient", ctx, "bob").Return(msgs, nil)

		m := NewMailbox(repo)
		got, err := m.Pending(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, msgs, got)
	})

	t.Run("mark delivered delegates to the store", func(t *testing.T) {
		repo := new(mockOfflineRepo)
		repo.On("MarkDelivered", ctx, "msg-1").Return(nil)

		m := NewMailbox(repo)
		assert.NoError(t, m.MarkDelivered(ctx, "msg-1"))
		repo.AssertExpectations(t)
	})
}
