package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	apperrors "github.com/martinsmelkis/bartering-app-backend-sub000/internal/errors"
	redisclient "github.com/martinsmelkis/bartering-app-backend-sub000/internal/redis"
)

// Notifier dispatches out-of-band notifications. Push notifications go to a
// redis channel consumed by the provider bridge; queued file-transfer notices
// wait in a redis list until the recipient's next connection.
type Notifier struct {
	redis *redisclient.Client
}

func NewNotifier(redis *redisclient.Client) *Notifier {
	return &Notifier{redis: redis}
}

// PushNotification is fire-and-forget: failures are logged, never surfaced
// to any client.
func (n *Notifier) PushNotification(ctx context.Context, userID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to marshal push payload")
		return
	}

	if err := n.redis.Publish(ctx, redisclient.PushChannel(userID), data).Err(); err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to publish push notification")
		return
	}

	log.Debug().Str("userId", userID).Msg("push notification dispatched")
}

// QueuePendingFile appends a file-transfer notice for delivery on the user's
// next connection.
func (n *Notifier) QueuePendingFile(ctx context.Context, userID string, notice json.RawMessage) error {
	if err := n.redis.RPush(ctx, redisclient.PendingFilesKey(userID), []byte(notice)).Err(); err != nil {
		return apperrors.External("redis", err)
	}
	return nil
}

// DrainPendingFiles removes and returns all queued file notices for a user in
// arrival order.
func (n *Notifier) DrainPendingFiles(ctx context.Context, userID string) ([]json.RawMessage, error) {
	key := redisclient.PendingFilesKey(userID)

	pipe := n.redis.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperrors.External("redis", err)
	}

	raw := rangeCmd.Val()
	notices := make([]json.RawMessage, 0, len(raw))
	for _, item := range raw {
		notices = append(notices, json.RawMessage(item))
	}
	return notices, nil
}
