package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// PushChannel is the pubsub channel the push-notification dispatcher publishes
// to for a user. An out-of-process provider bridge consumes it.
func PushChannel(userID string) string {
	return fmt.Sprintf("push:%s", userID)
}

// PendingFilesKey is the list of queued file-transfer notices awaiting a
// user's next connection.
func PendingFilesKey(userID string) string {
	return fmt.Sprintf("files:pending:%s", userID)
}
