package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
)

const channelPrefix = "case-notifications:"

// Redis broadcasts through Redis pub/sub so several API processes share live delivery.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, logger *zap.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

func channelFor(userID string) string {
	return channelPrefix + userID
}

func (r *Redis) Publish(ctx context.Context, userID string, event domain.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return r.client.Publish(ctx, channelFor(userID), payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, userID string) (<-chan domain.NotificationEvent, error) {
	ps := r.client.Subscribe(ctx, channelFor(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", userID, err)
	}

	out := make(chan domain.NotificationEvent, subscriberBuffer)
	in := ps.Channel()
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var event domain.NotificationEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					r.logger.Warn("drop malformed notification payload", zap.String("user_id", userID), zap.Error(err))
					continue
				}
				select {
				case out <- event:
				default:
				}
			}
		}
	}()
	return out, nil
}
