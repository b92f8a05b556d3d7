// Package eventport publishes pipeline events on a Redis channel
package eventport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/core/ports/secondary"
	"gitlab.com/baseline-2025.net/internal/domain"
)

var _ secondary.Notifier = (*Publisher)(nil)

type Publisher struct {
	redisClient *redis.Client
	channel     string
	logger      primary.Logger
}

func NewPublisher(redisClient *redis.Client, channel string, logger primary.Logger) *Publisher {
	return &Publisher{
		redisClient: redisClient,
		channel:     channel,
		logger:      logger,
	}
}

func (p *Publisher) Notify(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.redisClient.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Error("Failed to publish event", "type", event.Type, "channel", p.channel, "error", err)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
