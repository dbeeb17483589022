package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisPublisher struct {
	rdb    redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewRedis creates and verifies a Redis client and publishes events with PUBLISH.
func NewRedis(ctx context.Context, redisURL, prefix string, logger *zap.Logger) (Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newRedisPublisher(rdb, prefix, logger), nil
}

func newRedisPublisher(rdb redis.UniversalClient, prefix string, logger *zap.Logger) *redisPublisher {
	return &redisPublisher{rdb: rdb, prefix: prefix, logger: logger}
}

func (p *redisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := encode(event)
	if err != nil {
		return err
	}

	channel := Subject(p.prefix, event)
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}

	p.logger.Debug("published event", zap.String("channel", channel), zap.String("posting_id", event.PostingID))
	return nil
}

func (p *redisPublisher) Close() error {
	return p.rdb.Close()
}
