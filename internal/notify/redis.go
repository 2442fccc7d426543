package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrInvalidRedisURL indicates the redis connection string cannot be parsed.
var ErrInvalidRedisURL = errors.New("invalid redis url")

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRedisURL, err)
	}
	return redis.NewClient(options), nil
}

// RedisPublisher publishes topic payloads on the redis channel named after the topic.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps a redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends payload to the topic channel.
func (publisher *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := publisher.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// RedisRelay forwards redis channel messages matching a topic prefix into a Hub,
// so every instance serves the notifications published by any instance.
type RedisRelay struct {
	client      *redis.Client
	hub         *Hub
	topicPrefix string
	logger      *zap.Logger
}

// NewRedisRelay wires a relay for channels starting with topicPrefix.
func NewRedisRelay(client *redis.Client, hub *Hub, topicPrefix string, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, hub: hub, topicPrefix: topicPrefix, logger: logger}
}

// Run relays messages until ctx is canceled.
func (relay *RedisRelay) Run(ctx context.Context) error {
	pubsub := relay.client.PSubscribe(ctx, relay.topicPrefix+"*")
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	relay.logger.Info("redis relay subscribed", zap.String("pattern", relay.topicPrefix+"*"))
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-messages:
			if !ok {
				return nil
			}
			if err := relay.hub.Publish(ctx, message.Channel, []byte(message.Payload)); err != nil {
				relay.logger.Warn("relay publish failed", zap.String("topic", message.Channel), zap.Error(err))
			}
		}
	}
}
