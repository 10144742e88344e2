package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// envelope is the Redis wire form of a message
type envelope struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// RedisBus publishes messages over Redis pub/sub so that every instance
// sees changes made through any other instance
type RedisBus struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// NewRedisBus creates a new Redis-backed message bus
func NewRedisBus(client *redis.Client, prefix string, log *zap.Logger) *RedisBus {
	return &RedisBus{client: client, prefix: prefix, log: log.Named("redis-bus")}
}

func (b *RedisBus) channel(topic string) string {
	return b.prefix + topic
}

// Publish sends message to topic
func (b *RedisBus) Publish(ctx context.Context, topic string, message outbound.Message) error {
	data, err := json.Marshal(envelope(message))
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(topic), data).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe starts a goroutine that feeds topic messages to handler until
// the returned function is called or ctx ends
func (b *RedisBus) Subscribe(ctx context.Context, topic string, handler outbound.MessageHandler) (func(), error) {
	pubsub := b.client.Subscribe(ctx, b.channel(topic))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warn("Dropping malformed message", zap.String("topic", topic), zap.Error(err))
					continue
				}
				if err := handler(ctx, outbound.Message(env)); err != nil {
					b.log.Error("Failed to handle message",
						zap.String("topic", topic),
						zap.String("type", env.Type),
						zap.Error(err),
					)
				}
			}
		}
	}()

	return cancel, nil
}
