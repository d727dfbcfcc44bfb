package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultInvalidationChannel is the Redis channel carrying catalog invalidations.
	DefaultInvalidationChannel = "vidshop:catalog:invalidate"
)

// invalidationJSON is the wire format of an invalidation message.
type invalidationJSON struct {
	Source string `json:"source"`
	Scope  string `json:"scope"`
	SentAt string `json:"sent_at"`
}

// RedisInvalidationBus fans catalog invalidations out to every API replica.
// Each replica keeps its own in-process snapshot; the bus only carries the
// signal that the snapshot must be dropped.
type RedisInvalidationBus struct {
	client   *redis.Client
	channel  string
	instance string
}

// NewRedisInvalidationBus creates a bus publishing on channel.
// An empty channel selects DefaultInvalidationChannel.
func NewRedisInvalidationBus(client *redis.Client, channel string) *RedisInvalidationBus {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	return &RedisInvalidationBus{
		client:   client,
		channel:  channel,
		instance: uuid.NewString(),
	}
}

// Publish announces that scope (e.g. "catalog") changed.
func (b *RedisInvalidationBus) Publish(ctx context.Context, scope string) error {
	data, err := json.Marshal(invalidationJSON{
		Source: b.instance,
		Scope:  scope,
		SentAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("serialize invalidation: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe registers with Redis and returns once the subscription is confirmed,
// so no message published afterwards can be missed.
func (b *RedisInvalidationBus) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}
	return &Subscription{pubsub: ps, instance: b.instance}, nil
}

// Subscription delivers invalidations published by other replicas.
type Subscription struct {
	pubsub   *redis.PubSub
	instance string
}

// Listen calls handler for every invalidation sent by another instance.
// Messages published by this instance are skipped because the publisher
// already invalidated locally. Listen blocks until ctx is cancelled.
func (s *Subscription) Listen(ctx context.Context, handler func(scope string)) error {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("invalidation channel closed unexpectedly")
			}

			var inv invalidationJSON
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				slog.Warn("dropping malformed invalidation message",
					"channel", msg.Channel,
					"error", err,
				)
				continue
			}
			if inv.Source == s.instance {
				continue
			}
			handler(inv.Scope)
		}
	}
}

// Close releases the subscription.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
