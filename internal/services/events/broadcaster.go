// Package events relays turn events from workers to SSE clients over Redis
// pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/turn-engine/pkg/turn"
)

const channelPrefix = "turn-events:"

// Channel returns the pub/sub channel for a session's turn events.
func Channel(sessionKey string) string {
	return channelPrefix + sessionKey
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Publish sends one event to the session's channel.
func (b *Broadcaster) Publish(ctx context.Context, sessionKey string, ev turn.Event) error {
	channel := Channel(sessionKey)

	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", ev.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published", "channel", channel, "event_type", ev.Type)
	return nil
}

// Emitter returns a turn.Emitter that publishes to the session's channel. A
// failed publish is logged and does not stop the turn: nobody may be
// listening, and the state is still saved.
func (b *Broadcaster) Emitter(sessionKey string) turn.Emitter {
	return turn.EmitterFunc(func(ctx context.Context, ev turn.Event) error {
		_ = b.Publish(ctx, sessionKey, ev)
		return nil
	})
}

// Subscription is a live feed of one session's events as raw JSON.
type Subscription struct {
	pubsub *redis.PubSub
	ch     <-chan *redis.Message
}

// Subscribe listens on the session's channel. The subscription is confirmed
// before Subscribe returns, so events published afterwards are not missed.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionKey string) (*Subscription, error) {
	pubsub := b.redisClient.Subscribe(ctx, Channel(sessionKey))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Channel(sessionKey), err)
	}
	return &Subscription{pubsub: pubsub, ch: pubsub.Channel()}, nil
}

// Next blocks until the next event payload arrives. ok is false once the
// subscription is closed or ctx is done.
func (s *Subscription) Next(ctx context.Context) (payload string, ok bool) {
	select {
	case msg, open := <-s.ch:
		if !open {
			return "", false
		}
		return msg.Payload, true
	case <-ctx.Done():
		return "", false
	}
}

// Messages exposes the raw message channel for select loops.
func (s *Subscription) Messages() <-chan *redis.Message {
	return s.ch
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
