package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel shared by all instances.
const DefaultRedisChannel = "lockbox:realtime"

// RedisBroker fans room events out across instances through redis pub/sub.
// Like the rooms themselves it is at most once: an instance that is not
// subscribed when an event is published never sees it.
type RedisBroker struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

func NewRedisBroker(client redis.UniversalClient, logger *slog.Logger) *RedisBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{client: client, channel: DefaultRedisChannel, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("realtime: encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("realtime: redis publish: %w", err)
	}
	return nil
}

// Run subscribes and hands every received event to hub until ctx is done.
// ready, if not nil, is closed once the subscription is confirmed.
func (b *RedisBroker) Run(ctx context.Context, hub *Hub, ready chan<- struct{}) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: redis subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	b.logger.Info("realtime broker subscribed", "channel", b.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("realtime broker: bad payload", "err", err)
				continue
			}
			hub.Broadcast(ev)
		}
	}
}
