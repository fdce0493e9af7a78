package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-appliance-care/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// RedisBroker fans events out through a Redis channel so every API
// replica delivers them to its own hub.
type RedisBroker struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
	log     *slog.Logger
}

func NewRedisBroker(rdb *redis.Client, hub *Hub, log *slog.Logger) *RedisBroker {
	return &RedisBroker{rdb: rdb, hub: hub, channel: redisx.ChannelRealtime, log: log}
}

// Publish sends ev to all replicas. When Redis is unreachable the event is
// still delivered to local subscribers.
func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		_ = b.hub.Publish(ctx, ev)
		return fmt.Errorf("redis publish %s: %w", b.channel, err)
	}
	return nil
}

// Run relays channel messages into the local hub until ctx is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	b.log.Info("realtime broker subscribed", "channel", b.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				b.log.Warn("realtime broker: bad payload", "err", err)
				continue
			}
			_ = b.hub.Publish(ctx, ev)
		}
	}
}
