package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "coffeehouse:live"

// Bridge relays hub events between instances over Redis pub/sub. Events it
// publishes carry its origin so they are not delivered twice locally.
type Bridge struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
	origin  string
	log     *slog.Logger
}

func NewBridge(rdb *redis.Client, hub *Hub, channel string, log *slog.Logger) *Bridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bridge{rdb: rdb, hub: hub, channel: channel, origin: uuid.NewString(), log: log}
}

// Publish delivers ev locally and forwards it to the other instances.
func (b *Bridge) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.hub.Publish(ev)

	ev.Origin = b.origin
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("marshal live event", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		b.log.Warn("redis publish failed", "channel", b.channel, "error", err)
	}
}

// Run consumes remote events until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("bad live event", "error", err)
				continue
			}
			if ev.Origin == b.origin {
				continue
			}
			ev.Origin = ""
			b.hub.Publish(ev)
		}
	}
}
