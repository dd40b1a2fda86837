package redisx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kirinyoku/fairtix/internal/domain"
)

// NotificationsPubSub fans committed-operation notifications out over a
// single Redis channel as JSON.
type NotificationsPubSub struct {
	rdb     redis.UniversalClient
	channel string
}

func NewNotificationsPubSub(rdb redis.UniversalClient) *NotificationsPubSub {
	return &NotificationsPubSub{
		rdb:     rdb,
		channel: ChannelNotifications(),
	}
}

func (p *NotificationsPubSub) Publish(ctx context.Context, n domain.Notification) error {
	const op = "redisx.NotificationsPubSub.Publish"

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := p.rdb.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Subscribe delivers every well-formed notification to handler until ctx
// is done.
func (p *NotificationsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, n domain.Notification)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var n domain.Notification
			if err := json.Unmarshal([]byte(m.Payload), &n); err == nil &&
				n.Type != "" {
				handler(ctx, n)
			}
		}
	}
}
