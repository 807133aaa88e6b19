package redis

import (
	"context"
	"time"

	"chatcore/internal/events"

	"github.com/redis/go-redis/v9"
)

type Publisher struct {
	client *redis.Client
	clock  func() time.Time
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client, clock: time.Now}
}

// Publish sends an already encoded envelope.
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// PublishEvent encodes ev and sends it on its resolved channel.
func (p *Publisher) PublishEvent(ctx context.Context, ev events.Event) error {
	data, err := events.Encode(ev, p.clock())
	if err != nil {
		return err
	}
	return p.Publish(ctx, events.ResolveChannel(ev), data)
}
