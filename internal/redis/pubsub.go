package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// PubSub moves relay frames between server instances.
type PubSub struct {
	client *redis.Client
}

func NewPubSub(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

func (p *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Subscribe pattern-subscribes to patterns and calls handler for every
// message until ctx is cancelled. ready is closed once the subscription is
// confirmed by the server; it may be nil.
func (p *PubSub) Subscribe(ctx context.Context, patterns []string, ready chan<- struct{}, handler func(channel string, payload []byte)) error {
	sub := p.client.PSubscribe(ctx, patterns...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
