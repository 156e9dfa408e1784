package websocket

import (
	"context"
	"sync"
	"time"

	"relaychat/internal/events"
	"relaychat/pkg/logger"
)

// Subscriber is the receiving half of the cross-instance transport.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, ready chan<- struct{}, handler func(channel string, payload []byte)) error
}

// RedisBridge feeds frames published by other instances into the local hub.
type RedisBridge struct {
	subscriber Subscriber
	hub        *Hub
	logger     *logger.Logger
	backoff    time.Duration
}

func NewRedisBridge(subscriber Subscriber, hub *Hub, l *logger.Logger) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub, logger: logger.OrNop(l), backoff: time.Second}
}

// Run subscribes until ctx is cancelled, resubscribing after failures.
// ready is closed after the first successful subscription; it may be nil.
func (b *RedisBridge) Run(ctx context.Context, ready chan<- struct{}) {
	var once sync.Once
	markReady := func() {
		if ready != nil {
			once.Do(func() { close(ready) })
		}
	}

	for {
		subscribed := make(chan struct{})
		go func() {
			select {
			case <-subscribed:
				markReady()
			case <-ctx.Done():
			}
		}()

		err := b.subscriber.Subscribe(ctx, []string{events.ChannelPattern}, subscribed, b.hub.HandleRemote)
		if ctx.Err() != nil {
			return
		}
		b.logger.Warnf("relay bridge subscription ended, retrying in %s: %v", b.backoff, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.backoff):
		}
	}
}
