// Package broker carries job wake-up signals between processes over
// Redis pub/sub. Polling remains the correctness mechanism; the broker
// only shortens the idle wait when new work arrives.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultChannelPrefix = "taskflow:queue:"

// Notifier publishes and waits for queue wake-up signals. It implements
// core.JobNotifier. Signals are advisory: subscription setup races with
// concurrent publishes, and a missed signal only delays pickup until
// the next poll tick.
type Notifier struct {
	client redis.UniversalClient
	prefix string
}

// NewNotifier creates a Redis-backed notifier with the default channel prefix.
func NewNotifier(client redis.UniversalClient) *Notifier {
	return &Notifier{
		client: client,
		prefix: defaultChannelPrefix,
	}
}

// NewNotifierWithPrefix creates a notifier with a custom channel prefix.
func NewNotifierWithPrefix(client redis.UniversalClient, prefix string) *Notifier {
	return &Notifier{
		client: client,
		prefix: prefix,
	}
}

func (n *Notifier) channel(queue string) string {
	return n.prefix + queue
}

// Notify publishes the queue name on the queue's wake-up channel.
func (n *Notifier) Notify(ctx context.Context, queue string) error {
	if err := n.client.Publish(ctx, n.channel(queue), queue).Err(); err != nil {
		return fmt.Errorf("publish wake-up: %w", err)
	}
	return nil
}

// Wait blocks until a signal arrives on the queue's channel, the timeout
// elapses, or ctx is done. A broken subscription degrades to a plain
// timer wait: only ctx errors are surfaced.
func (n *Notifier) Wait(ctx context.Context, queue string, timeout time.Duration) error {
	sub := n.client.Subscribe(ctx, n.channel(queue))
	defer func() { _ = sub.Close() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-sub.Channel():
		return nil
	}
}
