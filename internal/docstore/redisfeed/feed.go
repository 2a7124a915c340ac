// Package redisfeed carries document change notifications over Redis pub/sub
// so several dashboard processes sharing one Postgres store see each other's
// writes without database LISTEN connections.
package redisfeed

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
)

const DefaultChannel = "hippocampus:document_changes"

type Feed struct {
	client  *redis.Client
	channel string
}

func New(client *redis.Client, channel string) *Feed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Feed{client: client, channel: channel}
}

func (f *Feed) Listen(ctx context.Context, fn func(docstore.Path)) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed before reading messages
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
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
			fn(docstore.Path(msg.Payload))
		}
	}
}

func (f *Feed) Publish(ctx context.Context, path docstore.Path) error {
	if err := f.client.Publish(ctx, f.channel, string(path)).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}
