package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
)

// Feed carries the paths of changed documents between processes.
type Feed interface {
	// Listen calls fn for every changed path until ctx is done
	Listen(ctx context.Context, fn func(docstore.Path)) error
	// Publish announces a write made by this process
	Publish(ctx context.Context, path docstore.Path) error
}

// DefaultChannel is the NOTIFY channel used by the documents trigger
const DefaultChannel = "document_changes"

// PGFeed listens to the notifications raised by the documents trigger.
type PGFeed struct {
	pool    *pgxpool.Pool
	channel string
}

func NewPGFeed(pool *pgxpool.Pool, channel string) *PGFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &PGFeed{pool: pool, channel: channel}
}

func (f *PGFeed) Listen(ctx context.Context, fn func(docstore.Path)) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", f.channel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		fn(docstore.Path(n.Payload))
	}
}

// Publish is a no-op: the trigger announces every write
func (f *PGFeed) Publish(ctx context.Context, path docstore.Path) error {
	return nil
}
