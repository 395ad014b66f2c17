package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const defaultChannelPrefix = "finhouse:changes:"

// RedisFeed fans change signals out through Redis pub/sub so every process
// sharing the store sees writes made by the others.
type RedisFeed struct {
	client *redis.Client
	prefix string
	owned  bool
}

// NewRedisFeed connects to addr and verifies the connection.
func NewRedisFeed(ctx context.Context, addr string) (*RedisFeed, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	slog.InfoContext(ctx, "Connected to Redis change feed", "addr", addr)
	return &RedisFeed{client: client, prefix: defaultChannelPrefix, owned: true}, nil
}

// NewRedisFeedWithClient wraps an existing client. Close leaves it open.
func NewRedisFeedWithClient(client *redis.Client, prefix string) *RedisFeed {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisFeed{client: client, prefix: prefix}
}

func (f *RedisFeed) channel(collection string) string {
	return f.prefix + collection
}

func (f *RedisFeed) Publish(ctx context.Context, collection string) error {
	if err := f.client.Publish(ctx, f.channel(collection), "changed").Err(); err != nil {
		return fmt.Errorf("publish change for %s: %w", collection, err)
	}
	return nil
}

func (f *RedisFeed) Listen(ctx context.Context, collection string) (<-chan struct{}, func(), error) {
	ps := f.client.Subscribe(ctx, f.channel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe to %s: %w", collection, err)
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				signal(out)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			if err := ps.Close(); err != nil {
				slog.Warn("Failed to close Redis subscription", "collection", collection, "error", err)
			}
		})
	}
	return out, stop, nil
}

func (f *RedisFeed) Close() error {
	if !f.owned {
		return nil
	}
	return f.client.Close()
}
