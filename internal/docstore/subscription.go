package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"finhouse/internal/changefeed"
)

// Subscription streams snapshots of the documents matching a query. A
// snapshot is delivered on subscribe and after every change to the
// collection; a consumer that falls behind only sees the latest one.
type Subscription struct {
	updates chan []Document
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Updates returns the snapshot channel. It is closed once the subscription ends.
func (s *Subscription) Updates() <-chan []Document {
	return s.updates
}

// Close stops the subscription. No snapshot is delivered after Close returns.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Watch re-runs the query on r whenever feed signals a change to collection.
// Backends use it to implement Store.Subscribe.
func Watch(ctx context.Context, r Reader, feed changefeed.Feed, collection string, filters []Filter) (*Subscription, error) {
	if err := ValidFilters(filters); err != nil {
		return nil, err
	}
	events, stop, err := feed.Listen(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("listen for %s changes: %w", collection, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		updates: make(chan []Document, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(ctx, r, events, stop, collection, filters)
	return s, nil
}

func (s *Subscription) run(ctx context.Context, r Reader, events <-chan struct{}, stop func(), collection string, filters []Filter) {
	defer close(s.done)
	defer func() {
		select {
		case <-s.updates:
		default:
		}
		close(s.updates)
	}()
	defer stop()

	s.refresh(ctx, r, collection, filters)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			s.refresh(ctx, r, collection, filters)
		}
	}
}

func (s *Subscription) refresh(ctx context.Context, r Reader, collection string, filters []Filter) {
	docs, err := r.Query(ctx, collection, filters...)
	if err != nil {
		if ctx.Err() == nil {
			slog.WarnContext(ctx, "Subscription query failed", "collection", collection, "error", err)
		}
		return
	}
	// Drop a snapshot the consumer has not read yet; the new one supersedes it.
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- docs:
	case <-ctx.Done():
	}
}
