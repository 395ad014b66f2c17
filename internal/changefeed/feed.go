// Package changefeed notifies listeners that a document collection changed.
//
// Notifications carry no payload: listeners re-read what they watch. Bursts
// coalesce, so a slow listener sees at least one signal after the last change.
package changefeed

import (
	"context"
	"sync"
)

// Feed publishes and listens for collection change signals.
type Feed interface {
	Publish(ctx context.Context, collection string) error
	// Listen returns a channel signalled after each change to collection and a
	// stop function releasing it. The channel is closed by stop.
	Listen(ctx context.Context, collection string) (<-chan struct{}, func(), error)
	Close() error
}

// Hub is an in-process Feed.
type Hub struct {
	mu     sync.Mutex
	next   int
	subs   map[string]map[int]chan struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan struct{})}
}

func (h *Hub) Publish(_ context.Context, collection string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[collection] {
		signal(ch)
	}
	return nil
}

func (h *Hub) Listen(_ context.Context, collection string) (<-chan struct{}, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan struct{}, 1)
	if h.closed {
		close(ch)
		return ch, func() {}, nil
	}
	id := h.next
	h.next++
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[int]chan struct{})
	}
	h.subs[collection][id] = ch

	var once sync.Once
	stop := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[collection][id]; ok {
				delete(h.subs[collection], id)
				close(c)
			}
		})
	}
	return ch, stop, nil
}

// Close closes every listener channel.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for coll, subs := range h.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(h.subs, coll)
	}
	return nil
}

// Listeners reports how many listeners watch collection.
func (h *Hub) Listeners(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
