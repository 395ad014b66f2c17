package storage

import (
	"sync"

	"finhouse/internal/docstore"
)

// Stream delivers decoded snapshots of a subscription.
type Stream[T any] struct {
	sub  *docstore.Subscription
	out  chan []T
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newStream[T any](sub *docstore.Subscription, convert func([]docstore.Document) []T) *Stream[T] {
	s := &Stream[T]{
		sub:  sub,
		out:  make(chan []T, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.out)
		for docs := range sub.Updates() {
			items := convert(docs)
			select {
			case <-s.out:
			default:
			}
			select {
			case s.out <- items:
			case <-s.stop:
				return
			}
		}
	}()
	return s
}

func (s *Stream[T]) Updates() <-chan []T { return s.out }

// Close ends the stream. No snapshot is delivered after Close returns.
func (s *Stream[T]) Close() {
	s.once.Do(func() {
		close(s.stop)
		s.sub.Close()
		<-s.done
		for range s.out {
		}
	})
}
