// Package memory is an in-process docstore backend for development and tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"finhouse/internal/changefeed"
	"finhouse/internal/docstore"
)

type Option func(*Store)

// WithUniqueIndex rejects writes leaving two documents of collection with the
// same values for fields. Documents missing any of the fields are exempt.
func WithUniqueIndex(collection string, fields ...string) Option {
	return func(s *Store) {
		s.unique[collection] = append(s.unique[collection], fields)
	}
}

// WithFeed publishes change signals to f instead of a private hub.
func WithFeed(f changefeed.Feed) Option {
	return func(s *Store) { s.feed = f }
}

type Store struct {
	mu     sync.Mutex
	docs   map[string]map[string]map[string]any
	unique map[string][][]string
	feed   changefeed.Feed
	closed bool
}

func New(opts ...Option) *Store {
	s := &Store{
		docs:   make(map[string]map[string]map[string]any),
		unique: make(map[string][][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.feed == nil {
		s.feed = changefeed.NewHub()
	}
	return s
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txn{s: s}).Get(ctx, collection, id)
}

func (s *Store) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&txn{s: s}).Query(ctx, collection, filters...)
}

func (s *Store) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	var id string
	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.ReadWriter) error {
		var err error
		id, err = tx.Create(ctx, collection, data)
		return err
	})
	return id, err
}

func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx docstore.ReadWriter) error {
		return tx.Update(ctx, collection, id, patch)
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx docstore.ReadWriter) error {
		return tx.Delete(ctx, collection, id)
	})
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx docstore.ReadWriter) error {
		return tx.Increment(ctx, collection, id, field, delta)
	})
}

// RunTransaction holds the store lock for the duration of fn and rolls every
// write back when fn fails or panics.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.ReadWriter) error) error {
	changed, err := s.apply(ctx, fn)
	if err != nil {
		return err
	}
	for collection := range changed {
		if perr := s.feed.Publish(ctx, collection); perr != nil {
			slog.WarnContext(ctx, "Failed to publish change", "collection", collection, "error", perr)
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, fn func(ctx context.Context, tx docstore.ReadWriter) error) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}
	t := &txn{s: s, undo: make(map[string]map[string]map[string]any), changed: make(map[string]bool)}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
	}()
	if err := fn(ctx, t); err != nil {
		t.rollback()
		return nil, err
	}
	return t.changed, nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filters ...docstore.Filter) (*docstore.Subscription, error) {
	return docstore.Watch(ctx, s, s.feed, collection, filters)
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.feed.Close()
}

// Len reports how many documents collection holds.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[collection])
}

// txn operates on the store while its lock is held.
type txn struct {
	s       *Store
	undo    map[string]map[string]map[string]any // original documents, nil when absent
	changed map[string]bool
}

func (t *txn) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	data, ok := t.s.docs[collection][id]
	if !ok {
		return docstore.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return docstore.Document{ID: id, Data: docstore.Clone(data)}, nil
}

func (t *txn) Query(_ context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	if err := docstore.ValidFilters(filters); err != nil {
		return nil, err
	}
	out := []docstore.Document{}
	for id, data := range t.s.docs[collection] {
		if docstore.Matches(data, filters) {
			out = append(out, docstore.Document{ID: id, Data: docstore.Clone(data)})
		}
	}
	docstore.SortByID(out)
	return out, nil
}

func (t *txn) Create(_ context.Context, collection string, data map[string]any) (string, error) {
	if err := docstore.ValidPatch(data); err != nil {
		return "", err
	}
	id := uuid.NewString()
	doc := make(map[string]any, len(data))
	docstore.ApplyPatch(doc, data)
	if err := t.checkUnique(collection, id, doc); err != nil {
		return "", err
	}
	t.put(collection, id, doc)
	return id, nil
}

func (t *txn) Update(_ context.Context, collection, id string, patch map[string]any) error {
	if err := docstore.ValidPatch(patch); err != nil {
		return err
	}
	current, ok := t.s.docs[collection][id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	doc := docstore.Clone(current)
	docstore.ApplyPatch(doc, patch)
	if err := t.checkUnique(collection, id, doc); err != nil {
		return err
	}
	t.put(collection, id, doc)
	return nil
}

func (t *txn) Delete(_ context.Context, collection, id string) error {
	if _, ok := t.s.docs[collection][id]; !ok {
		return nil
	}
	t.remember(collection, id)
	delete(t.s.docs[collection], id)
	t.changed[collection] = true
	return nil
}

func (t *txn) Increment(_ context.Context, collection, id, field string, delta int64) error {
	if err := docstore.ValidField(field); err != nil {
		return err
	}
	current, ok := t.s.docs[collection][id]
	if !ok {
		return fmt.Errorf("increment %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	doc := docstore.Clone(current)
	doc[field] = docstore.Int64(doc, field) + delta
	t.put(collection, id, doc)
	return nil
}

func (t *txn) put(collection, id string, doc map[string]any) {
	t.remember(collection, id)
	if t.s.docs[collection] == nil {
		t.s.docs[collection] = make(map[string]map[string]any)
	}
	t.s.docs[collection][id] = doc
	t.changed[collection] = true
}

func (t *txn) remember(collection, id string) {
	if t.undo == nil {
		return
	}
	if t.undo[collection] == nil {
		t.undo[collection] = make(map[string]map[string]any)
	}
	if _, seen := t.undo[collection][id]; seen {
		return
	}
	t.undo[collection][id] = t.s.docs[collection][id]
}

func (t *txn) rollback() {
	for collection, docs := range t.undo {
		for id, original := range docs {
			if original == nil {
				delete(t.s.docs[collection], id)
				continue
			}
			t.s.docs[collection][id] = original
		}
	}
}

func (t *txn) checkUnique(collection, id string, doc map[string]any) error {
	for _, fields := range t.s.unique[collection] {
		key, ok := uniqueKey(doc, fields)
		if !ok {
			continue
		}
		for otherID, other := range t.s.docs[collection] {
			if otherID == id {
				continue
			}
			if otherKey, ok := uniqueKey(other, fields); ok && otherKey == key {
				return fmt.Errorf("%s %v: %w", collection, fields, docstore.ErrConflict)
			}
		}
	}
	return nil
}

func uniqueKey(doc map[string]any, fields []string) (string, bool) {
	key := ""
	for _, f := range fields {
		v, ok := doc[f]
		if !ok || v == nil {
			return "", false
		}
		key += fmt.Sprintf("%T:%v|", v, v)
	}
	return key, true
}
