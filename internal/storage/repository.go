// Package storage maps the finance domain onto docstore collections.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finhouse/internal/docstore"
)

type Option func(*Repository)

// WithLocation sets the zone timestamps are read back in.
func WithLocation(loc *time.Location) Option {
	return func(r *Repository) { r.loc = loc }
}

// WithClock overrides the clock stamping createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// Repository reads and writes accounts, cards, transactions and bills. A
// Repository obtained from InTx writes inside that store transaction.
type Repository struct {
	store docstore.Store
	rw    docstore.ReadWriter
	inTx  bool
	loc   *time.Location
	now   func() time.Time
}

func NewRepository(store docstore.Store, opts ...Option) *Repository {
	r := &Repository{store: store, rw: store, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Location is the zone the repository reads timestamps in.
func (r *Repository) Location() *time.Location { return r.loc }

// InTx runs fn with a repository bound to one store transaction. Nested calls
// join the enclosing transaction.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	return r.store.RunTransaction(ctx, func(ctx context.Context, rw docstore.ReadWriter) error {
		return fn(ctx, &Repository{store: r.store, rw: rw, inTx: true, loc: r.loc, now: r.now})
	})
}

// Ping checks that the store answers reads.
func (r *Repository) Ping(ctx context.Context) error {
	_, err := r.rw.Get(ctx, Accounts, "_ping")
	if err == nil || errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("ping store: %w", err)
}

// notFound translates a docstore miss into the domain error.
func notFound(err error, domainErr error, id string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", domainErr, id)
	}
	return err
}
