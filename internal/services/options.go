// Package services implements the billing-cycle and balance-consistency
// operations on top of the storage repository.
package services

import (
	"context"
	"time"

	"finhouse/internal/amqp"
)

// ChangePublisher announces committed transaction changes so bills covering
// them can be refreshed out of band.
type ChangePublisher interface {
	PublishTransactionChanged(ctx context.Context, msg *amqp.TransactionChangedMessage) error
}

type options struct {
	now       func() time.Time
	inflight  *InflightGroup
	publisher ChangePublisher
}

type Option func(*options)

// WithClock overrides the wall clock used for "now".
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithInflight shares an in-flight group between materializers.
func WithInflight(g *InflightGroup) Option {
	return func(o *options) { o.inflight = g }
}

// WithPublisher enables change notifications after each committed mutation.
func WithPublisher(p ChangePublisher) Option {
	return func(o *options) { o.publisher = p }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.inflight == nil {
		o.inflight = NewInflightGroup()
	}
	return o
}
