// Package worker reacts to transaction change notifications.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finhouse/internal/amqp"
	"finhouse/internal/core"
	"finhouse/internal/storage"
)

// BillRefresher is the part of the billing services the worker needs.
type BillRefresher interface {
	Refresh(ctx context.Context, b core.Bill) (core.Bill, bool, error)
}

// RefreshWorker refreshes the stored bills a transaction change touched.
// Periods without a materialized bill are skipped; bills are only created
// when someone asks for them.
type RefreshWorker struct {
	repo      *storage.Repository
	refresher BillRefresher
}

func NewRefreshWorker(repo *storage.Repository, refresher BillRefresher) *RefreshWorker {
	return &RefreshWorker{repo: repo, refresher: refresher}
}

// HandleTransactionChanged processes one change message. Every referenced
// period is attempted; the joined errors make the message requeue.
func (w *RefreshWorker) HandleTransactionChanged(ctx context.Context, msg *amqp.TransactionChangedMessage) error {
	slog.InfoContext(ctx, "Processing transaction change",
		"transaction_id", msg.TransactionID,
		"operation", msg.Operation,
		"bills", len(msg.Bills))

	var errs []error
	seen := make(map[string]bool, len(msg.Bills))
	for _, ref := range msg.Bills {
		bill, ok, err := w.repo.FindBillCovering(ctx, ref.CreditCardID, ref.UserID, ref.Date)
		if err != nil {
			errs = append(errs, fmt.Errorf("find bill for card %s: %w", ref.CreditCardID, err))
			continue
		}
		if !ok || seen[bill.ID] {
			continue
		}
		seen[bill.ID] = true

		if _, changed, err := w.refresher.Refresh(ctx, bill); err != nil {
			errs = append(errs, err)
		} else if changed {
			slog.InfoContext(ctx, "Bill refreshed after transaction change",
				"bill_id", bill.ID,
				"transaction_id", msg.TransactionID)
		}
	}
	return errors.Join(errs...)
}
