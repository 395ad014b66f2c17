package services

import (
	"context"
	"fmt"
	"log/slog"

	"finhouse/internal/core"
	"finhouse/internal/storage"
)

// BillRefresher brings a stored bill total in line with the usage of its
// period.
type BillRefresher struct {
	repo *storage.Repository
}

func NewBillRefresher(repo *storage.Repository) *BillRefresher {
	return &BillRefresher{repo: repo}
}

// Refresh recomputes the usage of b's period and stores the new total and
// transaction list when the total moved. The stored bill is re-read inside
// the transaction, so a bill closed or paid since b was read is returned as
// stored and left untouched. Paid amount and status are never written.
func (r *BillRefresher) Refresh(ctx context.Context, b core.Bill) (core.Bill, bool, error) {
	var (
		refreshed core.Bill
		previous  core.Money
		changed   bool
	)
	err := r.repo.InTx(ctx, func(ctx context.Context, tx *storage.Repository) error {
		current, err := tx.GetBill(ctx, b.ID)
		if err != nil {
			return err
		}
		previous = current.Total
		refreshed, changed, err = refreshBill(ctx, tx, current)
		return err
	})
	if err != nil {
		return b, false, fmt.Errorf("refresh bill %s: %w", b.ID, err)
	}
	if changed {
		slog.InfoContext(ctx, "Refreshed bill total",
			"bill_id", refreshed.ID,
			"previous_cents", previous.Cents,
			"amount_cents", refreshed.Total.Cents)
	}
	return refreshed, changed, nil
}

// refreshBill updates b's total through tx when b is still refreshable. b
// must have been read through tx.
func refreshBill(ctx context.Context, tx *storage.Repository, b core.Bill) (core.Bill, bool, error) {
	if !b.Refreshable() {
		return b, false, nil
	}
	usage, err := NewUsageAggregator(tx).CardUsage(ctx, b.CreditCardID, b.UserID, b.PeriodStart, b.ClosingDate)
	if err != nil {
		return b, false, err
	}
	if usage.Total == b.Total {
		return b, false, nil
	}
	ids := usage.TransactionIDs()
	if err := tx.UpdateBillTotal(ctx, b.ID, usage.Total, ids); err != nil {
		return b, false, err
	}
	b.Total = usage.Total
	b.TransactionIDs = ids
	return b, true, nil
}

// closeBill gives a still open or overdue bill a last refresh and marks it
// closed, all through tx. Closed and paid bills come back unchanged with
// false.
func closeBill(ctx context.Context, tx *storage.Repository, id string) (core.Bill, bool, error) {
	bill, err := tx.GetBill(ctx, id)
	if err != nil {
		return core.Bill{}, false, err
	}
	if !bill.Refreshable() {
		return bill, false, nil
	}
	if bill, _, err = refreshBill(ctx, tx, bill); err != nil {
		return core.Bill{}, false, err
	}
	if err := tx.SetBillStatus(ctx, id, core.BillClosed); err != nil {
		return core.Bill{}, false, err
	}
	bill.Status = core.BillClosed
	return bill, true, nil
}
