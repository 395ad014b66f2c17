package services

import (
	"context"
	"fmt"
	"log/slog"

	"finhouse/internal/core"
	"finhouse/internal/storage"
)

// BalanceLedger moves account balances by signed deltas. Every balance
// change goes through the store's atomic increment.
type BalanceLedger struct {
	repo *storage.Repository
}

func NewBalanceLedger(repo *storage.Repository) *BalanceLedger {
	return &BalanceLedger{repo: repo}
}

// WithRepository returns a ledger writing through repo, typically a
// repository bound to a store transaction.
func (l *BalanceLedger) WithRepository(repo *storage.Repository) *BalanceLedger {
	return &BalanceLedger{repo: repo}
}

// Adjust adds delta cents to the account balance. The result may be negative.
func (l *BalanceLedger) Adjust(ctx context.Context, accountID string, delta int64) error {
	if delta == 0 {
		return nil
	}
	if accountID == "" {
		return fmt.Errorf("adjust balance: %w: empty id", core.ErrAccountNotFound)
	}
	if err := l.repo.AdjustAccountBalance(ctx, accountID, delta); err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}
	slog.DebugContext(ctx, "Adjusted account balance",
		"account_id", accountID,
		"amount_cents", delta)
	return nil
}

// Reconcile moves balances from the effect of before to the effect of after.
// Either may be the zero Transaction to express creation or deletion.
func (l *BalanceLedger) Reconcile(ctx context.Context, before, after core.Transaction) error {
	oldAcc, oldDelta, hadEffect := before.BalanceEffect()
	newAcc, newDelta, hasEffect := after.BalanceEffect()

	if hadEffect && hasEffect && oldAcc == newAcc {
		return l.Adjust(ctx, newAcc, newDelta-oldDelta)
	}
	if hadEffect {
		if err := l.Adjust(ctx, oldAcc, -oldDelta); err != nil {
			return err
		}
	}
	if hasEffect {
		return l.Adjust(ctx, newAcc, newDelta)
	}
	return nil
}
