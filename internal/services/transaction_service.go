package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finhouse/internal/amqp"
	"finhouse/internal/core"
	"finhouse/internal/storage"
)

// TransactionService creates, edits and deletes transactions while keeping
// linked account balances consistent.
type TransactionService struct {
	repo      *storage.Repository
	publisher ChangePublisher
	now       func() time.Time
}

func NewTransactionService(repo *storage.Repository, opts ...Option) *TransactionService {
	o := buildOptions(opts)
	return &TransactionService{
		repo:      repo,
		publisher: o.publisher,
		now:       o.now,
	}
}

// Create stores t and applies its balance effect. When paid is nil the
// transaction counts as paid unless it is dated in the future.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction, paid *bool) (core.Transaction, error) {
	if paid != nil {
		t.IsPaid = *paid
	} else {
		t.IsPaid = !t.Date.After(s.now())
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := s.repo.InTx(ctx, func(ctx context.Context, tx *storage.Repository) error {
		id, err := tx.CreateTransaction(ctx, t)
		if err != nil {
			return err
		}
		t.ID = id
		return NewBalanceLedger(tx).Reconcile(ctx, core.Transaction{}, t)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Created transaction",
		"transaction_id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"payment", t.Payment.String(),
		"paid", t.IsPaid)

	s.notify(ctx, t.ID, amqp.OpCreated, t)
	return t, nil
}

// Update applies p to the stored transaction. The balance effect of the old
// version is replaced by that of the new one, across amount, type, paid flag
// and payment method changes.
func (s *TransactionService) Update(ctx context.Context, id string, p core.TransactionPatch) (core.Transaction, error) {
	var before, after core.Transaction
	err := s.repo.InTx(ctx, func(ctx context.Context, tx *storage.Repository) error {
		var err error
		before, err = tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		after = p.Apply(before)
		if p.IsEmpty() {
			return nil
		}
		if err := after.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, id, p); err != nil {
			return err
		}
		return NewBalanceLedger(tx).Reconcile(ctx, before, after)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}
	if p.IsEmpty() {
		return before, nil
	}

	slog.InfoContext(ctx, "Updated transaction",
		"transaction_id", id,
		"amount_cents", after.Amount.Cents,
		"payment", after.Payment.String(),
		"paid", after.IsPaid)

	s.notify(ctx, id, amqp.OpUpdated, before, after)
	return after, nil
}

// Delete removes the transaction and reverses its balance effect.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	var before core.Transaction
	err := s.repo.InTx(ctx, func(ctx context.Context, tx *storage.Repository) error {
		var err error
		before, err = tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		return NewBalanceLedger(tx).Reconcile(ctx, before, core.Transaction{})
	})
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Deleted transaction", "transaction_id", id)

	s.notify(ctx, id, amqp.OpDeleted, before)
	return nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// List returns the household transactions viewerID may see, narrowed by f.
func (s *TransactionService) List(ctx context.Context, householdID, viewerID string, f core.TransactionFilter) ([]core.Transaction, error) {
	txs, err := s.repo.ListHouseholdTransactions(ctx, householdID)
	if err != nil {
		return nil, err
	}
	return core.FilterTransactions(txs, viewerID, f), nil
}

// Subscribe streams what List would return after every change.
func (s *TransactionService) Subscribe(ctx context.Context, householdID, viewerID string, f core.TransactionFilter) (*storage.Stream[core.Transaction], error) {
	return s.repo.SubscribeVisibleTransactions(ctx, householdID, viewerID, f)
}

// Summary computes viewerID's balance summary over the visible transactions.
func (s *TransactionService) Summary(ctx context.Context, householdID, viewerID string, f core.TransactionFilter) (core.BalanceSummary, error) {
	txs, err := s.List(ctx, householdID, viewerID, f)
	if err != nil {
		return core.BalanceSummary{}, err
	}
	return core.CalculateBalance(txs, viewerID), nil
}

// Split returns each member's share of a shared transaction.
func (s *TransactionService) Split(ctx context.Context, id string) (map[string]int64, error) {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return core.CalculateSplit(t), nil
}

// notify publishes the card periods touched by a change. Failures are logged;
// the mutation is already committed.
func (s *TransactionService) notify(ctx context.Context, id, op string, versions ...core.Transaction) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No change publisher configured, skipping notification",
			"transaction_id", id)
		return
	}

	var refs []amqp.BillRef
	for _, t := range versions {
		if cardID, ok := t.Payment.CreditCardID(); ok {
			refs = append(refs, amqp.BillRef{CreditCardID: cardID, UserID: t.CreatedBy, Date: t.Date})
		}
	}
	if len(refs) == 0 {
		return
	}

	if err := s.publisher.PublishTransactionChanged(ctx, amqp.NewTransactionChangedMessage(id, op, refs)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction change",
			"transaction_id", id,
			"operation", op,
			"error", err)
	}
}
