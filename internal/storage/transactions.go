package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"finhouse/internal/core"
	"finhouse/internal/docstore"
)

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (string, error) {
	id, err := r.rw.Create(ctx, Transactions, transactionToDoc(t, r.now()))
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	doc, err := r.rw.Get(ctx, Transactions, id)
	if err != nil {
		return core.Transaction{}, notFound(err, core.ErrTransactionNotFound, id)
	}
	return transactionFromDoc(doc, r.loc), nil
}

// UpdateTransaction writes only the fields set in p. A payment method change
// sets one of accountId and creditCardId and removes the other.
func (r *Repository) UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) error {
	if err := r.rw.Update(ctx, Transactions, id, transactionPatchToDoc(p, r.now())); err != nil {
		return notFound(err, core.ErrTransactionNotFound, id)
	}
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	if err := r.rw.Delete(ctx, Transactions, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// ListCardTransactions returns userID's transactions charged to cardID with
// dates in [start, end].
func (r *Repository) ListCardTransactions(ctx context.Context, cardID, userID string, start, end time.Time) ([]core.Transaction, error) {
	docs, err := r.rw.Query(ctx, Transactions,
		docstore.Eq("createdBy", userID),
		docstore.Eq("creditCardId", cardID),
		docstore.Gte("date", start),
		docstore.Lte("date", end),
	)
	if err != nil {
		return nil, fmt.Errorf("list card transactions: %w", err)
	}
	return r.transactions(docs), nil
}

// ListHouseholdTransactions returns every transaction of the household,
// newest first.
func (r *Repository) ListHouseholdTransactions(ctx context.Context, householdID string) ([]core.Transaction, error) {
	docs, err := r.rw.Query(ctx, Transactions, docstore.Eq("householdId", householdID))
	if err != nil {
		return nil, fmt.Errorf("list household transactions: %w", err)
	}
	return r.transactions(docs), nil
}

func (r *Repository) SubscribeTransactions(ctx context.Context, householdID string) (*Stream[core.Transaction], error) {
	sub, err := r.store.Subscribe(ctx, Transactions, docstore.Eq("householdId", householdID))
	if err != nil {
		return nil, fmt.Errorf("subscribe to transactions: %w", err)
	}
	return newStream(sub, r.transactions), nil
}

func (r *Repository) transactions(docs []docstore.Document) []core.Transaction {
	out := make([]core.Transaction, len(docs))
	for i, d := range docs {
		out[i] = transactionFromDoc(d, r.loc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// SubscribeVisibleTransactions streams the household transactions viewerID
// may see, narrowed by f.
func (r *Repository) SubscribeVisibleTransactions(ctx context.Context, householdID, viewerID string, f core.TransactionFilter) (*Stream[core.Transaction], error) {
	sub, err := r.store.Subscribe(ctx, Transactions, docstore.Eq("householdId", householdID))
	if err != nil {
		return nil, fmt.Errorf("subscribe to transactions: %w", err)
	}
	return newStream(sub, func(docs []docstore.Document) []core.Transaction {
		return core.FilterTransactions(r.transactions(docs), viewerID, f)
	}), nil
}
