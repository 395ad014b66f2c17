package storage

import (
	"context"
	"fmt"
	"sort"

	"finhouse/internal/core"
	"finhouse/internal/docstore"
)

// CreateAccount stores a with its balance set to the initial balance.
func (r *Repository) CreateAccount(ctx context.Context, a core.Account) (string, error) {
	a.Balance = a.InitialBalance
	id, err := r.rw.Create(ctx, Accounts, accountToDoc(a, r.now()))
	if err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}
	return id, nil
}

func (r *Repository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	doc, err := r.rw.Get(ctx, Accounts, id)
	if err != nil {
		return core.Account{}, notFound(err, core.ErrAccountNotFound, id)
	}
	return accountFromDoc(doc, r.loc), nil
}

func (r *Repository) UpdateAccount(ctx context.Context, id string, p core.AccountPatch) error {
	if err := r.rw.Update(ctx, Accounts, id, accountPatchToDoc(p, r.now())); err != nil {
		return notFound(err, core.ErrAccountNotFound, id)
	}
	return nil
}

// AdjustAccountBalance adds delta cents to the stored balance with one
// atomic increment.
func (r *Repository) AdjustAccountBalance(ctx context.Context, id string, delta int64) error {
	if err := r.rw.Increment(ctx, Accounts, id, "balance", delta); err != nil {
		return notFound(err, core.ErrAccountNotFound, id)
	}
	return nil
}

func (r *Repository) DeleteAccount(ctx context.Context, id string) error {
	if err := r.rw.Delete(ctx, Accounts, id); err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	return nil
}

// ListAccounts returns the owner's accounts sorted by name.
func (r *Repository) ListAccounts(ctx context.Context, ownerID string, activeOnly bool) ([]core.Account, error) {
	filters := []docstore.Filter{docstore.Eq("ownerId", ownerID)}
	if activeOnly {
		filters = append(filters, docstore.Eq("isActive", true))
	}
	docs, err := r.rw.Query(ctx, Accounts, filters...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return r.accounts(docs), nil
}

// SubscribeAccounts streams the owner's active accounts.
func (r *Repository) SubscribeAccounts(ctx context.Context, ownerID string) (*Stream[core.Account], error) {
	sub, err := r.store.Subscribe(ctx, Accounts, docstore.Eq("ownerId", ownerID), docstore.Eq("isActive", true))
	if err != nil {
		return nil, fmt.Errorf("subscribe to accounts: %w", err)
	}
	return newStream(sub, r.accounts), nil
}

func (r *Repository) accounts(docs []docstore.Document) []core.Account {
	out := make([]core.Account, len(docs))
	for i, d := range docs {
		out[i] = accountFromDoc(d, r.loc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
