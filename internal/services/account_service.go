package services

import (
	"context"
	"fmt"
	"log/slog"

	"finhouse/internal/core"
	"finhouse/internal/storage"
)

// AccountService manages bank accounts. Balances only move through the
// ledger; edits here never touch the running balance except for an explicit
// initial balance reset.
type AccountService struct {
	repo *storage.Repository
}

func NewAccountService(repo *storage.Repository) *AccountService {
	return &AccountService{repo: repo}
}

func (s *AccountService) Create(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	id, err := s.repo.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, err
	}
	slog.InfoContext(ctx, "Created account",
		"account_id", id,
		"owner_id", a.OwnerID,
		"amount_cents", a.InitialBalance.Cents)
	return s.repo.GetAccount(ctx, id)
}

func (s *AccountService) Get(ctx context.Context, id string) (core.Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// Update applies p. Setting InitialBalance resets the running balance too.
func (s *AccountService) Update(ctx context.Context, id string, p core.AccountPatch) (core.Account, error) {
	var updated core.Account
	err := s.repo.InTx(ctx, func(ctx context.Context, tx *storage.Repository) error {
		current, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		updated = p.Apply(current)
		if err := updated.Validate(); err != nil {
			return err
		}
		return tx.UpdateAccount(ctx, id, p)
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("update account %s: %w", id, err)
	}
	return updated, nil
}

// Deactivate hides the account from active listings. Its history stays.
func (s *AccountService) Deactivate(ctx context.Context, id string) error {
	inactive := false
	return s.repo.UpdateAccount(ctx, id, core.AccountPatch{Active: &inactive})
}

func (s *AccountService) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteAccount(ctx, id)
}

func (s *AccountService) List(ctx context.Context, ownerID string, activeOnly bool) ([]core.Account, error) {
	return s.repo.ListAccounts(ctx, ownerID, activeOnly)
}

func (s *AccountService) Subscribe(ctx context.Context, ownerID string) (*storage.Stream[core.Account], error) {
	return s.repo.SubscribeAccounts(ctx, ownerID)
}
