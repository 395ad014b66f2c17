package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finhouse/internal/amqp"
	"finhouse/internal/core"
	"finhouse/internal/docstore"
	"finhouse/internal/docstore/memory"
	"finhouse/internal/storage"
)

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newMemoryStore() *memory.Store {
	return memory.New(memory.WithUniqueIndex(storage.Bills, storage.BillUniqueFields...))
}

func newTestRepo(t *testing.T) (*storage.Repository, *memory.Store) {
	t.Helper()
	store := newMemoryStore()
	t.Cleanup(func() { store.Close() })
	return storage.NewRepository(store), store
}

func seedAccount(t *testing.T, repo *storage.Repository, balance int64) string {
	t.Helper()
	id, err := repo.CreateAccount(context.Background(), core.Account{
		HouseholdID:    "h1",
		OwnerID:        "u1",
		Name:           "Checking",
		Type:           core.Checking,
		InitialBalance: core.Money{Cents: balance},
		Active:         true,
	})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	return id
}

func seedCard(t *testing.T, repo *storage.Repository, closingDay, dueDay int) core.CreditCard {
	t.Helper()
	c := core.CreditCard{
		HouseholdID: "h1",
		OwnerID:     "u1",
		Name:        "Visa",
		LastFour:    "4242",
		Limit:       core.Money{Cents: 500000},
		ClosingDay:  closingDay,
		DueDay:      dueDay,
		Active:      true,
	}
	id, err := repo.CreateCard(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	c.ID = id
	return c
}

func seedCardCharge(t *testing.T, repo *storage.Repository, cardID, userID string, cents int64, date time.Time) string {
	t.Helper()
	id, err := repo.CreateTransaction(context.Background(), core.Transaction{
		HouseholdID: "h1",
		Type:        core.Expense,
		Title:       "charge",
		Amount:      core.Money{Cents: cents},
		Date:        date,
		CreatedBy:   userID,
		PayerID:     userID,
		Target:      core.TargetPersonal,
		Payment:     core.CardPayment(cardID),
		IsPaid:      true,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	return id
}

func balanceOf(t *testing.T, repo *storage.Repository, accountID string) int64 {
	t.Helper()
	a, err := repo.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	return a.Balance.Cents
}

var errUnavailable = errors.New("store unavailable")

// flakyStore fails a number of bill creations and bill updates before
// letting them through.
type flakyStore struct {
	docstore.Store

	mu              sync.Mutex
	failBillCreates int
	failBillUpdates int
}

func (s *flakyStore) take(n *int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *n > 0 {
		*n--
		return true
	}
	return false
}

func (s *flakyStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	if collection == storage.Bills && s.take(&s.failBillCreates) {
		return "", errUnavailable
	}
	return s.Store.Create(ctx, collection, data)
}

func (s *flakyStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.ReadWriter) error) error {
	return s.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.ReadWriter) error {
		return fn(ctx, &flakyTx{ReadWriter: tx, s: s})
	})
}

type flakyTx struct {
	docstore.ReadWriter
	s *flakyStore
}

func (t *flakyTx) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if collection == storage.Bills && t.s.take(&t.s.failBillUpdates) {
		return errUnavailable
	}
	return t.ReadWriter.Update(ctx, collection, id, patch)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.TransactionChangedMessage
	err  error
}

func (p *recordingPublisher) PublishTransactionChanged(_ context.Context, msg *amqp.TransactionChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) messages() []*amqp.TransactionChangedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.TransactionChangedMessage(nil), p.msgs...)
}
