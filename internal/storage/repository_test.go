package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finhouse/internal/core"
	"finhouse/internal/docstore"
	"finhouse/internal/docstore/memory"
)

func newTestRepo() *Repository {
	store := memory.New(memory.WithUniqueIndex(Bills, BillUniqueFields...))
	return NewRepository(store)
}

func TestTransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	date := time.Date(2025, 3, 14, 15, 4, 5, 0, time.UTC)

	in := core.Transaction{
		HouseholdID: "h1",
		Type:        core.Expense,
		Title:       "Dinner",
		Amount:      core.Money{Cents: 12345},
		Date:        date,
		Category:    "food",
		CreatedBy:   "u1",
		PayerID:     "u1",
		Target:      core.TargetShared,
		SharedWith: []core.SplitRule{
			{UserID: "u1", Percentage: decimal.RequireFromString("66.67")},
			{UserID: "u2", Percentage: decimal.RequireFromString("33.33")},
		},
		SharedWithUsers: []string{"u2"},
		Payment:         core.CardPayment("card-1"),
		IsPaid:          true,
	}
	id, err := r.CreateTransaction(ctx, in)
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	got, err := r.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got.ID != id || got.Title != "Dinner" || got.Amount.Cents != 12345 || !got.Date.Equal(date) {
		t.Fatalf("unexpected transaction %+v", got)
	}
	if cardID, ok := got.Payment.CreditCardID(); !ok || cardID != "card-1" {
		t.Fatalf("payment = %v", got.Payment)
	}
	if len(got.SharedWith) != 2 || !got.SharedWith[0].Percentage.Equal(decimal.RequireFromString("66.67")) {
		t.Fatalf("sharedWith = %+v", got.SharedWith)
	}
	if len(got.SharedWithUsers) != 1 || got.SharedWithUsers[0] != "u2" {
		t.Fatalf("sharedWithUsers = %v", got.SharedWithUsers)
	}
}

func TestUpdateTransactionSwitchesPayment(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	id, _ := r.CreateTransaction(ctx, core.Transaction{
		Type: core.Expense, Title: "Fuel", Amount: core.Money{Cents: 100}, Date: time.Now(),
		Target: core.TargetPersonal, Payment: core.CardPayment("card-1"),
	})

	acc := core.AccountPayment("acc-1")
	title := "Fuel station"
	if err := r.UpdateTransaction(ctx, id, core.TransactionPatch{Payment: &acc, Title: &title}); err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}

	doc, _ := r.store.Get(ctx, Transactions, id)
	if _, ok := doc.Data["creditCardId"]; ok {
		t.Fatalf("creditCardId should be removed: %v", doc.Data)
	}
	if docstore.String(doc.Data, "accountId") != "acc-1" {
		t.Fatalf("accountId = %v", doc.Data["accountId"])
	}
	if docstore.Int64(doc.Data, "amount") != 100 {
		t.Fatalf("amount should be untouched")
	}

	none := core.NoPayment()
	_ = r.UpdateTransaction(ctx, id, core.TransactionPatch{Payment: &none})
	doc, _ = r.store.Get(ctx, Transactions, id)
	if _, ok := doc.Data["accountId"]; ok {
		t.Fatalf("accountId should be removed: %v", doc.Data)
	}
}

func TestListCardTransactionsRange(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	start := time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 10, 23, 59, 59, 999999999, time.UTC)

	add := func(user string, pay core.PaymentMethod, date time.Time) {
		t.Helper()
		_, err := r.CreateTransaction(ctx, core.Transaction{
			Type: core.Expense, Title: "x", Amount: core.Money{Cents: 100}, Date: date,
			Target: core.TargetPersonal, CreatedBy: user, Payment: pay,
		})
		if err != nil {
			t.Fatalf("CreateTransaction() error = %v", err)
		}
	}
	add("u1", core.CardPayment("c1"), start)
	add("u1", core.CardPayment("c1"), time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC))
	add("u1", core.CardPayment("c1"), time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC))
	add("u1", core.CardPayment("c2"), start)
	add("u2", core.CardPayment("c1"), start)
	add("u1", core.AccountPayment("a1"), start)

	txs, err := r.ListCardTransactions(ctx, "c1", "u1", start, end)
	if err != nil {
		t.Fatalf("ListCardTransactions() error = %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if !txs[0].Date.After(txs[1].Date) {
		t.Fatalf("expected newest first")
	}
}

func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	id, err := r.CreateAccount(ctx, core.Account{OwnerID: "u1", Name: "Main", Type: core.Checking, InitialBalance: core.Money{Cents: 5000}, Active: true})
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	acc, _ := r.GetAccount(ctx, id)
	if acc.Balance.Cents != 5000 {
		t.Fatalf("balance = %d, want initial balance", acc.Balance.Cents)
	}

	if err := r.AdjustAccountBalance(ctx, id, -1200); err != nil {
		t.Fatalf("AdjustAccountBalance() error = %v", err)
	}
	acc, _ = r.GetAccount(ctx, id)
	if acc.Balance.Cents != 3800 || acc.InitialBalance.Cents != 5000 {
		t.Fatalf("after adjust: %+v", acc)
	}

	reset := core.Money{Cents: 100}
	_ = r.UpdateAccount(ctx, id, core.AccountPatch{InitialBalance: &reset})
	acc, _ = r.GetAccount(ctx, id)
	if acc.Balance.Cents != 100 || acc.InitialBalance.Cents != 100 {
		t.Fatalf("reset should set both balances: %+v", acc)
	}

	if err := r.AdjustAccountBalance(ctx, "missing", 1); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("AdjustAccountBalance() on missing = %v, want ErrAccountNotFound", err)
	}
	if _, err := r.GetAccount(ctx, "missing"); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("GetAccount() on missing = %v, want ErrAccountNotFound", err)
	}

	inactive := false
	_ = r.UpdateAccount(ctx, id, core.AccountPatch{Active: &inactive})
	list, _ := r.ListAccounts(ctx, "u1", true)
	if len(list) != 0 {
		t.Fatalf("inactive account listed as active")
	}
}

func TestBillsUniqueAndCovering(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	p := core.CalculateBillingPeriod(10, 20, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	bill := core.Bill{CreditCardID: "c1", UserID: "u1", PeriodStart: p.Start, ClosingDate: p.End, DueDate: p.Due, Status: core.BillOpen}

	id, err := r.CreateBill(ctx, bill)
	if err != nil {
		t.Fatalf("CreateBill() error = %v", err)
	}
	if _, err := r.CreateBill(ctx, bill); !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("duplicate CreateBill() = %v, want ErrConflict", err)
	}

	found, err := r.FindBills(ctx, "c1", "u1", p.End)
	if err != nil || len(found) != 1 || found[0].ID != id {
		t.Fatalf("FindBills() = %v, %v", found, err)
	}
	if !found[0].ClosingDate.Equal(p.End.Truncate(time.Millisecond)) {
		t.Fatalf("closing date = %v, want %v", found[0].ClosingDate, p.End)
	}

	got, ok, err := r.FindBillCovering(ctx, "c1", "u1", time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC))
	if err != nil || !ok || got.ID != id {
		t.Fatalf("FindBillCovering() = %v, %v, %v", got.ID, ok, err)
	}
	if _, ok, _ := r.FindBillCovering(ctx, "c1", "u1", time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)); ok {
		t.Fatalf("date after closing should not be covered")
	}

	at := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	if err := r.RecordBillPayment(ctx, id, core.Money{Cents: 0}, true, "acc-1", at); err != nil {
		t.Fatalf("RecordBillPayment() error = %v", err)
	}
	got, _ = r.GetBill(ctx, id)
	if got.Status != core.BillPaid || got.PaymentAccountID != "acc-1" || !got.PaidAt.Equal(at) {
		t.Fatalf("unexpected bill after payment %+v", got)
	}
}

func TestInTxRollsBackAllWrites(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	acc, _ := r.CreateAccount(ctx, core.Account{OwnerID: "u1", Name: "Main", Type: core.Checking, InitialBalance: core.Money{Cents: 1000}, Active: true})

	boom := errors.New("boom")
	err := r.InTx(ctx, func(ctx context.Context, tx *Repository) error {
		if err := tx.AdjustAccountBalance(ctx, acc, -500); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		return tx.InTx(ctx, func(ctx context.Context, inner *Repository) error {
			if err := inner.AdjustAccountBalance(ctx, acc, -100); err != nil {
				return err
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}
	a, _ := r.GetAccount(ctx, acc)
	if a.Balance.Cents != 1000 {
		t.Fatalf("balance = %d, want 1000", a.Balance.Cents)
	}
}

func TestSubscribeBillsStream(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	stream, err := r.SubscribeBills(ctx, "c1", "u1")
	if err != nil {
		t.Fatalf("SubscribeBills() error = %v", err)
	}
	defer stream.Close()

	select {
	case bills := <-stream.Updates():
		if len(bills) != 0 {
			t.Fatalf("initial snapshot = %d bills", len(bills))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}

	for _, ref := range []time.Time{
		time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
	} {
		p := core.CalculateBillingPeriod(10, 20, ref)
		_, _ = r.CreateBill(ctx, core.Bill{CreditCardID: "c1", UserID: "u1", PeriodStart: p.Start, ClosingDate: p.End, DueDate: p.Due, Status: core.BillOpen})
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case bills := <-stream.Updates():
			if len(bills) < 2 {
				continue
			}
			if !bills[0].DueDate.After(bills[1].DueDate) {
				t.Fatalf("bills should be sorted by due date descending")
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for both bills")
		}
	}
}

func TestPing(t *testing.T) {
	r := newTestRepo()
	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestTransactionSkipsUnreadableSplitRules(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	id, err := r.store.Create(ctx, Transactions, map[string]any{
		"type":   "expense",
		"title":  "Dinner",
		"amount": int64(1000),
		"date":   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		"target": "shared",
		"sharedWith": []map[string]any{
			{"userId": "u1", "percentage": "fifty"},
			{"userId": "u2", "percentage": "50"},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := r.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if len(got.SharedWith) != 1 || got.SharedWith[0].UserID != "u2" {
		t.Fatalf("sharedWith = %+v, want only u2", got.SharedWith)
	}
	if !got.SharedWith[0].Percentage.Equal(decimal.NewFromInt(50)) {
		t.Errorf("percentage = %s, want 50", got.SharedWith[0].Percentage)
	}
}
