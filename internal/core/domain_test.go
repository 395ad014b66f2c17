package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
}

func TestCreditCardValidate(t *testing.T) {
	good := CreditCard{Name: "Visa", LastFour: "1234", Limit: Money{Cents: 500000}, ClosingDay: 10, DueDay: 20}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*CreditCard)
		want   error
	}{
		{"empty name", func(c *CreditCard) { c.Name = " " }, ErrEmptyName},
		{"short last four", func(c *CreditCard) { c.LastFour = "123" }, ErrInvalidLastFour},
		{"non digit last four", func(c *CreditCard) { c.LastFour = "12a4" }, ErrInvalidLastFour},
		{"negative limit", func(c *CreditCard) { c.Limit = Money{Cents: -1} }, ErrInvalidLimit},
		{"closing day zero", func(c *CreditCard) { c.ClosingDay = 0 }, ErrInvalidDay},
		{"due day 32", func(c *CreditCard) { c.DueDay = 32 }, ErrInvalidDay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := good
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type:    Expense,
		Title:   "Groceries",
		Amount:  Money{Cents: 4500},
		Date:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Target:  TargetPersonal,
		Payment: AccountPayment("acc-1"),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"bad type", func(tx *Transaction) { tx.Type = "transfer" }, ErrInvalidType},
		{"empty title", func(tx *Transaction) { tx.Title = "" }, ErrEmptyTitle},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"zero date", func(tx *Transaction) { tx.Date = time.Time{} }, ErrZeroDate},
		{"bad target", func(tx *Transaction) { tx.Target = "team" }, ErrInvalidTarget},
		{"account without id", func(tx *Transaction) { tx.Payment = AccountPayment("") }, ErrInvalidPayment},
		{"bad split", func(tx *Transaction) {
			tx.Target = TargetShared
			tx.SharedWith = []SplitRule{{UserID: "a", Percentage: decimal.NewFromInt(60)}}
		}, ErrInvalidSplit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := good
			tt.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPaymentMethod(t *testing.T) {
	if NoPayment().Kind() != PaymentNone {
		t.Fatalf("zero payment should be none")
	}
	acc := AccountPayment("acc-1")
	if id, ok := acc.AccountID(); !ok || id != "acc-1" {
		t.Fatalf("AccountID() = %q, %v", id, ok)
	}
	if _, ok := acc.CreditCardID(); ok {
		t.Fatalf("account payment must not expose a card id")
	}
	card := CardPayment("card-1")
	if id, ok := card.CreditCardID(); !ok || id != "card-1" {
		t.Fatalf("CreditCardID() = %q, %v", id, ok)
	}
	if _, ok := card.AccountID(); ok {
		t.Fatalf("card payment must not expose an account id")
	}
	if acc == card {
		t.Fatalf("distinct payment methods compare equal")
	}
}

func TestBalanceEffect(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		account string
		delta   int64
		ok      bool
	}{
		{"paid expense on account", Transaction{Type: Expense, Amount: Money{Cents: 3000}, Payment: AccountPayment("a"), IsPaid: true}, "a", -3000, true},
		{"paid income on account", Transaction{Type: Income, Amount: Money{Cents: 3000}, Payment: AccountPayment("a"), IsPaid: true}, "a", 3000, true},
		{"unpaid expense", Transaction{Type: Expense, Amount: Money{Cents: 3000}, Payment: AccountPayment("a")}, "", 0, false},
		{"card expense", Transaction{Type: Expense, Amount: Money{Cents: 3000}, Payment: CardPayment("c"), IsPaid: true}, "", 0, false},
		{"cash expense", Transaction{Type: Expense, Amount: Money{Cents: 3000}, IsPaid: true}, "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, delta, ok := tt.tx.BalanceEffect()
			if account != tt.account || delta != tt.delta || ok != tt.ok {
				t.Errorf("BalanceEffect() = (%q, %d, %v), want (%q, %d, %v)", account, delta, ok, tt.account, tt.delta, tt.ok)
			}
		})
	}
}

func TestBillEffectiveStatus(t *testing.T) {
	due := time.Date(2025, 4, 20, 23, 59, 59, 0, time.UTC)
	before := due.Add(-time.Hour)
	after := due.Add(time.Hour)

	tests := []struct {
		name string
		bill Bill
		now  time.Time
		want BillStatus
	}{
		{"open before due", Bill{Status: BillOpen, DueDate: due, Total: Money{Cents: 100}}, before, BillOpen},
		{"open after due with balance", Bill{Status: BillOpen, DueDate: due, Total: Money{Cents: 100}}, after, BillOverdue},
		{"closed after due with balance", Bill{Status: BillClosed, DueDate: due, Total: Money{Cents: 100}}, after, BillOverdue},
		{"settled after due", Bill{Status: BillOpen, DueDate: due, Total: Money{Cents: 100}, Paid: Money{Cents: 100}}, after, BillOpen},
		{"paid stays paid", Bill{Status: BillPaid, DueDate: due, Total: Money{Cents: 100}, Paid: Money{Cents: 100}}, after, BillPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bill.EffectiveStatus(tt.now); got != tt.want {
				t.Errorf("EffectiveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}
