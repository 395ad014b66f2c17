package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func pct(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestValidateSplitRules(t *testing.T) {
	tests := []struct {
		name  string
		rules []SplitRule
		ok    bool
	}{
		{"empty", nil, false},
		{"single full", []SplitRule{{UserID: "a", Percentage: pct("100")}}, true},
		{"thirds within tolerance", []SplitRule{{UserID: "a", Percentage: pct("33.33")}, {UserID: "b", Percentage: pct("33.33")}, {UserID: "c", Percentage: pct("33.34")}}, true},
		{"short of 100", []SplitRule{{UserID: "a", Percentage: pct("50")}, {UserID: "b", Percentage: pct("40")}}, false},
		{"zero share", []SplitRule{{UserID: "a", Percentage: pct("100")}, {UserID: "b", Percentage: pct("0")}}, false},
		{"duplicate member", []SplitRule{{UserID: "a", Percentage: pct("50")}, {UserID: "a", Percentage: pct("50")}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSplitRules(tt.rules)
			if tt.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidSplit) {
				t.Fatalf("expected ErrInvalidSplit, got %v", err)
			}
		})
	}
}

func TestEqualSplit(t *testing.T) {
	rules := EqualSplit([]string{"a", "b", "c"})
	if len(rules) != 3 {
		t.Fatalf("got %d rules", len(rules))
	}
	if !rules[0].Percentage.Equal(pct("33.34")) || !rules[1].Percentage.Equal(pct("33.33")) {
		t.Fatalf("unexpected shares %v %v", rules[0].Percentage, rules[1].Percentage)
	}
	if err := ValidateSplitRules(rules); err != nil {
		t.Fatalf("equal split must validate: %v", err)
	}
	if EqualSplit(nil) != nil {
		t.Fatalf("expected nil for no users")
	}
}

func TestCalculateSplit(t *testing.T) {
	tx := Transaction{
		Type:    Expense,
		Amount:  Money{Cents: 10000},
		PayerID: "a",
		Target:  TargetShared,
		SharedWith: []SplitRule{
			{UserID: "a", Percentage: pct("60")},
			{UserID: "b", Percentage: pct("40")},
		},
	}
	got := CalculateSplit(tx)
	if got["a"] != -6000 || got["b"] != 4000 {
		t.Fatalf("expense split = %v", got)
	}

	tx.Type = Income
	got = CalculateSplit(tx)
	if got["a"] != 6000 || got["b"] != -4000 {
		t.Fatalf("income split = %v", got)
	}

	tx.Target = TargetPersonal
	if got := CalculateSplit(tx); len(got) != 0 {
		t.Fatalf("personal transaction should not split, got %v", got)
	}
}

func TestCalculateBalance(t *testing.T) {
	txs := []Transaction{
		{Type: Income, Amount: Money{Cents: 500000}, Target: TargetPersonal, PayerID: "me"},
		{Type: Expense, Amount: Money{Cents: 20000}, Target: TargetPersonal, PayerID: "me"},
		{Type: Expense, Amount: Money{Cents: 99999}, Target: TargetPersonal, PayerID: "other"},
		{Type: Expense, Amount: Money{Cents: 30000}, Target: TargetHousehold, PayerID: "other"},
		{Type: Expense, Amount: Money{Cents: 10000}, Target: TargetShared, PayerID: "other", SharedWith: []SplitRule{
			{UserID: "me", Percentage: pct("25")},
			{UserID: "other", Percentage: pct("75")},
		}},
	}
	got := CalculateBalance(txs, "me")
	if got.Personal.Income.Cents != 500000 || got.Personal.Expenses.Cents != 22500 {
		t.Fatalf("personal = %+v", got.Personal)
	}
	if got.Household.Expenses.Cents != 30000 {
		t.Fatalf("household = %+v", got.Household)
	}
	if got.Total.Net().Cents != 500000-22500-30000 {
		t.Fatalf("total net = %d", got.Total.Net().Cents)
	}
}

func TestFilterTransactions(t *testing.T) {
	d := func(n int) time.Time { return time.Date(2025, 3, n, 0, 0, 0, 0, time.UTC) }
	txs := []Transaction{
		{ID: "own", CreatedBy: "me", PayerID: "me", Date: d(1), Target: TargetPersonal},
		{ID: "household", CreatedBy: "bob", PayerID: "bob", Date: d(2), Target: TargetHousehold},
		{ID: "flagged", CreatedBy: "bob", PayerID: "bob", Date: d(3), Target: TargetPersonal, IsHouseholdExpense: true},
		{ID: "shared-with-me", CreatedBy: "bob", PayerID: "bob", Date: d(4), Target: TargetPersonal, SharedWithUsers: []string{"me"}},
		{ID: "private", CreatedBy: "bob", PayerID: "bob", Date: d(5), Target: TargetPersonal},
		{ID: "carol", CreatedBy: "carol", PayerID: "carol", Date: d(6), Target: TargetPersonal},
	}
	ids := func(ts []Transaction) []string {
		out := make([]string, len(ts))
		for i, t := range ts {
			out[i] = t.ID
		}
		return out
	}
	equal := func(a, b []string) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}

	tests := []struct {
		name   string
		filter TransactionFilter
		want   []string
	}{
		{"default visibility newest first", TransactionFilter{}, []string{"shared-with-me", "flagged", "household", "own"}},
		{"mutual opt in", TransactionFilter{ShowMemberTransactions: map[string]bool{"me": true, "bob": true}}, []string{"private", "shared-with-me", "flagged", "household", "own"}},
		{"one sided opt in", TransactionFilter{ShowMemberTransactions: map[string]bool{"carol": true}}, []string{"shared-with-me", "flagged", "household", "own"}},
		{"mine", TransactionFilter{FilterBy: FilterMine}, []string{"own"}},
		{"household flag only", TransactionFilter{FilterBy: FilterHousehold}, []string{"flagged"}},
		{"specific member", TransactionFilter{FilterBy: "bob"}, []string{"shared-with-me", "flagged", "household"}},
		{"date range", TransactionFilter{From: d(2), To: d(3)}, []string{"flagged", "household"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(FilterTransactions(txs, "me", tt.filter))
			if !equal(got, tt.want) {
				t.Errorf("FilterTransactions() = %v, want %v", got, tt.want)
			}
		})
	}
}
