package core

import "time"

// Patches describe sparse edits: nil fields are left untouched.
type (
	TransactionPatch struct {
		Type               *TransactionType
		Title              *string
		Amount             *Money
		Date               *time.Time
		Category           *string
		Notes              *string
		PayerID            *string
		Target             *Target
		SharedWith         *[]SplitRule
		IsHouseholdExpense *bool
		SharedWithUsers    *[]string
		Payment            *PaymentMethod
		IsPaid             *bool
	}

	AccountPatch struct {
		Name *string
		Type *AccountType
		// InitialBalance resets both the initial and the running balance.
		InitialBalance *Money
		Color          *string
		Icon           *string
		Active         *bool
	}

	CardPatch struct {
		Name       *string
		LastFour   *string
		Limit      *Money
		ClosingDay *int
		DueDay     *int
		Color      *string
		Icon       *string
		Active     *bool
	}
)

// Apply returns t with the patch's fields applied.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.PayerID != nil {
		t.PayerID = *p.PayerID
	}
	if p.Target != nil {
		t.Target = *p.Target
	}
	if p.SharedWith != nil {
		t.SharedWith = *p.SharedWith
	}
	if p.IsHouseholdExpense != nil {
		t.IsHouseholdExpense = *p.IsHouseholdExpense
	}
	if p.SharedWithUsers != nil {
		t.SharedWithUsers = *p.SharedWithUsers
	}
	if p.Payment != nil {
		t.Payment = *p.Payment
	}
	if p.IsPaid != nil {
		t.IsPaid = *p.IsPaid
	}
	return t
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p == TransactionPatch{}
}

func (p AccountPatch) Apply(a Account) Account {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.InitialBalance != nil {
		a.InitialBalance = *p.InitialBalance
		a.Balance = *p.InitialBalance
	}
	if p.Color != nil {
		a.Color = *p.Color
	}
	if p.Icon != nil {
		a.Icon = *p.Icon
	}
	if p.Active != nil {
		a.Active = *p.Active
	}
	return a
}

func (p CardPatch) Apply(c CreditCard) CreditCard {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.LastFour != nil {
		c.LastFour = *p.LastFour
	}
	if p.Limit != nil {
		c.Limit = *p.Limit
	}
	if p.ClosingDay != nil {
		c.ClosingDay = *p.ClosingDay
	}
	if p.DueDay != nil {
		c.DueDay = *p.DueDay
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.Active != nil {
		c.Active = *p.Active
	}
	return c
}
