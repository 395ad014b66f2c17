package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	TargetPersonal  Target = "personal"
	TargetHousehold Target = "household"
	TargetShared    Target = "shared"
)

const (
	BillOpen    BillStatus = "open"
	BillClosed  BillStatus = "closed"
	BillPaid    BillStatus = "paid"
	BillOverdue BillStatus = "overdue"
)

const (
	Checking   AccountType = "checking"
	Savings    AccountType = "savings"
	Investment AccountType = "investment"
	Cash       AccountType = "cash"
)

type (
	TransactionType string
	Target          string
	BillStatus      string
	AccountType     string

	Money struct {
		Cents int64
	}

	// SplitRule assigns a percentage of a shared transaction to a member.
	SplitRule struct {
		UserID     string
		Percentage decimal.Decimal
	}

	CreditCard struct {
		ID          string
		HouseholdID string
		OwnerID     string
		Name        string
		LastFour    string
		Limit       Money
		ClosingDay  int // 1-31, clamped per month
		DueDay      int // 1-31, clamped per month
		Color       string
		Icon        string
		Active      bool
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Account struct {
		ID             string
		HouseholdID    string
		OwnerID        string
		Name           string
		Type           AccountType
		Balance        Money // may be negative
		InitialBalance Money
		Color          string
		Icon           string
		Active         bool
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	Transaction struct {
		ID                 string
		HouseholdID        string
		Type               TransactionType
		Title              string
		Amount             Money
		Date               time.Time
		Category           string
		Notes              string
		CreatedBy          string
		PayerID            string
		Target             Target
		SharedWith         []SplitRule
		IsHouseholdExpense bool
		SharedWithUsers    []string
		Payment            PaymentMethod
		IsPaid             bool
		CreatedAt          time.Time
		UpdatedAt          time.Time
	}

	// Bill is the statement of one card for one user over one billing period.
	// (CreditCardID, UserID, ClosingDate) identifies it.
	Bill struct {
		ID               string
		CreditCardID     string
		HouseholdID      string
		UserID           string
		PeriodStart      time.Time
		ClosingDate      time.Time
		DueDate          time.Time
		Total            Money
		Paid             Money
		Status           BillStatus
		TransactionIDs   []string
		PaymentAccountID string
		PaidAt           time.Time
		CreatedAt        time.Time
		UpdatedAt        time.Time
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidLastFour   = errors.New("last four digits must be exactly 4 digits")
	ErrInvalidLimit      = errors.New("invalid credit limit")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyTitle        = errors.New("empty title")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidTarget     = errors.New("invalid target")
	ErrInvalidAccount    = errors.New("invalid account type")
	ErrInvalidPayment    = errors.New("invalid payment method")
	ErrZeroDate          = errors.New("date cannot be zero")
	ErrOverpayment       = errors.New("payment exceeds remaining bill amount")
	ErrInsufficientFunds = errors.New("insufficient account balance")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrCardNotFound        = errors.New("credit card not found")
	ErrBillNotFound        = errors.New("bill not found")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return ErrInvalidType
}

func (t Target) Validate() error {
	switch t {
	case TargetPersonal, TargetHousehold, TargetShared:
		return nil
	}
	return ErrInvalidTarget
}

func (t AccountType) Validate() error {
	switch t {
	case Checking, Savings, Investment, Cash:
		return nil
	}
	return ErrInvalidAccount
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.LastFour) != 4 {
		return ErrInvalidLastFour
	}
	for _, r := range c.LastFour {
		if r < '0' || r > '9' {
			return ErrInvalidLastFour
		}
	}
	if c.Limit.Cents < 0 {
		return ErrInvalidLimit
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return ErrInvalidDay
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return ErrInvalidDay
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return a.Type.Validate()
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if err := t.Target.Validate(); err != nil {
		return err
	}
	if err := t.Payment.Validate(); err != nil {
		return err
	}
	if t.Target == TargetShared && len(t.SharedWith) > 0 {
		if err := ValidateSplitRules(t.SharedWith); err != nil {
			return err
		}
	}
	return nil
}

// SignedAmount is the amount as it affects an account: positive for income,
// negative for expense.
func (t Transaction) SignedAmount() int64 {
	if t.Type == Income {
		return t.Amount.Cents
	}
	return -t.Amount.Cents
}

// BalanceEffect reports the account a transaction moves and by how much.
// Only paid, account-linked transactions have an effect.
func (t Transaction) BalanceEffect() (accountID string, delta int64, ok bool) {
	id, linked := t.Payment.AccountID()
	if !linked || !t.IsPaid {
		return "", 0, false
	}
	return id, t.SignedAmount(), true
}

// Remaining is what is still owed on the bill. It is negative on overpayment.
func (b Bill) Remaining() Money {
	return Money{Cents: b.Total.Cents - b.Paid.Cents}
}

// EffectiveStatus derives overdue from an open bill whose due date passed
// while something is still owed.
func (b Bill) EffectiveStatus(now time.Time) BillStatus {
	if b.Status == BillPaid || b.Status == BillOverdue {
		return b.Status
	}
	if now.After(b.DueDate) && b.Paid.Cents < b.Total.Cents {
		return BillOverdue
	}
	return b.Status
}

// Refreshable reports whether the bill total may still follow its usage.
func (b Bill) Refreshable() bool {
	return b.Status == BillOpen || b.Status == BillOverdue
}

// IsFullyPaid reports whether payments cover the total.
func (b Bill) IsFullyPaid() bool {
	return b.Paid.Cents >= b.Total.Cents
}
