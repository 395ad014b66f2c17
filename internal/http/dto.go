package http

import (
	"time"

	"finhouse/internal/core"
	"finhouse/internal/services"
)

type splitRuleRequest struct {
	UserID     string `json:"userId"`
	Percentage string `json:"percentage"`
}

// transactionRequest serves both create and update bodies. Pointer fields
// distinguish an absent field from a zero value.
type transactionRequest struct {
	Type               *string             `json:"type"`
	Title              *string             `json:"title"`
	Amount             *string             `json:"amount"`
	Date               *string             `json:"date"`
	Category           *string             `json:"category"`
	Notes              *string             `json:"notes"`
	PayerID            *string             `json:"payerId"`
	Target             *string             `json:"target"`
	SharedWith         *[]splitRuleRequest `json:"sharedWith"`
	IsHouseholdExpense *bool               `json:"isHouseholdExpense"`
	SharedWithUsers    *[]string           `json:"sharedWithUsers"`
	AccountID          *string             `json:"accountId"`
	CreditCardID       *string             `json:"creditCardId"`
	IsPaid             *bool               `json:"isPaid"`
}

// payment resolves the payment method fields. The boolean is false when the
// body mentions neither; an empty id clears the payment method.
func (req transactionRequest) payment() (core.PaymentMethod, bool) {
	switch {
	case req.AccountID != nil && *req.AccountID != "":
		return core.AccountPayment(*req.AccountID), true
	case req.CreditCardID != nil && *req.CreditCardID != "":
		return core.CardPayment(*req.CreditCardID), true
	case req.AccountID != nil || req.CreditCardID != nil:
		return core.NoPayment(), true
	}
	return core.PaymentMethod{}, false
}

type accountRequest struct {
	Name           *string `json:"name"`
	Type           *string `json:"type"`
	InitialBalance *string `json:"initialBalance"`
	Color          *string `json:"color"`
	Icon           *string `json:"icon"`
	IsActive       *bool   `json:"isActive"`
}

type cardRequest struct {
	Name       *string `json:"name"`
	LastFour   *string `json:"lastFour"`
	Limit      *string `json:"limit"`
	ClosingDay *int    `json:"closingDay"`
	DueDay     *int    `json:"dueDay"`
	Color      *string `json:"color"`
	Icon       *string `json:"icon"`
	IsActive   *bool   `json:"isActive"`
}

type paymentRequest struct {
	AccountID string `json:"accountId"`
	Amount    string `json:"amount"`
}

type splitRuleResponse struct {
	UserID     string `json:"userId"`
	Percentage string `json:"percentage"`
}

type transactionResponse struct {
	ID                 string              `json:"id"`
	HouseholdID        string              `json:"householdId"`
	Type               string              `json:"type"`
	Title              string              `json:"title"`
	Amount             string              `json:"amount"`
	Date               time.Time           `json:"date"`
	Category           string              `json:"category,omitempty"`
	Notes              string              `json:"notes,omitempty"`
	CreatedBy          string              `json:"createdBy"`
	PayerID            string              `json:"payerId,omitempty"`
	Target             string              `json:"target"`
	SharedWith         []splitRuleResponse `json:"sharedWith,omitempty"`
	IsHouseholdExpense bool                `json:"isHouseholdExpense"`
	SharedWithUsers    []string            `json:"sharedWithUsers,omitempty"`
	AccountID          string              `json:"accountId,omitempty"`
	CreditCardID       string              `json:"creditCardId,omitempty"`
	IsPaid             bool                `json:"isPaid"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

func newTransactionResponse(t core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                 t.ID,
		HouseholdID:        t.HouseholdID,
		Type:               string(t.Type),
		Title:              t.Title,
		Amount:             t.Amount.String(),
		Date:               t.Date,
		Category:           t.Category,
		Notes:              t.Notes,
		CreatedBy:          t.CreatedBy,
		PayerID:            t.PayerID,
		Target:             string(t.Target),
		IsHouseholdExpense: t.IsHouseholdExpense,
		SharedWithUsers:    t.SharedWithUsers,
		IsPaid:             t.IsPaid,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
	for _, r := range t.SharedWith {
		resp.SharedWith = append(resp.SharedWith, splitRuleResponse{UserID: r.UserID, Percentage: r.Percentage.String()})
	}
	resp.AccountID, _ = t.Payment.AccountID()
	resp.CreditCardID, _ = t.Payment.CreditCardID()
	return resp
}

func newTransactionResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, len(txs))
	for i, t := range txs {
		out[i] = newTransactionResponse(t)
	}
	return out
}

type accountResponse struct {
	ID             string    `json:"id"`
	HouseholdID    string    `json:"householdId,omitempty"`
	OwnerID        string    `json:"ownerId"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Balance        string    `json:"balance"`
	InitialBalance string    `json:"initialBalance"`
	Color          string    `json:"color,omitempty"`
	Icon           string    `json:"icon,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func newAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		HouseholdID:    a.HouseholdID,
		OwnerID:        a.OwnerID,
		Name:           a.Name,
		Type:           string(a.Type),
		Balance:        a.Balance.String(),
		InitialBalance: a.InitialBalance.String(),
		Color:          a.Color,
		Icon:           a.Icon,
		IsActive:       a.Active,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type cardResponse struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"householdId,omitempty"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	LastFour    string    `json:"lastFour"`
	Limit       string    `json:"limit"`
	ClosingDay  int       `json:"closingDay"`
	DueDay      int       `json:"dueDay"`
	Color       string    `json:"color,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newCardResponse(c core.CreditCard) cardResponse {
	return cardResponse{
		ID:          c.ID,
		HouseholdID: c.HouseholdID,
		OwnerID:     c.OwnerID,
		Name:        c.Name,
		LastFour:    c.LastFour,
		Limit:       c.Limit.String(),
		ClosingDay:  c.ClosingDay,
		DueDay:      c.DueDay,
		Color:       c.Color,
		Icon:        c.Icon,
		IsActive:    c.Active,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type billResponse struct {
	ID               string     `json:"id"`
	CreditCardID     string     `json:"creditCardId"`
	UserID           string     `json:"userId"`
	PeriodStart      time.Time  `json:"periodStart"`
	ClosingDate      time.Time  `json:"closingDate"`
	DueDate          time.Time  `json:"dueDate"`
	TotalAmount      string     `json:"totalAmount"`
	PaidAmount       string     `json:"paidAmount"`
	Remaining        string     `json:"remaining"`
	Status           string     `json:"status"`
	Transactions     []string   `json:"transactions"`
	PaymentAccountID string     `json:"paymentAccountId,omitempty"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
}

// newBillResponse reports the status as of now, so unpaid bills past their
// due date read as overdue.
func newBillResponse(b core.Bill, now time.Time) billResponse {
	resp := billResponse{
		ID:               b.ID,
		CreditCardID:     b.CreditCardID,
		UserID:           b.UserID,
		PeriodStart:      b.PeriodStart,
		ClosingDate:      b.ClosingDate,
		DueDate:          b.DueDate,
		TotalAmount:      b.Total.String(),
		PaidAmount:       b.Paid.String(),
		Remaining:        b.Remaining().String(),
		Status:           string(b.EffectiveStatus(now)),
		Transactions:     b.TransactionIDs,
		PaymentAccountID: b.PaymentAccountID,
	}
	if resp.Transactions == nil {
		resp.Transactions = []string{}
	}
	if !b.PaidAt.IsZero() {
		at := b.PaidAt
		resp.PaidAt = &at
	}
	return resp
}

func newBillResponses(bills []core.Bill, now time.Time) []billResponse {
	out := make([]billResponse, len(bills))
	for i, b := range bills {
		out[i] = newBillResponse(b, now)
	}
	return out
}

type cardSnapshotResponse struct {
	Card         cardResponse `json:"card"`
	Bill         billResponse `json:"bill"`
	Status       string       `json:"status"`
	CurrentUsage string       `json:"currentUsage"`
	Outstanding  string       `json:"outstanding"`
	Available    string       `json:"available"`
	Transactions int          `json:"transactions"`
}

func newCardSnapshotResponse(s services.CardSnapshot, now time.Time) cardSnapshotResponse {
	return cardSnapshotResponse{
		Card:         newCardResponse(s.Card),
		Bill:         newBillResponse(s.Bill, now),
		Status:       string(s.Status),
		CurrentUsage: s.Usage.Total.String(),
		Outstanding:  s.Outstanding.String(),
		Available:    s.Available.String(),
		Transactions: len(s.Usage.Transactions),
	}
}

type flowResponse struct {
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
	Net      string `json:"net"`
}

func newFlowResponse(f core.Flow) flowResponse {
	return flowResponse{Income: f.Income.String(), Expenses: f.Expenses.String(), Net: f.Net().String()}
}

type summaryResponse struct {
	Personal  flowResponse `json:"personal"`
	Household flowResponse `json:"household"`
	Total     flowResponse `json:"total"`
}

func newSummaryResponse(s core.BalanceSummary) summaryResponse {
	return summaryResponse{
		Personal:  newFlowResponse(s.Personal),
		Household: newFlowResponse(s.Household),
		Total:     newFlowResponse(s.Total),
	}
}
