package storage

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"finhouse/internal/core"
	"finhouse/internal/docstore"
)

const (
	Accounts     = "accounts"
	CreditCards  = "creditCards"
	Transactions = "transactions"
	Bills        = "creditCardBills"
)

// BillUniqueFields identify a bill: one per card, user and closing date.
var BillUniqueFields = []string{"creditCardId", "userId", "closingDate"}

func accountToDoc(a core.Account, now time.Time) map[string]any {
	return map[string]any{
		"householdId":    a.HouseholdID,
		"ownerId":        a.OwnerID,
		"name":           a.Name,
		"type":           string(a.Type),
		"balance":        a.Balance.Cents,
		"initialBalance": a.InitialBalance.Cents,
		"color":          a.Color,
		"icon":           a.Icon,
		"isActive":       a.Active,
		"createdAt":      now,
		"updatedAt":      now,
	}
}

func accountFromDoc(d docstore.Document, loc *time.Location) core.Account {
	return core.Account{
		ID:             d.ID,
		HouseholdID:    docstore.String(d.Data, "householdId"),
		OwnerID:        docstore.String(d.Data, "ownerId"),
		Name:           docstore.String(d.Data, "name"),
		Type:           core.AccountType(docstore.String(d.Data, "type")),
		Balance:        core.Money{Cents: docstore.Int64(d.Data, "balance")},
		InitialBalance: core.Money{Cents: docstore.Int64(d.Data, "initialBalance")},
		Color:          docstore.String(d.Data, "color"),
		Icon:           docstore.String(d.Data, "icon"),
		Active:         docstore.Bool(d.Data, "isActive"),
		CreatedAt:      docstore.Time(d.Data, "createdAt", loc),
		UpdatedAt:      docstore.Time(d.Data, "updatedAt", loc),
	}
}

func accountPatchToDoc(p core.AccountPatch, now time.Time) map[string]any {
	m := map[string]any{"updatedAt": now}
	if p.Name != nil {
		m["name"] = *p.Name
	}
	if p.Type != nil {
		m["type"] = string(*p.Type)
	}
	if p.InitialBalance != nil {
		m["initialBalance"] = p.InitialBalance.Cents
		m["balance"] = p.InitialBalance.Cents
	}
	if p.Color != nil {
		m["color"] = *p.Color
	}
	if p.Icon != nil {
		m["icon"] = *p.Icon
	}
	if p.Active != nil {
		m["isActive"] = *p.Active
	}
	return m
}

func cardToDoc(c core.CreditCard, now time.Time) map[string]any {
	return map[string]any{
		"householdId":    c.HouseholdID,
		"ownerId":        c.OwnerID,
		"name":           c.Name,
		"lastFourDigits": c.LastFour,
		"limit":          c.Limit.Cents,
		"closingDay":     c.ClosingDay,
		"dueDay":         c.DueDay,
		"color":          c.Color,
		"icon":           c.Icon,
		"isActive":       c.Active,
		"createdAt":      now,
		"updatedAt":      now,
	}
}

func cardFromDoc(d docstore.Document, loc *time.Location) core.CreditCard {
	return core.CreditCard{
		ID:          d.ID,
		HouseholdID: docstore.String(d.Data, "householdId"),
		OwnerID:     docstore.String(d.Data, "ownerId"),
		Name:        docstore.String(d.Data, "name"),
		LastFour:    docstore.String(d.Data, "lastFourDigits"),
		Limit:       core.Money{Cents: docstore.Int64(d.Data, "limit")},
		ClosingDay:  int(docstore.Int64(d.Data, "closingDay")),
		DueDay:      int(docstore.Int64(d.Data, "dueDay")),
		Color:       docstore.String(d.Data, "color"),
		Icon:        docstore.String(d.Data, "icon"),
		Active:      docstore.Bool(d.Data, "isActive"),
		CreatedAt:   docstore.Time(d.Data, "createdAt", loc),
		UpdatedAt:   docstore.Time(d.Data, "updatedAt", loc),
	}
}

func cardPatchToDoc(p core.CardPatch, now time.Time) map[string]any {
	m := map[string]any{"updatedAt": now}
	if p.Name != nil {
		m["name"] = *p.Name
	}
	if p.LastFour != nil {
		m["lastFourDigits"] = *p.LastFour
	}
	if p.Limit != nil {
		m["limit"] = p.Limit.Cents
	}
	if p.ClosingDay != nil {
		m["closingDay"] = *p.ClosingDay
	}
	if p.DueDay != nil {
		m["dueDay"] = *p.DueDay
	}
	if p.Color != nil {
		m["color"] = *p.Color
	}
	if p.Icon != nil {
		m["icon"] = *p.Icon
	}
	if p.Active != nil {
		m["isActive"] = *p.Active
	}
	return m
}

func transactionToDoc(t core.Transaction, now time.Time) map[string]any {
	m := map[string]any{
		"householdId":        t.HouseholdID,
		"type":               string(t.Type),
		"title":              t.Title,
		"amount":             t.Amount.Cents,
		"date":               t.Date,
		"category":           t.Category,
		"notes":              t.Notes,
		"createdBy":          t.CreatedBy,
		"payerId":            t.PayerID,
		"target":             string(t.Target),
		"isHouseholdExpense": t.IsHouseholdExpense,
		"isPaid":             t.IsPaid,
		"createdAt":          now,
		"updatedAt":          now,
	}
	if len(t.SharedWith) > 0 {
		m["sharedWith"] = splitRulesToDoc(t.SharedWith)
	}
	if len(t.SharedWithUsers) > 0 {
		m["sharedWithUsers"] = t.SharedWithUsers
	}
	for k, v := range paymentToDoc(t.Payment) {
		if !docstore.IsDeleteField(v) {
			m[k] = v
		}
	}
	return m
}

// paymentToDoc writes exactly one of accountId and creditCardId and clears
// the other.
func paymentToDoc(p core.PaymentMethod) map[string]any {
	m := map[string]any{"accountId": docstore.DeleteField, "creditCardId": docstore.DeleteField}
	if id, ok := p.AccountID(); ok {
		m["accountId"] = id
	}
	if id, ok := p.CreditCardID(); ok {
		m["creditCardId"] = id
	}
	return m
}

func paymentFromDoc(data map[string]any) core.PaymentMethod {
	if id := docstore.String(data, "creditCardId"); id != "" {
		return core.CardPayment(id)
	}
	if id := docstore.String(data, "accountId"); id != "" {
		return core.AccountPayment(id)
	}
	return core.NoPayment()
}

func splitRulesToDoc(rules []core.SplitRule) []any {
	out := make([]any, len(rules))
	for i, r := range rules {
		out[i] = map[string]any{"userId": r.UserID, "percentage": r.Percentage.String()}
	}
	return out
}

func splitRulesFromDoc(data map[string]any) []core.SplitRule {
	raw := docstore.Maps(data, "sharedWith")
	if len(raw) == 0 {
		return nil
	}
	out := make([]core.SplitRule, 0, len(raw))
	for _, m := range raw {
		var pct decimal.Decimal
		switch v := m["percentage"].(type) {
		case string:
			var err error
			if pct, err = decimal.NewFromString(v); err != nil {
				slog.Warn("Skipping split rule with unreadable percentage",
					"user_id", docstore.String(m, "userId"),
					"percentage", v,
					"error", err)
				continue
			}
		case int64:
			pct = decimal.NewFromInt(v)
		case float64:
			pct = decimal.NewFromFloat(v)
		default:
			slog.Warn("Skipping split rule without percentage", "user_id", docstore.String(m, "userId"))
			continue
		}
		out = append(out, core.SplitRule{UserID: docstore.String(m, "userId"), Percentage: pct})
	}
	return out
}

func transactionFromDoc(d docstore.Document, loc *time.Location) core.Transaction {
	return core.Transaction{
		ID:                 d.ID,
		HouseholdID:        docstore.String(d.Data, "householdId"),
		Type:               core.TransactionType(docstore.String(d.Data, "type")),
		Title:              docstore.String(d.Data, "title"),
		Amount:             core.Money{Cents: docstore.Int64(d.Data, "amount")},
		Date:               docstore.Time(d.Data, "date", loc),
		Category:           docstore.String(d.Data, "category"),
		Notes:              docstore.String(d.Data, "notes"),
		CreatedBy:          docstore.String(d.Data, "createdBy"),
		PayerID:            docstore.String(d.Data, "payerId"),
		Target:             core.Target(docstore.String(d.Data, "target")),
		SharedWith:         splitRulesFromDoc(d.Data),
		IsHouseholdExpense: docstore.Bool(d.Data, "isHouseholdExpense"),
		SharedWithUsers:    docstore.Strings(d.Data, "sharedWithUsers"),
		Payment:            paymentFromDoc(d.Data),
		IsPaid:             docstore.Bool(d.Data, "isPaid"),
		CreatedAt:          docstore.Time(d.Data, "createdAt", loc),
		UpdatedAt:          docstore.Time(d.Data, "updatedAt", loc),
	}
}

func transactionPatchToDoc(p core.TransactionPatch, now time.Time) map[string]any {
	m := map[string]any{"updatedAt": now}
	if p.Type != nil {
		m["type"] = string(*p.Type)
	}
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.Amount != nil {
		m["amount"] = p.Amount.Cents
	}
	if p.Date != nil {
		m["date"] = *p.Date
	}
	if p.Category != nil {
		m["category"] = *p.Category
	}
	if p.Notes != nil {
		m["notes"] = *p.Notes
	}
	if p.PayerID != nil {
		m["payerId"] = *p.PayerID
	}
	if p.Target != nil {
		m["target"] = string(*p.Target)
	}
	if p.SharedWith != nil {
		if len(*p.SharedWith) == 0 {
			m["sharedWith"] = docstore.DeleteField
		} else {
			m["sharedWith"] = splitRulesToDoc(*p.SharedWith)
		}
	}
	if p.IsHouseholdExpense != nil {
		m["isHouseholdExpense"] = *p.IsHouseholdExpense
	}
	if p.SharedWithUsers != nil {
		if len(*p.SharedWithUsers) == 0 {
			m["sharedWithUsers"] = docstore.DeleteField
		} else {
			m["sharedWithUsers"] = *p.SharedWithUsers
		}
	}
	if p.Payment != nil {
		for k, v := range paymentToDoc(*p.Payment) {
			m[k] = v
		}
	}
	if p.IsPaid != nil {
		m["isPaid"] = *p.IsPaid
	}
	return m
}

func billToDoc(b core.Bill, now time.Time) map[string]any {
	ids := b.TransactionIDs
	if ids == nil {
		ids = []string{}
	}
	m := map[string]any{
		"creditCardId": b.CreditCardID,
		"householdId":  b.HouseholdID,
		"userId":       b.UserID,
		"periodStart":  b.PeriodStart,
		"closingDate":  b.ClosingDate,
		"dueDate":      b.DueDate,
		"totalAmount":  b.Total.Cents,
		"paidAmount":   b.Paid.Cents,
		"status":       string(b.Status),
		"transactions": ids,
		"createdAt":    now,
		"updatedAt":    now,
	}
	if b.PaymentAccountID != "" {
		m["paymentAccountId"] = b.PaymentAccountID
	}
	if !b.PaidAt.IsZero() {
		m["paidAt"] = b.PaidAt
	}
	return m
}

func billFromDoc(d docstore.Document, loc *time.Location) core.Bill {
	return core.Bill{
		ID:               d.ID,
		CreditCardID:     docstore.String(d.Data, "creditCardId"),
		HouseholdID:      docstore.String(d.Data, "householdId"),
		UserID:           docstore.String(d.Data, "userId"),
		PeriodStart:      docstore.Time(d.Data, "periodStart", loc),
		ClosingDate:      docstore.Time(d.Data, "closingDate", loc),
		DueDate:          docstore.Time(d.Data, "dueDate", loc),
		Total:            core.Money{Cents: docstore.Int64(d.Data, "totalAmount")},
		Paid:             core.Money{Cents: docstore.Int64(d.Data, "paidAmount")},
		Status:           core.BillStatus(docstore.String(d.Data, "status")),
		TransactionIDs:   docstore.Strings(d.Data, "transactions"),
		PaymentAccountID: docstore.String(d.Data, "paymentAccountId"),
		PaidAt:           docstore.Time(d.Data, "paidAt", loc),
		CreatedAt:        docstore.Time(d.Data, "createdAt", loc),
		UpdatedAt:        docstore.Time(d.Data, "updatedAt", loc),
	}
}
