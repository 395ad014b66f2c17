package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"finhouse/internal/core"
	"finhouse/internal/docstore"
)

// CreateBill stores b. A bill already existing for the same card, user and
// closing date yields docstore.ErrConflict.
func (r *Repository) CreateBill(ctx context.Context, b core.Bill) (string, error) {
	id, err := r.rw.Create(ctx, Bills, billToDoc(b, r.now()))
	if err != nil {
		return "", fmt.Errorf("create bill: %w", err)
	}
	return id, nil
}

func (r *Repository) GetBill(ctx context.Context, id string) (core.Bill, error) {
	doc, err := r.rw.Get(ctx, Bills, id)
	if err != nil {
		return core.Bill{}, notFound(err, core.ErrBillNotFound, id)
	}
	return billFromDoc(doc, r.loc), nil
}

// FindBills returns the bills of a card and user closing at closingDate,
// oldest first. More than one only happens on stores without the unique index.
func (r *Repository) FindBills(ctx context.Context, cardID, userID string, closingDate time.Time) ([]core.Bill, error) {
	docs, err := r.rw.Query(ctx, Bills,
		docstore.Eq("creditCardId", cardID),
		docstore.Eq("userId", userID),
		docstore.Eq("closingDate", closingDate),
	)
	if err != nil {
		return nil, fmt.Errorf("find bill: %w", err)
	}
	bills := r.bills(docs)
	sort.SliceStable(bills, func(i, j int) bool { return bills[i].CreatedAt.Before(bills[j].CreatedAt) })
	return bills, nil
}

// FindBillCovering returns the bill of a card and user whose period contains
// date. The boolean is false when none was materialized.
func (r *Repository) FindBillCovering(ctx context.Context, cardID, userID string, date time.Time) (core.Bill, bool, error) {
	docs, err := r.rw.Query(ctx, Bills,
		docstore.Eq("creditCardId", cardID),
		docstore.Eq("userId", userID),
		docstore.Lte("periodStart", date),
		docstore.Gte("closingDate", date),
	)
	if err != nil {
		return core.Bill{}, false, fmt.Errorf("find covering bill: %w", err)
	}
	if len(docs) == 0 {
		return core.Bill{}, false, nil
	}
	return billFromDoc(docs[0], r.loc), true, nil
}

// UpdateBillTotal replaces the usage snapshot of a bill.
func (r *Repository) UpdateBillTotal(ctx context.Context, id string, total core.Money, transactionIDs []string) error {
	if transactionIDs == nil {
		transactionIDs = []string{}
	}
	patch := map[string]any{
		"totalAmount":  total.Cents,
		"transactions": transactionIDs,
		"updatedAt":    r.now(),
	}
	if err := r.rw.Update(ctx, Bills, id, patch); err != nil {
		return notFound(err, core.ErrBillNotFound, id)
	}
	return nil
}

// RecordBillPayment stores the new paid amount. When settled it also marks
// the bill paid with the paying account and time.
func (r *Repository) RecordBillPayment(ctx context.Context, id string, paid core.Money, settled bool, accountID string, at time.Time) error {
	patch := map[string]any{
		"paidAmount": paid.Cents,
		"updatedAt":  r.now(),
	}
	if settled {
		patch["status"] = string(core.BillPaid)
		patch["paidAt"] = at
		patch["paymentAccountId"] = accountID
	}
	if err := r.rw.Update(ctx, Bills, id, patch); err != nil {
		return notFound(err, core.ErrBillNotFound, id)
	}
	return nil
}

func (r *Repository) SetBillStatus(ctx context.Context, id string, status core.BillStatus) error {
	patch := map[string]any{"status": string(status), "updatedAt": r.now()}
	if err := r.rw.Update(ctx, Bills, id, patch); err != nil {
		return notFound(err, core.ErrBillNotFound, id)
	}
	return nil
}

// ListBillsByStatus returns bills in status closing before the given instant.
func (r *Repository) ListBillsByStatus(ctx context.Context, status core.BillStatus, closingBefore time.Time) ([]core.Bill, error) {
	docs, err := r.rw.Query(ctx, Bills,
		docstore.Eq("status", string(status)),
		docstore.Lt("closingDate", closingBefore),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s bills: %w", status, err)
	}
	return r.bills(docs), nil
}

// ListBills returns the bills of a card and user, latest due date first.
func (r *Repository) ListBills(ctx context.Context, cardID, userID string) ([]core.Bill, error) {
	docs, err := r.rw.Query(ctx, Bills, docstore.Eq("creditCardId", cardID), docstore.Eq("userId", userID))
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return r.bills(docs), nil
}

// SubscribeBills streams the bills of a card and user, latest due date first.
func (r *Repository) SubscribeBills(ctx context.Context, cardID, userID string) (*Stream[core.Bill], error) {
	sub, err := r.store.Subscribe(ctx, Bills, docstore.Eq("creditCardId", cardID), docstore.Eq("userId", userID))
	if err != nil {
		return nil, fmt.Errorf("subscribe to bills: %w", err)
	}
	return newStream(sub, r.bills), nil
}

// SubscribeUserBills streams every bill of a user across cards.
func (r *Repository) SubscribeUserBills(ctx context.Context, userID string) (*Stream[core.Bill], error) {
	sub, err := r.store.Subscribe(ctx, Bills, docstore.Eq("userId", userID))
	if err != nil {
		return nil, fmt.Errorf("subscribe to user bills: %w", err)
	}
	return newStream(sub, r.bills), nil
}

func (r *Repository) bills(docs []docstore.Document) []core.Bill {
	out := make([]core.Bill, len(docs))
	for i, d := range docs {
		out[i] = billFromDoc(d, r.loc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.After(out[j].DueDate) })
	return out
}
