package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finhouse/internal/core"
	"finhouse/internal/docstore"
	"finhouse/internal/storage"
)

// ErrBillGeneration wraps any store failure while resolving a current bill.
var ErrBillGeneration = errors.New("bill generation failed")

// BillMaterializer resolves the bill of the running period for a card and
// user, creating it on first access.
type BillMaterializer struct {
	repo     *storage.Repository
	usage    *UsageAggregator
	inflight *InflightGroup
	now      func() time.Time
}

func NewBillMaterializer(repo *storage.Repository, usage *UsageAggregator, opts ...Option) *BillMaterializer {
	o := buildOptions(opts)
	return &BillMaterializer{
		repo:     repo,
		usage:    usage,
		inflight: o.inflight,
		now:      o.now,
	}
}

// Inflight exposes the de-duplication group.
func (m *BillMaterializer) Inflight() *InflightGroup { return m.inflight }

// CurrentBill returns the bill of the period running now.
func (m *BillMaterializer) CurrentBill(ctx context.Context, card core.CreditCard, userID string) (core.Bill, error) {
	return m.CurrentBillAt(ctx, card, userID, m.now())
}

// CurrentBillAt returns the bill of the period containing ref. Concurrent
// calls for the same card, user and period share one lookup and at most one
// creation. Store work is not cancelled with ctx once started.
func (m *BillMaterializer) CurrentBillAt(ctx context.Context, card core.CreditCard, userID string, ref time.Time) (core.Bill, error) {
	period := core.CalculateBillingPeriod(card.ClosingDay, card.DueDay, ref.In(m.repo.Location()))
	key := billKey(card.ID, userID, period.End)

	return m.inflight.Do(key, func() (core.Bill, error) {
		return m.findOrCreate(context.WithoutCancel(ctx), card, userID, period)
	})
}

func billKey(cardID, userID string, closing time.Time) string {
	return fmt.Sprintf("%s-%s-%d", cardID, userID, closing.UnixMilli())
}

func (m *BillMaterializer) findOrCreate(ctx context.Context, card core.CreditCard, userID string, period core.BillingPeriod) (core.Bill, error) {
	existing, ok, err := m.find(ctx, card.ID, userID, period.End)
	if err != nil {
		return core.Bill{}, m.failed(ctx, card.ID, userID, err)
	}
	if ok {
		return existing, nil
	}

	usage, err := m.usage.CardUsage(ctx, card.ID, userID, period.Start, period.End)
	if err != nil {
		return core.Bill{}, m.failed(ctx, card.ID, userID, err)
	}

	id, err := m.repo.CreateBill(ctx, core.Bill{
		CreditCardID:   card.ID,
		HouseholdID:    card.HouseholdID,
		UserID:         userID,
		PeriodStart:    period.Start,
		ClosingDate:    period.End,
		DueDate:        period.Due,
		Total:          usage.Total,
		Status:         core.BillOpen,
		TransactionIDs: usage.TransactionIDs(),
	})
	if errors.Is(err, docstore.ErrConflict) {
		// Another process created the bill between our lookup and insert.
		bill, ok, ferr := m.find(ctx, card.ID, userID, period.End)
		if ferr == nil && ok {
			return bill, nil
		}
		if ferr == nil {
			ferr = err
		}
		return core.Bill{}, m.failed(ctx, card.ID, userID, ferr)
	}
	if err != nil {
		return core.Bill{}, m.failed(ctx, card.ID, userID, err)
	}

	bill, err := m.repo.GetBill(ctx, id)
	if err != nil {
		return core.Bill{}, m.failed(ctx, card.ID, userID, err)
	}

	slog.InfoContext(ctx, "Materialized credit card bill",
		"bill_id", id,
		"card_id", card.ID,
		"user_id", userID,
		"closing_date", period.End.Format("2006-01-02"),
		"amount_cents", usage.Total.Cents,
		"transactions", len(usage.Transactions))

	return bill, nil
}

func (m *BillMaterializer) find(ctx context.Context, cardID, userID string, closing time.Time) (core.Bill, bool, error) {
	bills, err := m.repo.FindBills(ctx, cardID, userID, closing)
	if err != nil {
		return core.Bill{}, false, err
	}
	if len(bills) == 0 {
		return core.Bill{}, false, nil
	}
	if len(bills) > 1 {
		slog.WarnContext(ctx, "Duplicate bills for one billing period",
			"card_id", cardID,
			"user_id", userID,
			"count", len(bills),
			"kept", bills[0].ID)
	}
	return bills[0], true, nil
}

func (m *BillMaterializer) failed(ctx context.Context, cardID, userID string, err error) error {
	slog.ErrorContext(ctx, "Failed to resolve current bill",
		"card_id", cardID,
		"user_id", userID,
		"error", err)
	return fmt.Errorf("%w: %v", ErrBillGeneration, err)
}
