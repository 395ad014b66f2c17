package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"finhouse/internal/core"
	"finhouse/internal/storage"
)

// CardSnapshot is a card's running bill together with its live usage.
// Outstanding is what the bill still owes; Available is the limit left
// after it.
type CardSnapshot struct {
	Card        core.CreditCard
	Bill        core.Bill
	Status      core.BillStatus
	Usage       Usage
	Outstanding core.Money
	Available   core.Money
}

// BillingService ties the billing components together for callers that work
// with cards rather than individual bills.
type BillingService struct {
	repo         *storage.Repository
	cards        *CardService
	usage        *UsageAggregator
	materializer *BillMaterializer
	refresher    *BillRefresher
	payments     *BillPayments
	now          func() time.Time
}

func NewBillingService(repo *storage.Repository, cards *CardService, opts ...Option) *BillingService {
	o := buildOptions(opts)
	usage := NewUsageAggregator(repo)
	return &BillingService{
		repo:         repo,
		cards:        cards,
		usage:        usage,
		materializer: NewBillMaterializer(repo, usage, opts...),
		refresher:    NewBillRefresher(repo),
		payments:     NewBillPayments(repo, opts...),
		now:          o.now,
	}
}

func (s *BillingService) Materializer() *BillMaterializer { return s.materializer }
func (s *BillingService) Refresher() *BillRefresher       { return s.refresher }
func (s *BillingService) Payments() *BillPayments         { return s.payments }

// CurrentBill resolves the running bill of cardID for userID and refreshes
// its total. A refresh failure is logged and the stored bill returned.
func (s *BillingService) CurrentBill(ctx context.Context, cardID, userID string) (core.Bill, error) {
	card, err := s.cards.Get(ctx, cardID)
	if err != nil {
		return core.Bill{}, err
	}
	return s.currentBill(ctx, card, userID)
}

func (s *BillingService) currentBill(ctx context.Context, card core.CreditCard, userID string) (core.Bill, error) {
	bill, err := s.materializer.CurrentBill(ctx, card, userID)
	if err != nil {
		return core.Bill{}, err
	}
	refreshed, _, err := s.refresher.Refresh(ctx, bill)
	if err != nil {
		slog.WarnContext(ctx, "Failed to refresh bill total",
			"bill_id", bill.ID,
			"error", err)
		return bill, nil
	}
	return refreshed, nil
}

// CardSnapshot returns the running bill, its derived status, the period
// usage and what is left of the credit limit.
func (s *BillingService) CardSnapshot(ctx context.Context, cardID, userID string) (CardSnapshot, error) {
	card, err := s.cards.Get(ctx, cardID)
	if err != nil {
		return CardSnapshot{}, err
	}
	bill, err := s.currentBill(ctx, card, userID)
	if err != nil {
		return CardSnapshot{}, err
	}
	usage, err := s.usage.CardUsage(ctx, card.ID, userID, bill.PeriodStart, bill.ClosingDate)
	if err != nil {
		return CardSnapshot{}, err
	}
	return CardSnapshot{
		Card:        card,
		Bill:        bill,
		Status:      bill.EffectiveStatus(s.now()),
		Usage:       usage,
		Outstanding: bill.Remaining(),
		Available:   card.Limit.Sub(bill.Remaining()),
	}, nil
}

// CurrentBills resolves the running bill of every active card of userID
// concurrently. Bills come back in card name order.
func (s *BillingService) CurrentBills(ctx context.Context, userID string) ([]core.Bill, error) {
	cards, err := s.cards.List(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	bills := make([]core.Bill, len(cards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, card := range cards {
		g.Go(func() error {
			b, err := s.currentBill(gctx, card, userID)
			if err != nil {
				return fmt.Errorf("card %s: %w", card.ID, err)
			}
			bills[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bills, nil
}

// Bills lists the stored bills of a card for userID, latest due date first,
// with overdue derived from now.
func (s *BillingService) Bills(ctx context.Context, cardID, userID string) ([]core.Bill, error) {
	bills, err := s.repo.ListBills(ctx, cardID, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range bills {
		bills[i].Status = bills[i].EffectiveStatus(now)
	}
	return bills, nil
}

func (s *BillingService) SubscribeBills(ctx context.Context, cardID, userID string) (*storage.Stream[core.Bill], error) {
	return s.repo.SubscribeBills(ctx, cardID, userID)
}

// Pay applies a validated payment: it may not exceed what is owed or the
// account balance.
func (s *BillingService) Pay(ctx context.Context, billID, accountID string, amount core.Money) (core.Bill, error) {
	return s.payments.PayBillChecked(ctx, billID, accountID, amount)
}

// CloseBill freezes an open bill after a last refresh. Its total stops
// following usage. Closed and paid bills are returned as stored.
func (s *BillingService) CloseBill(ctx context.Context, billID string) (core.Bill, error) {
	var closed core.Bill
	err := s.repo.InTx(ctx, func(ctx context.Context, tx *storage.Repository) error {
		var err error
		closed, _, err = closeBill(ctx, tx, billID)
		return err
	})
	if err != nil {
		return core.Bill{}, fmt.Errorf("close bill %s: %w", billID, err)
	}
	return closed, nil
}
