package services

import (
	"context"
	"fmt"
	"time"

	"finhouse/internal/core"
	"finhouse/internal/storage"
)

// Usage is what a user charged to a card over a date range.
type Usage struct {
	Total        core.Money
	Transactions []core.Transaction
}

// TransactionIDs lists the ids of the transactions behind the total.
func (u Usage) TransactionIDs() []string {
	ids := make([]string, len(u.Transactions))
	for i, t := range u.Transactions {
		ids[i] = t.ID
	}
	return ids
}

// UsageAggregator sums card transactions. It only reads.
type UsageAggregator struct {
	repo *storage.Repository
}

func NewUsageAggregator(repo *storage.Repository) *UsageAggregator {
	return &UsageAggregator{repo: repo}
}

// CardUsage sums the amounts of the transactions userID created on cardID
// dated within [start, end]. Amounts are added regardless of type.
func (a *UsageAggregator) CardUsage(ctx context.Context, cardID, userID string, start, end time.Time) (Usage, error) {
	txs, err := a.repo.ListCardTransactions(ctx, cardID, userID, start, end)
	if err != nil {
		return Usage{}, fmt.Errorf("card usage: %w", err)
	}
	u := Usage{Transactions: txs}
	for _, t := range txs {
		u.Total.Cents += t.Amount.Cents
	}
	return u, nil
}
