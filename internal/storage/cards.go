package storage

import (
	"context"
	"fmt"
	"sort"

	"finhouse/internal/core"
	"finhouse/internal/docstore"
)

func (r *Repository) CreateCard(ctx context.Context, c core.CreditCard) (string, error) {
	id, err := r.rw.Create(ctx, CreditCards, cardToDoc(c, r.now()))
	if err != nil {
		return "", fmt.Errorf("create credit card: %w", err)
	}
	return id, nil
}

func (r *Repository) GetCard(ctx context.Context, id string) (core.CreditCard, error) {
	doc, err := r.rw.Get(ctx, CreditCards, id)
	if err != nil {
		return core.CreditCard{}, notFound(err, core.ErrCardNotFound, id)
	}
	return cardFromDoc(doc, r.loc), nil
}

func (r *Repository) UpdateCard(ctx context.Context, id string, p core.CardPatch) error {
	if err := r.rw.Update(ctx, CreditCards, id, cardPatchToDoc(p, r.now())); err != nil {
		return notFound(err, core.ErrCardNotFound, id)
	}
	return nil
}

func (r *Repository) DeleteCard(ctx context.Context, id string) error {
	if err := r.rw.Delete(ctx, CreditCards, id); err != nil {
		return fmt.Errorf("delete credit card %s: %w", id, err)
	}
	return nil
}

// ListCards returns the owner's cards sorted by name.
func (r *Repository) ListCards(ctx context.Context, ownerID string, activeOnly bool) ([]core.CreditCard, error) {
	filters := []docstore.Filter{docstore.Eq("ownerId", ownerID)}
	if activeOnly {
		filters = append(filters, docstore.Eq("isActive", true))
	}
	docs, err := r.rw.Query(ctx, CreditCards, filters...)
	if err != nil {
		return nil, fmt.Errorf("list credit cards: %w", err)
	}
	return r.cards(docs), nil
}

// SubscribeCards streams the owner's active cards.
func (r *Repository) SubscribeCards(ctx context.Context, ownerID string) (*Stream[core.CreditCard], error) {
	sub, err := r.store.Subscribe(ctx, CreditCards, docstore.Eq("ownerId", ownerID), docstore.Eq("isActive", true))
	if err != nil {
		return nil, fmt.Errorf("subscribe to credit cards: %w", err)
	}
	return newStream(sub, r.cards), nil
}

func (r *Repository) cards(docs []docstore.Document) []core.CreditCard {
	out := make([]core.CreditCard, len(docs))
	for i, d := range docs {
		out[i] = cardFromDoc(d, r.loc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
