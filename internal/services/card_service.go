package services

import (
	"context"
	"fmt"
	"log/slog"

	"finhouse/internal/cache"
	"finhouse/internal/core"
	"finhouse/internal/storage"
)

// CardService manages credit cards and keeps recently read configurations
// in memory. Changing closing or due days affects only bills materialized
// afterwards.
type CardService struct {
	repo  *storage.Repository
	cards cache.Cache[core.CreditCard]
}

// NewCardService caches card reads in cards; nil disables caching.
func NewCardService(repo *storage.Repository, cards cache.Cache[core.CreditCard]) *CardService {
	return &CardService{repo: repo, cards: cards}
}

func (s *CardService) Create(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	id, err := s.repo.CreateCard(ctx, c)
	if err != nil {
		return core.CreditCard{}, err
	}
	slog.InfoContext(ctx, "Created credit card",
		"card_id", id,
		"owner_id", c.OwnerID,
		"closing_day", c.ClosingDay,
		"due_day", c.DueDay)
	return s.Get(ctx, id)
}

func (s *CardService) Get(ctx context.Context, id string) (core.CreditCard, error) {
	if s.cards != nil {
		if c, ok := s.cards.Get(id); ok {
			return c, nil
		}
	}
	c, err := s.repo.GetCard(ctx, id)
	if err != nil {
		return core.CreditCard{}, err
	}
	if s.cards != nil {
		s.cards.Set(id, c)
	}
	return c, nil
}

func (s *CardService) Update(ctx context.Context, id string, p core.CardPatch) (core.CreditCard, error) {
	var updated core.CreditCard
	err := s.repo.InTx(ctx, func(ctx context.Context, tx *storage.Repository) error {
		current, err := tx.GetCard(ctx, id)
		if err != nil {
			return err
		}
		updated = p.Apply(current)
		if err := updated.Validate(); err != nil {
			return err
		}
		return tx.UpdateCard(ctx, id, p)
	})
	s.forget(id)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("update credit card %s: %w", id, err)
	}
	return updated, nil
}

func (s *CardService) Delete(ctx context.Context, id string) error {
	defer s.forget(id)
	return s.repo.DeleteCard(ctx, id)
}

func (s *CardService) List(ctx context.Context, ownerID string, activeOnly bool) ([]core.CreditCard, error) {
	return s.repo.ListCards(ctx, ownerID, activeOnly)
}

func (s *CardService) Subscribe(ctx context.Context, ownerID string) (*storage.Stream[core.CreditCard], error) {
	return s.repo.SubscribeCards(ctx, ownerID)
}

func (s *CardService) forget(id string) {
	if s.cards != nil {
		s.cards.Delete(id)
	}
}
