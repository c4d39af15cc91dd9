// Package minting is the boundary used by the collectible minting
// collaborator. The engine records mint progress; the chain work happens
// elsewhere.
package minting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/events"
	"github.com/kirinyoku/tix-engine/internal/repository"
	"github.com/kirinyoku/tix-engine/internal/uow"
)

var (
	ErrOrderNotFound       = fmt.Errorf("order: %w", domain.ErrNotFound)
	ErrCollectibleNotFound = fmt.Errorf("collectible: %w", domain.ErrNotFound)
	ErrNotBuyer            = fmt.Errorf("order belongs to another buyer: %w", domain.ErrUnauthorized)
	ErrOrderNotPaid        = fmt.Errorf("order is not paid: %w", domain.ErrInvalidArgument)
	ErrAlreadyCreated      = fmt.Errorf("order already has a collectible: %w", domain.ErrAlreadyResolved)
	ErrMissingDefinition   = fmt.Errorf("definition id is required: %w", domain.ErrInvalidArgument)
	ErrInvalidStatus       = fmt.Errorf("unknown mint status: %w", domain.ErrInvalidArgument)
	ErrInvalidOnChain      = fmt.Errorf("on-chain attributes must be JSON: %w", domain.ErrInvalidArgument)
)

type Service struct {
	store     repository.Store
	publisher events.Publisher
	clock     clock.Clock
	logger    *slog.Logger
	uow       *uow.UoW
}

func New(store repository.Store, publisher events.Publisher, clk clock.Clock, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		store:     store,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		uow:       uow.NewUoW(store),
	}
}

// ListMintableOrders returns the paid orders of buyerID that have no
// collectible yet.
func (s *Service) ListMintableOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	const op = "service.minting.ListMintableOrders"

	orders, err := s.store.Orders().ListMintable(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return orders, nil
}

type CreateInput struct {
	OrderID      uuid.UUID
	DefinitionID string
	BuyerID      string
}

// CreateCollectible records a pending collectible for a paid order. Each
// order yields at most one collectible, owned by the buyer.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: source order, collectible definition and the calling buyer.
//
// Returns:
//   - *domain.Collectible: the collectible in mint status pending.
//   - error: minting.ErrOrderNotFound if the order does not exist.
//   - error: minting.ErrNotBuyer if the caller did not buy the order.
//   - error: minting.ErrOrderNotPaid if the order is not paid.
//   - error: minting.ErrAlreadyCreated if the order already has one.
func (s *Service) CreateCollectible(ctx context.Context, in CreateInput) (*domain.Collectible, error) {
	const op = "service.minting.CreateCollectible"

	in.DefinitionID = strings.TrimSpace(in.DefinitionID)
	if in.DefinitionID == "" {
		return nil, fmt.Errorf("%s:%w", op, ErrMissingDefinition)
	}

	now := s.clock.Now()
	var out domain.Collectible

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		o, err := tx.Orders().GetForUpdate(ctx, in.OrderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if o.BuyerID != in.BuyerID {
			return ErrNotBuyer
		}

		if o.Status != domain.OrderPaid {
			return ErrOrderNotPaid
		}

		c := domain.Collectible{
			ID:            uuid.New(),
			DefinitionID:  in.DefinitionID,
			OwnerID:       o.BuyerID,
			SourceOrderID: &o.ID,
			MintStatus:    domain.MintPending,
			CreatedAt:     now,
		}

		if err := tx.Collectibles().Create(ctx, c); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyCreated
			}
			return err
		}

		out = c

		after(func(ctx context.Context) {
			s.publish(ctx, events.New(events.CollectibleCreated, c.ID, now, c))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("collectible created",
		"collectible_id", out.ID,
		"order_id", in.OrderID,
		"definition_id", out.DefinitionID,
	)

	return &out, nil
}

// UpdateMintStatus advances the mint state of a collectible. onChain is
// opaque and kept as given; an empty value leaves the stored one alone.
func (s *Service) UpdateMintStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.MintStatus,
	onChain json.RawMessage,
) (*domain.Collectible, error) {
	const op = "service.minting.UpdateMintStatus"

	if !status.Valid() {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidStatus)
	}

	if len(onChain) > 0 && !json.Valid(onChain) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidOnChain)
	}

	now := s.clock.Now()
	var out *domain.Collectible

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		c, err := tx.Collectibles().GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrCollectibleNotFound
			}
			return err
		}

		if err := domain.CheckMintTransition(c.MintStatus, status); err != nil {
			return err
		}

		if err := tx.Collectibles().UpdateMintStatus(ctx, id, c.MintStatus, status, onChain, now); err != nil {
			if errors.Is(err, repository.ErrStale) {
				return fmt.Errorf("mint %s -> %s: %w", c.MintStatus, status, domain.ErrInvalidTransition)
			}
			return err
		}

		out, err = tx.Collectibles().Get(ctx, id)
		if err != nil {
			return err
		}

		snapshot := *out
		after(func(ctx context.Context) {
			s.publish(ctx, events.New(events.CollectibleMintUpdated, id, now, snapshot))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("mint status updated", "collectible_id", id, "status", status)

	return out, nil
}

func (s *Service) publish(ctx context.Context, evs ...events.Event) {
	if err := s.publisher.Publish(ctx, evs...); err != nil {
		s.logger.Error("failed to publish events", "type", evs[0].Type, "error", err)
	}
}
