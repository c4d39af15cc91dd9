package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
	redisrepo "github.com/kirinyoku/tix-engine/internal/repository/redis"
)

type Config struct {
	EventTTL        time.Duration
	TiersTTL        time.Duration
	AvailabilityTTL time.Duration
}

type Service struct {
	store repository.Repos
	cache *redisrepo.Cache
	clock clock.Clock
	cfg   Config
}

// New builds the read side. Without a cache every read goes to the store.
func New(store repository.Repos, cache *redisrepo.Cache, clk clock.Clock, cfg Config) *Service {
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = 60 * time.Second
	}

	if cfg.TiersTTL <= 0 {
		cfg.TiersTTL = 15 * time.Second
	}

	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		clock: clk,
		cfg:   cfg,
	}
}

func cached[T any](
	ctx context.Context,
	s *Service,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if s.cache == nil {
		return loader(ctx)
	}
	return redisrepo.GetOrSetJSON(ctx, s.cache, key, ttl, loader)
}

// GetEvent retrieves an event by its ID through the cache.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: ID of the event to retrieve.
//
// Returns:
//   - *domain.Event: the retrieved event.
//   - error: query.ErrEventNotFound if the event is not found.
func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "service.query.GetEvent"

	event, err := cached(ctx, s, redisrepo.KeyEvent(id), s.cfg.EventTTL,
		func(ctx context.Context) (domain.Event, error) {
			e, err := s.store.Events().Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Event{}, ErrEventNotFound
				}
				return domain.Event{}, err
			}
			return *e, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &event, nil
}

// ListTiers returns the tiers of an event with their current availability.
//
// Returns:
//   - []domain.Tier: tiers in creation order.
//   - error: query.ErrEventNotFound if the event is not found.
func (s *Service) ListTiers(ctx context.Context, eventID uuid.UUID) ([]domain.Tier, error) {
	const op = "service.query.ListTiers"

	tiers, err := cached(ctx, s, redisrepo.KeyEventTiers(eventID), s.cfg.TiersTTL,
		func(ctx context.Context) ([]domain.Tier, error) {
			if _, err := s.store.Events().Get(ctx, eventID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, ErrEventNotFound
				}
				return nil, err
			}
			return s.store.Tiers().ListByEvent(ctx, eventID)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tiers, nil
}

// TierAvailability returns the public counter snapshot of a tier.
func (s *Service) TierAvailability(ctx context.Context, tierID uuid.UUID) (*domain.Availability, error) {
	const op = "service.query.TierAvailability"

	a, err := cached(ctx, s, redisrepo.KeyTierAvailability(tierID), s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.Availability, error) {
			t, err := s.store.Tiers().Get(ctx, tierID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Availability{}, ErrTierNotFound
				}
				return domain.Availability{}, err
			}
			return t.Availability(s.clock.Now()), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &a, nil
}

// GetOrderWithTickets retrieves an order of viewerID along with its tickets.
// Codes of tickets that were transferred away are blanked.
//
// Parameters:
//   - ctx: request-scoped context.
//   - orderID: ID of the order to retrieve.
//   - viewerID: the calling user, who must be the buyer.
//
// Returns:
//   - *domain.OrderWithTickets: the retrieved order with its tickets.
//   - error: query.ErrOrderNotFound if the order is not found.
//   - error: query.ErrNotBuyer if the viewer did not place the order.
func (s *Service) GetOrderWithTickets(
	ctx context.Context,
	orderID uuid.UUID,
	viewerID string,
) (*domain.OrderWithTickets, error) {
	const op = "service.query.GetOrderWithTickets"

	o, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if o.BuyerID != viewerID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotBuyer)
	}

	tickets, err := s.store.Tickets().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range tickets {
		if tickets[i].OwnerID != viewerID {
			tickets[i].TicketCode = ""
		}
	}

	return &domain.OrderWithTickets{Order: *o, Tickets: tickets}, nil
}

func (s *Service) ListOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	const op = "service.query.ListOrders"

	orders, err := s.store.Orders().ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return orders, nil
}

// ListTickets returns the sold and used tickets ownerID currently holds.
func (s *Service) ListTickets(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	const op = "service.query.ListTickets"

	tickets, err := s.store.Tickets().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tickets, nil
}

func (s *Service) ListCollectibles(ctx context.Context, ownerID string) ([]domain.Collectible, error) {
	const op = "service.query.ListCollectibles"

	cs, err := s.store.Collectibles().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cs, nil
}

// ListTransfers returns transfers userID sent or received.
func (s *Service) ListTransfers(ctx context.Context, userID string) ([]domain.Transfer, error) {
	const op = "service.query.ListTransfers"

	ts, err := s.store.Transfers().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ts, nil
}
