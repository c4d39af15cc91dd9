package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
	"github.com/kirinyoku/tix-engine/internal/uow"
)

// EventCache drops cached event views after configuration changes.
type EventCache interface {
	InvalidateEvent(ctx context.Context, eventID uuid.UUID) error
}

type Service struct {
	cache  EventCache
	clock  clock.Clock
	logger *slog.Logger
	uow    *uow.UoW
}

// New builds the admin service. cache may be nil.
func New(store repository.Store, cache EventCache, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		cache:  cache,
		clock:  clk,
		logger: logger,
		uow:    uow.NewUoW(store),
	}
}

// CreateEvent creates an event without tiers.
//
// Parameters:
//   - ctx: request-scoped context.
//   - title: event title.
//   - starts, ends: start and end times for the event.
//
// Returns:
//   - *domain.Event: the created event.
//   - error: admin.ErrEventConflict if the event violates a uniqueness
//     constraint.
func (s *Service) CreateEvent(ctx context.Context, title string, starts, ends time.Time) (*domain.Event, error) {
	const op = "service.admin.CreateEvent"

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingTitle)
	}

	if !ends.After(starts) {
		return nil, fmt.Errorf("%s: %w", op, ErrEventWindow)
	}

	e := domain.Event{
		ID:        uuid.New(),
		Title:     title,
		StartsAt:  starts.UTC(),
		EndsAt:    ends.UTC(),
		CreatedAt: s.clock.Now(),
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		if err := tx.Events().Create(ctx, e); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrEventConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("event created", "event_id", e.ID, "title", e.Title)

	return &e, nil
}

// CreateTier adds a ticket tier to an event. The tier starts with its whole
// capacity available.
//
// Parameters:
//   - ctx: request-scoped context.
//   - eventID: the event the tier belongs to.
//   - name: tier name, unique within the event.
//   - price: unit price.
//   - capacity: number of tickets the tier can ever issue.
//
// Returns:
//   - *domain.Tier: the created tier.
//   - error: admin.ErrEventNotFound if the event does not exist.
//   - error: admin.ErrTierConflict if the event already has a tier with
//     this name.
func (s *Service) CreateTier(
	ctx context.Context,
	eventID uuid.UUID,
	name string,
	price decimal.Decimal,
	capacity int,
) (*domain.Tier, error) {
	const op = "service.admin.CreateTier"

	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, fmt.Errorf("%s: %w", op, ErrMissingName)
	case capacity <= 0:
		return nil, fmt.Errorf("%s: %w", op, ErrCapacity)
	case price.IsNegative() || !price.Equal(price.Round(2)):
		return nil, fmt.Errorf("%s: %w", op, ErrPrice)
	}

	t := domain.Tier{
		ID:        uuid.New(),
		EventID:   eventID,
		Name:      name,
		Price:     price,
		Capacity:  capacity,
		Available: capacity,
		CreatedAt: s.clock.Now(),
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		if _, err := tx.Events().Get(ctx, eventID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		if err := tx.Tiers().Create(ctx, t); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrTierConflict
			}
			return err
		}

		after(func(ctx context.Context) {
			if s.cache == nil {
				return
			}
			if err := s.cache.InvalidateEvent(ctx, eventID); err != nil {
				s.logger.Warn("failed to invalidate event cache", "event_id", eventID, "error", err)
			}
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("tier created",
		"event_id", eventID,
		"tier_id", t.ID,
		"name", t.Name,
		"capacity", t.Capacity,
	)

	return &t, nil
}
