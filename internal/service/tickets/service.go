// Package tickets is the boundary used by the venue turnstile collaborator.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/events"
	"github.com/kirinyoku/tix-engine/internal/repository"
	"github.com/kirinyoku/tix-engine/internal/uow"
)

var (
	ErrTicketNotFound = fmt.Errorf("ticket: %w", domain.ErrNotFound)
	ErrTicketLocked   = fmt.Errorf("ticket: %w", domain.ErrLocked)
)

type Service struct {
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
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		uow:       uow.NewUoW(store),
	}
}

// MarkUsed admits the holder of ticketCode. A ticket is admitted once, only
// while sold and not offered in a pending transfer.
func (s *Service) MarkUsed(ctx context.Context, ticketCode string) (*domain.Ticket, error) {
	const op = "service.tickets.MarkUsed"

	code := strings.ToUpper(strings.TrimSpace(ticketCode))
	if code == "" {
		return nil, fmt.Errorf("%s: empty ticket code: %w", op, domain.ErrInvalidArgument)
	}

	now := s.clock.Now()
	var out domain.Ticket

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		t, err := tx.Tickets().GetByCodeForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTicketNotFound
			}
			return err
		}

		switch {
		case t.Status == domain.TicketUsed:
			return domain.ErrAlreadyUsed
		case t.Locked:
			return ErrTicketLocked
		case t.Status != domain.TicketSold:
			return fmt.Errorf("ticket is %s: %w", t.Status, domain.ErrNotSold)
		}

		if err := domain.CheckTicketTransition(t.Status, domain.TicketUsed); err != nil {
			return err
		}

		if err := tx.Tickets().UpdateStatus(ctx, t.ID, domain.TicketSold, domain.TicketUsed, now); err != nil {
			return err
		}

		out = *t
		out.Status = domain.TicketUsed
		out.UsedAt = &now

		after(func(ctx context.Context) {
			if err := s.publisher.Publish(ctx, events.New(events.TicketUsed, out.ID, now, out)); err != nil {
				s.logger.Error("failed to publish events", "type", events.TicketUsed, "error", err)
			}
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("ticket admitted", "ticket_id", out.ID, "event_id", out.EventID)

	return &out, nil
}
