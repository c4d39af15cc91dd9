package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/events"
	"github.com/kirinyoku/tix-engine/internal/metrics"
	"github.com/kirinyoku/tix-engine/internal/repository"
	redisrepo "github.com/kirinyoku/tix-engine/internal/repository/redis"
	"github.com/kirinyoku/tix-engine/internal/service/inventory"
	"github.com/kirinyoku/tix-engine/internal/uow"
)

const (
	DefaultHoldTTL     = 15 * time.Minute
	DefaultMaxPerOrder = 10
)

type Config struct {
	HoldTTL     time.Duration
	MaxPerOrder int
}

type Limiter interface {
	Allow(ctx context.Context, id string) (redisrepo.Decision, error)
}

type Service struct {
	store     repository.Store
	ledger    *inventory.Ledger
	limiter   Limiter
	publisher events.Publisher
	clock     clock.Clock
	logger    *slog.Logger
	uow       *uow.UoW
	cfg       Config
}

// New returns the reservation service. limiter may be nil to disable rate
// limiting.
func New(
	store repository.Store,
	ledger *inventory.Ledger,
	limiter Limiter,
	publisher events.Publisher,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultHoldTTL
	}

	if cfg.MaxPerOrder <= 0 {
		cfg.MaxPerOrder = DefaultMaxPerOrder
	}

	if publisher == nil {
		publisher = events.Noop{}
	}

	return &Service{
		store:     store,
		ledger:    ledger,
		limiter:   limiter,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		uow:       uow.NewUoW(store),
		cfg:       cfg,
	}
}

type OpenOrderInput struct {
	EventID  uuid.UUID
	TierID   uuid.UUID
	Quantity int
	BuyerID  string
}

// OpenOrder reserves units of a tier and creates a pending order holding
// one ticket per unit.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: event, tier, quantity and buyer of the order.
//
// Returns:
//   - *domain.OrderWithTickets: the pending order, its payment deadline and held tickets.
//   - error: reservation.ErrSoldOut if the tier has fewer units left than requested.
//   - error: reservation.ErrTierNotFound, reservation.ErrTierMismatch or
//     reservation.ErrQuantity for a bad request.
//   - error: *reservation.RateLimitedError if the buyer is over the order rate.
func (s *Service) OpenOrder(ctx context.Context, in OpenOrderInput) (*domain.OrderWithTickets, error) {
	const op = "service.reservation.OpenOrder"

	if in.BuyerID == "" {
		return nil, fmt.Errorf("%s:%w", op, ErrMissingBuyer)
	}

	if in.Quantity < 1 || in.Quantity > s.cfg.MaxPerOrder {
		return nil, fmt.Errorf("%s: %d not in 1..%d: %w", op, in.Quantity, s.cfg.MaxPerOrder, ErrQuantity)
	}

	if s.limiter != nil {
		d, err := s.limiter.Allow(ctx, in.BuyerID)
		if err != nil {
			// fail open
			s.logger.Warn("rate limiter unavailable", "error", err)
		} else if !d.Allowed {
			metrics.OrderOutcome("rate_limited")
			return nil, fmt.Errorf("%s:%w", op, &RateLimitedError{RetryAfter: d.RetryAfter})
		}
	}

	now := s.clock.Now()
	var out domain.OrderWithTickets

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		tier, err := tx.Tiers().Get(ctx, in.TierID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTierNotFound
			}
			return err
		}

		if tier.EventID != in.EventID {
			return ErrTierMismatch
		}

		// the debit below is authoritative
		if tier.Available < in.Quantity {
			return ErrSoldOut
		}

		order := domain.Order{
			ID:            uuid.New(),
			EventID:       tier.EventID,
			TierID:        tier.ID,
			BuyerID:       in.BuyerID,
			Quantity:      in.Quantity,
			TotalPrice:    tier.Price.Mul(decimal.NewFromInt(int64(in.Quantity))),
			Status:        domain.OrderPending,
			CreatedAt:     now,
			HoldExpiresAt: now.Add(s.cfg.HoldTTL),
		}

		tickets := make([]domain.Ticket, 0, in.Quantity)
		for range in.Quantity {
			code, err := domain.NewTicketCode()
			if err != nil {
				return err
			}
			tickets = append(tickets, domain.Ticket{
				ID:         uuid.New(),
				OrderID:    order.ID,
				EventID:    order.EventID,
				TierID:     order.TierID,
				OwnerID:    in.BuyerID,
				TicketCode: code,
				Status:     domain.TicketHeld,
				CreatedAt:  now,
			})
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		if err := tx.Tickets().CreateBatch(ctx, tickets); err != nil {
			return err
		}

		// the debit goes last so the tier row stays locked for the shortest time
		if _, err := s.ledger.Reserve(ctx, tx, after, tier.ID, in.Quantity); err != nil {
			if errors.Is(err, domain.ErrInsufficientInventory) {
				return ErrSoldOut
			}
			return err
		}

		out = domain.OrderWithTickets{Order: order, Tickets: tickets}

		after(func(ctx context.Context) {
			metrics.OrderOutcome("opened")
			s.publish(ctx, events.New(events.OrderOpened, order.ID, now, order))
		})

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSoldOut) {
			metrics.OrderOutcome("sold_out")
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("order opened",
		"order_id", out.Order.ID,
		"tier_id", out.Order.TierID,
		"quantity", out.Order.Quantity,
		"hold_expires_at", out.Order.HoldExpiresAt,
	)

	return &out, nil
}

// ConfirmPayment moves a pending order to paid and its tickets to sold.
//
// Parameters:
//   - ctx: request-scoped context.
//   - orderID: ID of the order the payment collaborator confirmed.
//
// Returns:
//   - *domain.OrderWithTickets: the paid order and its sold tickets.
//   - error: reservation.ErrOrderNotFound if the order does not exist.
//   - error: reservation.ErrOrderResolved if the order is no longer pending.
//   - error: reservation.ErrHoldExpired if the payment deadline passed. The
//     order is cancelled and its units released before the error returns.
func (s *Service) ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*domain.OrderWithTickets, error) {
	const op = "service.reservation.ConfirmPayment"

	now := s.clock.Now()
	expired := false
	var out domain.OrderWithTickets

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.Status != domain.OrderPending {
			return ErrOrderResolved
		}

		if order.HoldExpired(now) {
			expired = true
			return s.release(ctx, tx, after, *order, domain.ReasonHoldExpired, now)
		}

		if err := s.setOrderStatus(ctx, tx, order, domain.OrderPaid, now, ""); err != nil {
			return err
		}

		n, err := tx.Tickets().TransitionByOrder(ctx, order.ID, domain.TicketHeld, domain.TicketSold, now)
		if err != nil {
			return err
		}
		if n != order.Quantity {
			return fmt.Errorf("sold %d of %d tickets: %w", n, order.Quantity, inventory.ErrLedgerMismatch)
		}

		if err := s.ledger.Commit(ctx, tx, order.TierID, order.Quantity); err != nil {
			return err
		}

		tickets, err := tx.Tickets().ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}

		out = domain.OrderWithTickets{Order: *order, Tickets: tickets}

		after(func(ctx context.Context) {
			metrics.OrderOutcome("paid")
			s.publish(ctx, events.New(events.OrderPaid, order.ID, now, order))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if expired {
		return nil, fmt.Errorf("%s:%w", op, ErrHoldExpired)
	}

	s.logger.Info("order paid", "order_id", orderID)

	return &out, nil
}

// CancelOrder cancels a pending order on behalf of its buyer and returns
// its units to the tier.
//
// Parameters:
//   - ctx: request-scoped context.
//   - orderID: ID of the order to cancel.
//   - buyerID: caller; must be the buyer of the order.
//   - reason: stored on the order, defaults to domain.ReasonUser.
//
// Returns:
//   - *domain.Order: the cancelled order.
//   - error: reservation.ErrOrderNotFound, reservation.ErrNotBuyer or
//     reservation.ErrOrderResolved.
func (s *Service) CancelOrder(ctx context.Context, orderID uuid.UUID, buyerID, reason string) (*domain.Order, error) {
	const op = "service.reservation.CancelOrder"

	if reason == "" {
		reason = domain.ReasonUser
	}

	now := s.clock.Now()
	var out domain.Order

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.BuyerID != buyerID {
			return ErrNotBuyer
		}

		if err := s.release(ctx, tx, after, *order, reason, now); err != nil {
			return err
		}

		out = *order
		out.Status = domain.OrderCancelled
		out.CancelReason = reason
		out.CancelledAt = &now

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("order cancelled", "order_id", orderID, "reason", reason)

	return &out, nil
}

// ExpireHold cancels a pending order whose payment deadline passed. It is
// a no-op for orders that are resolved or not yet due, so the sweeper may
// call it any number of times.
func (s *Service) ExpireHold(ctx context.Context, orderID uuid.UUID) (bool, error) {
	const op = "service.reservation.ExpireHold"

	now := s.clock.Now()
	expired := false

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.Status != domain.OrderPending || !order.HoldExpired(now) {
			return nil
		}

		expired = true
		return s.release(ctx, tx, after, *order, domain.ReasonHoldExpired, now)
	})
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	if expired {
		s.logger.Info("hold expired", "order_id", orderID)
	}

	return expired, nil
}

// RefundOrder refunds every sold ticket of a paid order. Refunded units are
// not returned to the tier.
//
// Returns:
//   - error: reservation.ErrOrderNotRefundable if the order is not paid or
//     one of its tickets was used.
//   - error: reservation.ErrTicketTransferred if a sold ticket now belongs
//     to someone other than the buyer.
//   - error: reservation.ErrTicketLocked if a ticket has a pending transfer.
func (s *Service) RefundOrder(ctx context.Context, orderID uuid.UUID) (*domain.OrderWithTickets, error) {
	const op = "service.reservation.RefundOrder"

	now := s.clock.Now()
	var out domain.OrderWithTickets

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.Status != domain.OrderPaid {
			return ErrOrderNotRefundable
		}

		tickets, err := tx.Tickets().ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}

		sold := 0
		for _, t := range tickets {
			switch {
			case t.Status == domain.TicketUsed:
				return fmt.Errorf("ticket %s used: %w", t.ID, ErrOrderNotRefundable)
			case t.Locked:
				return ErrTicketLocked
			case t.Status == domain.TicketSold && t.OwnerID != order.BuyerID:
				return fmt.Errorf("ticket %s: %w", t.ID, ErrTicketTransferred)
			case t.Status == domain.TicketSold:
				sold++
			}
		}

		n, err := tx.Tickets().TransitionByOrder(ctx, order.ID, domain.TicketSold, domain.TicketRefunded, now)
		if err != nil {
			return err
		}
		if n != sold {
			return fmt.Errorf("refunded %d of %d tickets: %w", n, sold, repository.ErrStale)
		}

		if err := s.setOrderStatus(ctx, tx, order, domain.OrderRefunded, now, ""); err != nil {
			return err
		}

		refreshed, err := tx.Tickets().ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}

		out = domain.OrderWithTickets{Order: *order, Tickets: refreshed}

		after(func(ctx context.Context) {
			metrics.OrderOutcome("refunded")
			s.publish(ctx, events.New(events.OrderRefunded, order.ID, now, order))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("order refunded", "order_id", orderID)

	return &out, nil
}

// RefundTicket refunds one sold ticket. The order follows to refunded when
// no ticket of it is left sold or used.
//
// Returns:
//   - error: reservation.ErrTicketNotFound if the ticket does not exist.
//   - error: reservation.ErrTicketLocked if the ticket has a pending transfer.
//   - error: reservation.ErrTicketNotRefundable if the ticket is not sold.
//   - error: reservation.ErrTicketTransferred if the ticket was transferred
//     away from the buyer.
func (s *Service) RefundTicket(ctx context.Context, ticketID uuid.UUID) (*domain.Ticket, error) {
	const op = "service.reservation.RefundTicket"

	now := s.clock.Now()
	var out domain.Ticket

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		peek, err := tx.Tickets().Get(ctx, ticketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTicketNotFound
			}
			return err
		}

		// order before ticket, the same lock order RefundOrder uses
		order, err := s.lockOrder(ctx, tx, peek.OrderID)
		if err != nil {
			return err
		}

		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}

		if ticket.Locked {
			return ErrTicketLocked
		}

		if ticket.Status != domain.TicketSold || order.Status != domain.OrderPaid {
			return ErrTicketNotRefundable
		}

		// the refund goes back to the purchase, so only the buyer's own
		// tickets qualify
		if ticket.OwnerID != order.BuyerID {
			return ErrTicketTransferred
		}

		if err := tx.Tickets().UpdateStatus(ctx, ticket.ID, domain.TicketSold, domain.TicketRefunded, now); err != nil {
			if errors.Is(err, repository.ErrStale) {
				return ErrTicketNotRefundable
			}
			return err
		}

		siblings, err := tx.Tickets().ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}

		open := 0
		for _, t := range siblings {
			if t.Status == domain.TicketSold || t.Status == domain.TicketUsed {
				open++
			}
		}

		if open == 0 {
			if err := s.setOrderStatus(ctx, tx, order, domain.OrderRefunded, now, ""); err != nil {
				return err
			}
		}

		out = *ticket
		out.Status = domain.TicketRefunded
		out.RefundedAt = &now

		after(func(ctx context.Context) {
			evs := []events.Event{events.New(events.TicketRefunded, out.ID, now, out)}
			if open == 0 {
				metrics.OrderOutcome("refunded")
				evs = append(evs, events.New(events.OrderRefunded, order.ID, now, order))
			}
			s.publish(ctx, evs...)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("ticket refunded", "ticket_id", ticketID)

	return &out, nil
}

func (s *Service) lockOrder(ctx context.Context, tx repository.Repos, id uuid.UUID) (*domain.Order, error) {
	order, err := tx.Orders().GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// setOrderStatus validates and applies one order transition and updates
// order in place.
func (s *Service) setOrderStatus(
	ctx context.Context,
	tx repository.Repos,
	order *domain.Order,
	to domain.OrderStatus,
	at time.Time,
	reason string,
) error {
	if err := domain.CheckOrderTransition(order.Status, to); err != nil {
		return err
	}

	if err := tx.Orders().UpdateStatus(ctx, order.ID, order.Status, to, at, reason); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return ErrOrderResolved
		}
		return err
	}

	order.Status = to
	switch to {
	case domain.OrderPaid:
		order.PaidAt = &at
	case domain.OrderCancelled:
		order.CancelledAt = &at
		order.CancelReason = reason
	case domain.OrderRefunded:
		order.RefundedAt = &at
	}

	return nil
}

// release cancels a pending order, moves its held tickets to released and
// credits the units back to the tier.
func (s *Service) release(
	ctx context.Context,
	tx repository.Repos,
	after func(uow.AfterCommit),
	order domain.Order,
	reason string,
	now time.Time,
) error {
	if order.Status != domain.OrderPending {
		return ErrOrderResolved
	}

	if err := s.setOrderStatus(ctx, tx, &order, domain.OrderCancelled, now, reason); err != nil {
		return err
	}

	n, err := tx.Tickets().TransitionByOrder(ctx, order.ID, domain.TicketHeld, domain.TicketReleased, now)
	if err != nil {
		return err
	}
	if n != order.Quantity {
		return fmt.Errorf("released %d of %d tickets: %w", n, order.Quantity, inventory.ErrLedgerMismatch)
	}

	if _, err := s.ledger.Release(ctx, tx, after, order.TierID, n); err != nil {
		return err
	}

	typ, outcome := events.OrderCancelled, "cancelled"
	if reason == domain.ReasonHoldExpired {
		typ, outcome = events.OrderExpired, "expired"
	}

	after(func(ctx context.Context) {
		metrics.OrderOutcome(outcome)
		s.publish(ctx, events.New(typ, order.ID, now, order))
	})

	return nil
}

func (s *Service) publish(ctx context.Context, evs ...events.Event) {
	if err := s.publisher.Publish(ctx, evs...); err != nil {
		s.logger.Error("failed to publish events", "type", evs[0].Type, "error", err)
	}
}
