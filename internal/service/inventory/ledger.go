// Package inventory owns the available counter of every tier. All debits
// and credits go through Ledger and run inside the caller's unit of work.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/metrics"
	"github.com/kirinyoku/tix-engine/internal/repository"
	"github.com/kirinyoku/tix-engine/internal/uow"
)

var (
	ErrTierNotFound = fmt.Errorf("tier: %w", domain.ErrNotFound)
	// ErrLedgerMismatch means the counter and the tickets of a tier no
	// longer add up. The unit of work that hits it is rolled back.
	ErrLedgerMismatch = errors.New("inventory ledger mismatch")
)

type Cache interface {
	InvalidateTier(ctx context.Context, eventID, tierID uuid.UUID) error
}

type Feed interface {
	PublishAvailability(ctx context.Context, a domain.Availability) error
}

type Ledger struct {
	cache  Cache
	feed   Feed
	clock  clock.Clock
	logger *slog.Logger
}

// New returns a Ledger. cache and feed may be nil when Redis is not
// configured.
func New(cache Cache, feed Feed, clk clock.Clock, logger *slog.Logger) *Ledger {
	return &Ledger{cache: cache, feed: feed, clock: clk, logger: logger}
}

// Reserve debits qty units of the tier. With N concurrent callers racing for
// the last unit exactly one succeeds; the others get
// domain.ErrInsufficientInventory and nothing is written.
func (l *Ledger) Reserve(
	ctx context.Context,
	tx repository.Repos,
	after func(uow.AfterCommit),
	tierID uuid.UUID,
	qty int,
) (*domain.Tier, error) {
	const op = "service.inventory.Reserve"

	if qty <= 0 {
		return nil, fmt.Errorf("%s: quantity %d: %w", op, qty, domain.ErrInvalidArgument)
	}

	tier, err := tx.Tiers().Reserve(ctx, tierID, qty)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%s:%w", op, ErrTierNotFound)
		case errors.Is(err, repository.ErrInsufficientInventory):
			return nil, fmt.Errorf("%s:%w", op, domain.ErrInsufficientInventory)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	after(func(ctx context.Context) {
		metrics.TicketsReserved(qty)
		l.changed(ctx, *tier)
	})

	return tier, nil
}

// Release credits qty units back to the tier. A release that would push
// available above capacity is refused.
func (l *Ledger) Release(
	ctx context.Context,
	tx repository.Repos,
	after func(uow.AfterCommit),
	tierID uuid.UUID,
	qty int,
) (*domain.Tier, error) {
	const op = "service.inventory.Release"

	if qty <= 0 {
		return nil, fmt.Errorf("%s: quantity %d: %w", op, qty, domain.ErrInvalidArgument)
	}

	tier, err := tx.Tiers().Release(ctx, tierID, qty)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%s:%w", op, ErrTierNotFound)
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%s: release of %d exceeds capacity: %w", op, qty, ErrLedgerMismatch)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	after(func(ctx context.Context) {
		metrics.TicketsReleased(qty)
		l.changed(ctx, *tier)
	})

	return tier, nil
}

// Commit checks that qty sold units are covered by units already debited
// from the tier. It reads the tier row only; the counter is not touched.
func (l *Ledger) Commit(ctx context.Context, tx repository.Repos, tierID uuid.UUID, qty int) error {
	const op = "service.inventory.Commit"

	tier, err := tx.Tiers().Get(ctx, tierID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrTierNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	if debited := tier.Capacity - tier.Available; debited < qty {
		l.logger.Error("sale not covered by debited units",
			"tier_id", tierID,
			"capacity", tier.Capacity,
			"available", tier.Available,
			"qty", qty,
		)
		return fmt.Errorf("%s:%w", op, ErrLedgerMismatch)
	}

	return nil
}

// Audit counts every ticket of the tier and checks them against the
// counter. It scans the whole tier, so it is meant for diagnostics and
// tests rather than the purchase path.
func (l *Ledger) Audit(ctx context.Context, repos repository.Repos, tierID uuid.UUID) (*domain.TierCounts, error) {
	const op = "service.inventory.Audit"

	counts, err := repos.Tiers().Counts(ctx, tierID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTierNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if counts.Available < 0 || counts.Available+counts.Issued() != counts.Capacity {
		l.logger.Error("tier counts do not add up",
			"tier_id", tierID,
			"capacity", counts.Capacity,
			"available", counts.Available,
			"held", counts.Held,
			"sold", counts.Sold,
			"used", counts.Used,
			"refunded", counts.Refunded,
		)
		return counts, fmt.Errorf("%s:%w", op, ErrLedgerMismatch)
	}

	return counts, nil
}

func (l *Ledger) changed(ctx context.Context, tier domain.Tier) {
	if l.cache != nil {
		if err := l.cache.InvalidateTier(ctx, tier.EventID, tier.ID); err != nil {
			l.logger.Warn("failed to invalidate tier cache", "tier_id", tier.ID, "error", err)
		}
	}
	if l.feed != nil {
		if err := l.feed.PublishAvailability(ctx, tier.Availability(l.clock.Now())); err != nil {
			l.logger.Warn("failed to publish availability", "tier_id", tier.ID, "error", err)
		}
	}
}
