package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
)

type OrderRepo struct {
	run runner
}

func (r *OrderRepo) Create(_ context.Context, o domain.Order) error {
	const op = "memory.OrderRepo.Create"

	return r.run(func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		if _, ok := st.events[o.EventID]; !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		if _, ok := st.tiers[o.TierID]; !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		st.orders[o.ID] = o
		return nil
	})
}

func (r *OrderRepo) Get(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "memory.OrderRepo.Get"

	var out domain.Order
	err := r.run(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForUpdate is Get: transactions already run one at a time.
func (r *OrderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.Get(ctx, id)
}

func (r *OrderRepo) UpdateStatus(
	_ context.Context,
	id uuid.UUID,
	from, to domain.OrderStatus,
	at time.Time,
	reason string,
) error {
	const op = "memory.OrderRepo.UpdateStatus"

	return r.run(func(st *state) error {
		o, ok := st.orders[id]
		if !ok || o.Status != from {
			return fmt.Errorf("%s:%w", op, repository.ErrStale)
		}

		switch to {
		case domain.OrderPaid:
			o.PaidAt = &at
		case domain.OrderCancelled:
			o.CancelledAt = &at
		case domain.OrderRefunded:
			o.RefundedAt = &at
		default:
			return fmt.Errorf("%s: unsupported target status %q", op, to)
		}

		o.Status = to
		if reason != "" {
			o.CancelReason = reason
		}
		st.orders[id] = o
		return nil
	})
}

func (r *OrderRepo) ListExpiredHolds(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var due []domain.Order
	_ = r.run(func(st *state) error {
		for _, o := range st.orders {
			if o.Status == domain.OrderPending && !o.HoldExpiresAt.After(now) {
				due = append(due, o)
			}
		}
		return nil
	})

	slices.SortFunc(due, func(a, b domain.Order) int {
		return a.HoldExpiresAt.Compare(b.HoldExpiresAt)
	})

	ids := make([]uuid.UUID, 0, min(len(due), limit))
	for _, o := range due {
		if len(ids) == limit {
			break
		}
		ids = append(ids, o.ID)
	}

	return ids, nil
}

func (r *OrderRepo) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	var out []domain.Order
	_ = r.run(func(st *state) error {
		for _, o := range st.orders {
			if o.BuyerID == buyerID {
				out = append(out, o)
			}
		}
		return nil
	})

	slices.SortFunc(out, func(a, b domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return out, nil
}

func (r *OrderRepo) ListMintable(_ context.Context, buyerID string) ([]domain.Order, error) {
	var out []domain.Order
	_ = r.run(func(st *state) error {
		minted := make(map[uuid.UUID]struct{})
		for _, c := range st.collectibles {
			if c.SourceOrderID != nil {
				minted[*c.SourceOrderID] = struct{}{}
			}
		}
		for _, o := range st.orders {
			if o.BuyerID != buyerID || o.Status != domain.OrderPaid {
				continue
			}
			if _, ok := minted[o.ID]; ok {
				continue
			}
			out = append(out, o)
		}
		return nil
	})

	slices.SortFunc(out, func(a, b domain.Order) int {
		return a.PaidAt.Compare(*b.PaidAt)
	})

	return out, nil
}
