package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
)

type EventRepo struct {
	run runner
}

func (r *EventRepo) Create(_ context.Context, e domain.Event) error {
	const op = "memory.EventRepo.Create"

	return r.run(func(st *state) error {
		if _, ok := st.events[e.ID]; ok {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		st.events[e.ID] = e
		return nil
	})
}

func (r *EventRepo) Get(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "memory.EventRepo.Get"

	var out domain.Event
	err := r.run(func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type TierRepo struct {
	run runner
}

func (r *TierRepo) Create(_ context.Context, t domain.Tier) error {
	const op = "memory.TierRepo.Create"

	return r.run(func(st *state) error {
		if _, ok := st.events[t.EventID]; !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		if _, ok := st.tiers[t.ID]; ok {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		for _, other := range st.tiers {
			if other.EventID == t.EventID && other.Name == t.Name {
				return fmt.Errorf("%s:%w", op, repository.ErrConflict)
			}
		}
		if t.Available < 0 || t.Available > t.Capacity {
			return fmt.Errorf("%s:%w", op, repository.ErrInsufficientInventory)
		}
		st.tiers[t.ID] = t
		return nil
	})
}

func (r *TierRepo) Get(_ context.Context, id uuid.UUID) (*domain.Tier, error) {
	const op = "memory.TierRepo.Get"

	var out domain.Tier
	err := r.run(func(st *state) error {
		t, ok := st.tiers[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *TierRepo) ListByEvent(_ context.Context, eventID uuid.UUID) ([]domain.Tier, error) {
	var out []domain.Tier
	_ = r.run(func(st *state) error {
		for _, t := range st.tiers {
			if t.EventID == eventID {
				out = append(out, t)
			}
		}
		return nil
	})

	slices.SortFunc(out, func(a, b domain.Tier) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return out, nil
}

func (r *TierRepo) Reserve(_ context.Context, id uuid.UUID, qty int) (*domain.Tier, error) {
	const op = "memory.TierRepo.Reserve"

	var out domain.Tier
	err := r.run(func(st *state) error {
		t, ok := st.tiers[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		if t.Available < qty {
			return fmt.Errorf("%s:%w", op, repository.ErrInsufficientInventory)
		}
		t.Available -= qty
		st.tiers[id] = t
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *TierRepo) Release(_ context.Context, id uuid.UUID, qty int) (*domain.Tier, error) {
	const op = "memory.TierRepo.Release"

	var out domain.Tier
	err := r.run(func(st *state) error {
		t, ok := st.tiers[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		if t.Available+qty > t.Capacity {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		t.Available += qty
		st.tiers[id] = t
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *TierRepo) Counts(_ context.Context, id uuid.UUID) (*domain.TierCounts, error) {
	const op = "memory.TierRepo.Counts"

	var out domain.TierCounts
	err := r.run(func(st *state) error {
		t, ok := st.tiers[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = domain.TierCounts{TierID: t.ID, Capacity: t.Capacity, Available: t.Available}
		for _, tk := range st.tickets {
			if tk.TierID != id {
				continue
			}
			switch tk.Status {
			case domain.TicketHeld:
				out.Held++
			case domain.TicketSold:
				out.Sold++
			case domain.TicketUsed:
				out.Used++
			case domain.TicketRefunded:
				out.Refunded++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
