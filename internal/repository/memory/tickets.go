package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
)

type TicketRepo struct {
	run runner
}

func (r *TicketRepo) CreateBatch(_ context.Context, tickets []domain.Ticket) error {
	const op = "memory.TicketRepo.CreateBatch"

	return r.run(func(st *state) error {
		codes := make(map[string]struct{}, len(st.tickets)+len(tickets))
		for _, t := range st.tickets {
			codes[t.TicketCode] = struct{}{}
		}

		for _, t := range tickets {
			if _, ok := st.tickets[t.ID]; ok {
				return fmt.Errorf("%s:%w", op, repository.ErrConflict)
			}
			if _, ok := codes[t.TicketCode]; ok {
				return fmt.Errorf("%s:%w: tickets_code_key", op, repository.ErrConflict)
			}
			if _, ok := st.orders[t.OrderID]; !ok {
				return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
			}
			codes[t.TicketCode] = struct{}{}
		}

		for _, t := range tickets {
			st.tickets[t.ID] = t
		}
		return nil
	})
}

func (r *TicketRepo) Get(_ context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "memory.TicketRepo.Get"

	var out domain.Ticket
	err := r.run(func(st *state) error {
		t, ok := st.tickets[id]
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

func (r *TicketRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return r.Get(ctx, id)
}

func (r *TicketRepo) GetByCodeForUpdate(_ context.Context, code string) (*domain.Ticket, error) {
	const op = "memory.TicketRepo.GetByCodeForUpdate"

	var out domain.Ticket
	err := r.run(func(st *state) error {
		for _, t := range st.tickets {
			if t.TicketCode == code {
				out = t
				return nil
			}
		}
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *TicketRepo) filter(keep func(domain.Ticket) bool) []domain.Ticket {
	var out []domain.Ticket
	_ = r.run(func(st *state) error {
		for _, t := range st.tickets {
			if keep(t) {
				out = append(out, t)
			}
		}
		return nil
	})
	return out
}

func (r *TicketRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]domain.Ticket, error) {
	out := r.filter(func(t domain.Ticket) bool { return t.OrderID == orderID })
	slices.SortFunc(out, func(a, b domain.Ticket) int {
		return cmp.Compare(a.TicketCode, b.TicketCode)
	})
	return out, nil
}

func (r *TicketRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Ticket, error) {
	out := r.filter(func(t domain.Ticket) bool {
		return t.OwnerID == ownerID && (t.Status == domain.TicketSold || t.Status == domain.TicketUsed)
	})
	slices.SortFunc(out, func(a, b domain.Ticket) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.TicketCode, b.TicketCode)
	})
	return out, nil
}

func stampTicket(t *domain.Ticket, to domain.TicketStatus, at time.Time) {
	t.Status = to
	switch to {
	case domain.TicketUsed:
		t.UsedAt = &at
	case domain.TicketRefunded:
		t.RefundedAt = &at
	}
}

func (r *TicketRepo) TransitionByOrder(
	_ context.Context,
	orderID uuid.UUID,
	from, to domain.TicketStatus,
	at time.Time,
) (int, error) {
	var n int
	_ = r.run(func(st *state) error {
		for id, t := range st.tickets {
			if t.OrderID != orderID || t.Status != from || t.Locked {
				continue
			}
			stampTicket(&t, to, at)
			st.tickets[id] = t
			n++
		}
		return nil
	})
	return n, nil
}

func (r *TicketRepo) UpdateStatus(
	_ context.Context,
	id uuid.UUID,
	from, to domain.TicketStatus,
	at time.Time,
) error {
	const op = "memory.TicketRepo.UpdateStatus"

	return r.run(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok || t.Status != from || t.Locked {
			return fmt.Errorf("%s:%w", op, repository.ErrStale)
		}
		stampTicket(&t, to, at)
		st.tickets[id] = t
		return nil
	})
}

func (r *TicketRepo) Lock(_ context.Context, id uuid.UUID, ownerID string) error {
	const op = "memory.TicketRepo.Lock"

	return r.run(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok || t.OwnerID != ownerID || t.Status != domain.TicketSold || t.Locked {
			return fmt.Errorf("%s:%w", op, repository.ErrStale)
		}
		t.Locked = true
		st.tickets[id] = t
		return nil
	})
}

func (r *TicketRepo) Unlock(_ context.Context, id uuid.UUID) error {
	const op = "memory.TicketRepo.Unlock"

	return r.run(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok || !t.Locked {
			return fmt.Errorf("%s:%w", op, repository.ErrStale)
		}
		t.Locked = false
		st.tickets[id] = t
		return nil
	})
}

func (r *TicketRepo) Reissue(_ context.Context, id uuid.UUID, from, to, code string) error {
	const op = "memory.TicketRepo.Reissue"

	return r.run(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok || t.OwnerID != from || !t.Locked {
			return fmt.Errorf("%s:%w", op, repository.ErrStale)
		}
		for _, other := range st.tickets {
			if other.TicketCode == code {
				return fmt.Errorf("%s:%w: tickets_code_key", op, repository.ErrConflict)
			}
		}
		t.OwnerID = to
		t.TicketCode = code
		t.Locked = false
		st.tickets[id] = t
		return nil
	})
}
