package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
)

type CollectibleRepo struct {
	run runner
}

func (r *CollectibleRepo) Create(_ context.Context, c domain.Collectible) error {
	const op = "memory.CollectibleRepo.Create"

	return r.run(func(st *state) error {
		if _, ok := st.collectibles[c.ID]; ok {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		if c.SourceOrderID != nil {
			if _, ok := st.orders[*c.SourceOrderID]; !ok {
				return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
			}
			for _, other := range st.collectibles {
				if other.SourceOrderID != nil && *other.SourceOrderID == *c.SourceOrderID {
					return fmt.Errorf("%s:%w: collectibles_source_order_key", op, repository.ErrConflict)
				}
			}
		}
		st.collectibles[c.ID] = c
		return nil
	})
}

func (r *CollectibleRepo) Get(_ context.Context, id uuid.UUID) (*domain.Collectible, error) {
	const op = "memory.CollectibleRepo.Get"

	var out domain.Collectible
	err := r.run(func(st *state) error {
		c, ok := st.collectibles[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *CollectibleRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Collectible, error) {
	return r.Get(ctx, id)
}

func (r *CollectibleRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Collectible, error) {
	var out []domain.Collectible
	_ = r.run(func(st *state) error {
		for _, c := range st.collectibles {
			if c.OwnerID == ownerID {
				out = append(out, c)
			}
		}
		return nil
	})

	slices.SortFunc(out, func(a, b domain.Collectible) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return out, nil
}

func (r *CollectibleRepo) UpdateMintStatus(
	_ context.Context,
	id uuid.UUID,
	from, to domain.MintStatus,
	onChain json.RawMessage,
	at time.Time,
) error {
	const op = "memory.CollectibleRepo.UpdateMintStatus"

	return r.run(func(st *state) error {
		c, ok := st.collectibles[id]
		if !ok || c.MintStatus != from {
			return fmt.Errorf("%s:%w", op, repository.ErrStale)
		}
		c.MintStatus = to
		if len(onChain) > 0 {
			c.OnChain = slices.Clone(onChain)
		}
		if to == domain.MintMinted {
			c.MintedAt = &at
		}
		st.collectibles[id] = c
		return nil
	})
}

func (r *CollectibleRepo) Lock(_ context.Context, id uuid.UUID, ownerID string) error {
	const op = "memory.CollectibleRepo.Lock"

	return r.run(func(st *state) error {
		c, ok := st.collectibles[id]
		if !ok || c.OwnerID != ownerID || c.MintStatus != domain.MintMinted || c.Locked {
			return fmt.Errorf("%s:%w", op, repository.ErrStale)
		}
		c.Locked = true
		st.collectibles[id] = c
		return nil
	})
}

func (r *CollectibleRepo) Unlock(_ context.Context, id uuid.UUID) error {
	const op = "memory.CollectibleRepo.Unlock"

	return r.run(func(st *state) error {
		c, ok := st.collectibles[id]
		if !ok || !c.Locked {
			return fmt.Errorf("%s:%w", op, repository.ErrStale)
		}
		c.Locked = false
		st.collectibles[id] = c
		return nil
	})
}

func (r *CollectibleRepo) Reassign(_ context.Context, id uuid.UUID, from, to string) error {
	const op = "memory.CollectibleRepo.Reassign"

	return r.run(func(st *state) error {
		c, ok := st.collectibles[id]
		if !ok || c.OwnerID != from || !c.Locked {
			return fmt.Errorf("%s:%w", op, repository.ErrStale)
		}
		c.OwnerID = to
		c.Locked = false
		st.collectibles[id] = c
		return nil
	})
}
