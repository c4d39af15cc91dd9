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

type TransferRepo struct {
	run runner
}

func (r *TransferRepo) Create(_ context.Context, t domain.Transfer) error {
	const op = "memory.TransferRepo.Create"

	return r.run(func(st *state) error {
		if _, ok := st.transfers[t.ID]; ok {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		for _, other := range st.transfers {
			if other.Code == t.Code {
				return fmt.Errorf("%s:%w", op, repository.ErrConflict)
			}
			if t.Status == domain.TransferPending && other.Status == domain.TransferPending &&
				other.AssetType == t.AssetType && other.AssetID == t.AssetID {
				return fmt.Errorf("%s:%w: transfers_one_pending_per_asset", op, repository.ErrConflict)
			}
		}
		st.transfers[t.ID] = t
		return nil
	})
}

func (r *TransferRepo) find(op string, match func(domain.Transfer) bool) (*domain.Transfer, error) {
	var out domain.Transfer
	err := r.run(func(st *state) error {
		for _, t := range st.transfers {
			if match(t) {
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

func (r *TransferRepo) GetByCode(_ context.Context, code string) (*domain.Transfer, error) {
	return r.find("memory.TransferRepo.GetByCode", func(t domain.Transfer) bool {
		return t.Code == code
	})
}

func (r *TransferRepo) GetByCodeForUpdate(ctx context.Context, code string) (*domain.Transfer, error) {
	return r.GetByCode(ctx, code)
}

func (r *TransferRepo) GetPendingByAsset(
	_ context.Context,
	assetType domain.AssetType,
	assetID uuid.UUID,
) (*domain.Transfer, error) {
	return r.find("memory.TransferRepo.GetPendingByAsset", func(t domain.Transfer) bool {
		return t.Status == domain.TransferPending && t.AssetType == assetType && t.AssetID == assetID
	})
}

func (r *TransferRepo) Resolve(
	_ context.Context,
	id uuid.UUID,
	status domain.TransferStatus,
	toUserID *string,
	at time.Time,
) error {
	const op = "memory.TransferRepo.Resolve"

	return r.run(func(st *state) error {
		t, ok := st.transfers[id]
		if !ok || t.Status != domain.TransferPending {
			return fmt.Errorf("%s:%w", op, repository.ErrStale)
		}
		t.Status = status
		if toUserID != nil {
			to := *toUserID
			t.ToUserID = &to
		}
		t.ResolvedAt = &at
		st.transfers[id] = t
		return nil
	})
}

func (r *TransferRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]string, error) {
	var due []domain.Transfer
	_ = r.run(func(st *state) error {
		for _, t := range st.transfers {
			if t.Status == domain.TransferPending && !t.ExpiresAt.After(now) {
				due = append(due, t)
			}
		}
		return nil
	})

	slices.SortFunc(due, func(a, b domain.Transfer) int {
		return a.ExpiresAt.Compare(b.ExpiresAt)
	})

	codes := make([]string, 0, min(len(due), limit))
	for _, t := range due {
		if len(codes) == limit {
			break
		}
		codes = append(codes, t.Code)
	}

	return codes, nil
}

func (r *TransferRepo) ListByUser(_ context.Context, userID string) ([]domain.Transfer, error) {
	var out []domain.Transfer
	_ = r.run(func(st *state) error {
		for _, t := range st.transfers {
			if t.FromUserID == userID || (t.ToUserID != nil && *t.ToUserID == userID) {
				out = append(out, t)
			}
		}
		return nil
	})

	slices.SortFunc(out, func(a, b domain.Transfer) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return out, nil
}
