package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
)

const tierColumns = `id, event_id, name, price_cents, capacity, available, created_at`

type TierRepo struct {
	db DB
}

func scanTier(row pgx.Row) (*domain.Tier, error) {
	var (
		t     domain.Tier
		cents int64
	)
	if err := row.Scan(&t.ID, &t.EventID, &t.Name, &cents, &t.Capacity, &t.Available, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Price = fromCents(cents)
	return &t, nil
}

func (r *TierRepo) Create(ctx context.Context, t domain.Tier) error {
	const op = "postgres.TierRepo.Create"

	_, err := r.db.Exec(ctx,
		`INSERT INTO tiers(`+tierColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.EventID, t.Name, toCents(t.Price), t.Capacity, t.Available, t.CreatedAt,
	)

	return wrapDBErr(op, err)
}

func (r *TierRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Tier, error) {
	const op = "postgres.TierRepo.Get"

	t, err := scanTier(r.db.QueryRow(ctx,
		`SELECT `+tierColumns+` FROM tiers WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TierRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Tier, error) {
	const op = "postgres.TierRepo.ListByEvent"

	rows, err := r.db.Query(ctx,
		`SELECT `+tierColumns+` FROM tiers
		 WHERE event_id = $1
		 ORDER BY created_at, name`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Tier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// Reserve debits qty units with a floor check in one statement. Concurrent
// callers queue on the row lock and re-evaluate the predicate, so the last
// unit goes to exactly one of them.
func (r *TierRepo) Reserve(ctx context.Context, id uuid.UUID, qty int) (*domain.Tier, error) {
	const op = "postgres.TierRepo.Reserve"

	t, err := scanTier(r.db.QueryRow(ctx,
		`UPDATE tiers
		 SET available = available - $2
		 WHERE id = $1 AND available >= $2
		 RETURNING `+tierColumns,
		id, qty,
	))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBErr(op, err)
	}

	if _, err := r.Get(ctx, id); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return nil, wrapDBErr(op, repository.ErrInsufficientInventory)
}

func (r *TierRepo) Release(ctx context.Context, id uuid.UUID, qty int) (*domain.Tier, error) {
	const op = "postgres.TierRepo.Release"

	t, err := scanTier(r.db.QueryRow(ctx,
		`UPDATE tiers
		 SET available = available + $2
		 WHERE id = $1 AND available + $2 <= capacity
		 RETURNING `+tierColumns,
		id, qty,
	))
	if err == nil {
		return t, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.Get(ctx, id); gerr != nil {
			return nil, wrapDBErr(op, gerr)
		}
		return nil, wrapDBErr(op, repository.ErrConflict)
	}

	return nil, wrapDBErr(op, err)
}

func (r *TierRepo) Counts(ctx context.Context, id uuid.UUID) (*domain.TierCounts, error) {
	const op = "postgres.TierRepo.Counts"

	c := domain.TierCounts{TierID: id}
	err := r.db.QueryRow(ctx,
		`SELECT t.capacity, t.available,
		        COUNT(k.id) FILTER (WHERE k.status = 'held'),
		        COUNT(k.id) FILTER (WHERE k.status = 'sold'),
		        COUNT(k.id) FILTER (WHERE k.status = 'used'),
		        COUNT(k.id) FILTER (WHERE k.status = 'refunded')
		 FROM tiers t
		 LEFT JOIN tickets k ON k.tier_id = t.id
		 WHERE t.id = $1
		 GROUP BY t.id`,
		id,
	).Scan(&c.Capacity, &c.Available, &c.Held, &c.Sold, &c.Used, &c.Refunded)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &c, nil
}
