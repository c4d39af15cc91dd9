package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
)

const orderColumns = `id, event_id, tier_id, buyer_id, quantity, total_cents, status, cancel_reason,
	created_at, paid_at, cancelled_at, refunded_at, hold_expires_at`

type OrderRepo struct {
	db DB
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		cents  int64
		status string
	)
	err := row.Scan(
		&o.ID,
		&o.EventID,
		&o.TierID,
		&o.BuyerID,
		&o.Quantity,
		&cents,
		&status,
		&o.CancelReason,
		&o.CreatedAt,
		&o.PaidAt,
		&o.CancelledAt,
		&o.RefundedAt,
		&o.HoldExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	o.TotalPrice = fromCents(cents)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func (r *OrderRepo) list(ctx context.Context, op, sql string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *OrderRepo) Create(ctx context.Context, o domain.Order) error {
	const op = "postgres.OrderRepo.Create"

	_, err := r.db.Exec(ctx,
		`INSERT INTO orders(`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.EventID, o.TierID, o.BuyerID, o.Quantity, toCents(o.TotalPrice), string(o.Status),
		o.CancelReason, o.CreatedAt, o.PaidAt, o.CancelledAt, o.RefundedAt, o.HoldExpiresAt,
	)

	return wrapDBErr(op, err)
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "postgres.OrderRepo.Get"

	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return o, nil
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "postgres.OrderRepo.GetForUpdate"

	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return o, nil
}

func (r *OrderRepo) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.OrderStatus,
	at time.Time,
	reason string,
) error {
	const op = "postgres.OrderRepo.UpdateStatus"

	var column string
	switch to {
	case domain.OrderPaid:
		column = "paid_at"
	case domain.OrderCancelled:
		column = "cancelled_at"
	case domain.OrderRefunded:
		column = "refunded_at"
	default:
		return fmt.Errorf("%s: unsupported target status %q", op, to)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE orders
		 SET status = $3, `+column+` = $4, cancel_reason = CASE WHEN $5 = '' THEN cancel_reason ELSE $5 END
		 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at, reason,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrStale)
	}

	return nil
}

func (r *OrderRepo) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const op = "postgres.OrderRepo.ListExpiredHolds"

	rows, err := r.db.Query(ctx,
		`SELECT id FROM orders
		 WHERE status = 'pending' AND hold_expires_at <= $1
		 ORDER BY hold_expires_at
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}

func (r *OrderRepo) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return r.list(ctx, "postgres.OrderRepo.ListByBuyer",
		`SELECT `+orderColumns+` FROM orders
		 WHERE buyer_id = $1
		 ORDER BY created_at DESC`,
		buyerID,
	)
}

func (r *OrderRepo) ListMintable(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return r.list(ctx, "postgres.OrderRepo.ListMintable",
		`SELECT `+orderColumns+` FROM orders o
		 WHERE o.buyer_id = $1
		   AND o.status = 'paid'
		   AND NOT EXISTS (SELECT 1 FROM collectibles c WHERE c.source_order_id = o.id)
		 ORDER BY o.paid_at`,
		buyerID,
	)
}
