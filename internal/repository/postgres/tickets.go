package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
)

const ticketColumns = `id, order_id, event_id, tier_id, owner_id, ticket_code, status, locked,
	created_at, used_at, refunded_at`

type TicketRepo struct {
	db DB
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t      domain.Ticket
		status string
	)
	err := row.Scan(
		&t.ID,
		&t.OrderID,
		&t.EventID,
		&t.TierID,
		&t.OwnerID,
		&t.TicketCode,
		&status,
		&t.Locked,
		&t.CreatedAt,
		&t.UsedAt,
		&t.RefundedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TicketStatus(status)
	return &t, nil
}

func (r *TicketRepo) one(ctx context.Context, op, sql string, args ...any) (*domain.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	return t, nil
}

func (r *TicketRepo) list(ctx context.Context, op, sql string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
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

func (r *TicketRepo) CreateBatch(ctx context.Context, tickets []domain.Ticket) error {
	const op = "postgres.TicketRepo.CreateBatch"

	if len(tickets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(
			`INSERT INTO tickets(`+ticketColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			t.ID, t.OrderID, t.EventID, t.TierID, t.OwnerID, t.TicketCode, string(t.Status),
			t.Locked, t.CreatedAt, t.UsedAt, t.RefundedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range tickets {
		if _, err := br.Exec(); err != nil {
			return wrapDBErr(op, err)
		}
	}

	return wrapDBErr(op, br.Close())
}

func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return r.one(ctx, "postgres.TicketRepo.Get",
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
}

func (r *TicketRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return r.one(ctx, "postgres.TicketRepo.GetForUpdate",
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id)
}

func (r *TicketRepo) GetByCodeForUpdate(ctx context.Context, code string) (*domain.Ticket, error) {
	return r.one(ctx, "postgres.TicketRepo.GetByCodeForUpdate",
		`SELECT `+ticketColumns+` FROM tickets WHERE ticket_code = $1 FOR UPDATE`, code)
}

func (r *TicketRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Ticket, error) {
	return r.list(ctx, "postgres.TicketRepo.ListByOrder",
		`SELECT `+ticketColumns+` FROM tickets WHERE order_id = $1 ORDER BY ticket_code`, orderID)
}

func (r *TicketRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	return r.list(ctx, "postgres.TicketRepo.ListByOwner",
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE owner_id = $1 AND status IN ('sold', 'used')
		 ORDER BY created_at DESC, ticket_code`,
		ownerID,
	)
}

func (r *TicketRepo) TransitionByOrder(
	ctx context.Context,
	orderID uuid.UUID,
	from, to domain.TicketStatus,
	at time.Time,
) (int, error) {
	const op = "postgres.TicketRepo.TransitionByOrder"

	tag, err := r.db.Exec(ctx,
		`UPDATE tickets
		 SET status = $3,
		     refunded_at = CASE WHEN $3 = 'refunded' THEN $4 ELSE refunded_at END
		 WHERE order_id = $1 AND status = $2 AND NOT locked`,
		orderID, string(from), string(to), at,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *TicketRepo) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.TicketStatus,
	at time.Time,
) error {
	const op = "postgres.TicketRepo.UpdateStatus"

	tag, err := r.db.Exec(ctx,
		`UPDATE tickets
		 SET status = $3,
		     used_at = CASE WHEN $3 = 'used' THEN $4 ELSE used_at END,
		     refunded_at = CASE WHEN $3 = 'refunded' THEN $4 ELSE refunded_at END
		 WHERE id = $1 AND status = $2 AND NOT locked`,
		id, string(from), string(to), at,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrStale)
	}

	return nil
}

func (r *TicketRepo) Lock(ctx context.Context, id uuid.UUID, ownerID string) error {
	const op = "postgres.TicketRepo.Lock"

	tag, err := r.db.Exec(ctx,
		`UPDATE tickets SET locked = true
		 WHERE id = $1 AND owner_id = $2 AND status = 'sold' AND NOT locked`,
		id, ownerID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrStale)
	}

	return nil
}

func (r *TicketRepo) Unlock(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.TicketRepo.Unlock"

	tag, err := r.db.Exec(ctx,
		`UPDATE tickets SET locked = false WHERE id = $1 AND locked`, id,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrStale)
	}

	return nil
}

func (r *TicketRepo) Reissue(ctx context.Context, id uuid.UUID, from, to, code string) error {
	const op = "postgres.TicketRepo.Reissue"

	// The NOT EXISTS guard keeps a taken code from aborting the transaction
	// with a unique violation, so the caller can retry with another code.
	tag, err := r.db.Exec(ctx,
		`UPDATE tickets SET owner_id = $3, ticket_code = $4, locked = false
		 WHERE id = $1 AND owner_id = $2 AND locked
		   AND NOT EXISTS (SELECT 1 FROM tickets WHERE ticket_code = $4)`,
		id, from, to, code,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	var taken bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE ticket_code = $1)`, code,
	).Scan(&taken); err != nil {
		return wrapDBErr(op, err)
	}
	if taken {
		return wrapDBErr(op, repository.ErrConflict)
	}

	return wrapDBErr(op, repository.ErrStale)
}
