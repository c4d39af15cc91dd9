package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
)

const transferColumns = `id, code, asset_type, asset_id, from_user_id, to_user_id, kind, price_cents,
	message, status, created_at, expires_at, resolved_at`

type TransferRepo struct {
	db DB
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var (
		t                       domain.Transfer
		assetType, kind, status string
		cents                   *int64
	)
	err := row.Scan(
		&t.ID,
		&t.Code,
		&assetType,
		&t.AssetID,
		&t.FromUserID,
		&t.ToUserID,
		&kind,
		&cents,
		&t.Message,
		&status,
		&t.CreatedAt,
		&t.ExpiresAt,
		&t.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	t.AssetType = domain.AssetType(assetType)
	t.Kind = domain.TransferKind(kind)
	t.Status = domain.TransferStatus(status)
	t.Price = decimalPtr(cents)
	return &t, nil
}

func (r *TransferRepo) one(ctx context.Context, op, sql string, args ...any) (*domain.Transfer, error) {
	t, err := scanTransfer(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	return t, nil
}

// Create inserts the transfer. A taken code is reported as ErrConflict
// without aborting the surrounding transaction, so the caller can retry
// with a fresh code.
func (r *TransferRepo) Create(ctx context.Context, t domain.Transfer) error {
	const op = "postgres.TransferRepo.Create"

	tag, err := r.db.Exec(ctx,
		`INSERT INTO transfers(`+transferColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (code) DO NOTHING`,
		t.ID, t.Code, string(t.AssetType), t.AssetID, t.FromUserID, t.ToUserID, string(t.Kind),
		centsPtr(t.Price), t.Message, string(t.Status), t.CreatedAt, t.ExpiresAt, t.ResolvedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrConflict)
	}

	return nil
}

func (r *TransferRepo) GetByCode(ctx context.Context, code string) (*domain.Transfer, error) {
	return r.one(ctx, "postgres.TransferRepo.GetByCode",
		`SELECT `+transferColumns+` FROM transfers WHERE code = $1`, code)
}

func (r *TransferRepo) GetByCodeForUpdate(ctx context.Context, code string) (*domain.Transfer, error) {
	return r.one(ctx, "postgres.TransferRepo.GetByCodeForUpdate",
		`SELECT `+transferColumns+` FROM transfers WHERE code = $1 FOR UPDATE`, code)
}

func (r *TransferRepo) GetPendingByAsset(
	ctx context.Context,
	assetType domain.AssetType,
	assetID uuid.UUID,
) (*domain.Transfer, error) {
	return r.one(ctx, "postgres.TransferRepo.GetPendingByAsset",
		`SELECT `+transferColumns+` FROM transfers
		 WHERE asset_type = $1 AND asset_id = $2 AND status = 'pending'`,
		string(assetType), assetID,
	)
}

func (r *TransferRepo) Resolve(
	ctx context.Context,
	id uuid.UUID,
	status domain.TransferStatus,
	toUserID *string,
	at time.Time,
) error {
	const op = "postgres.TransferRepo.Resolve"

	tag, err := r.db.Exec(ctx,
		`UPDATE transfers
		 SET status = $2, to_user_id = COALESCE($3, to_user_id), resolved_at = $4
		 WHERE id = $1 AND status = 'pending'`,
		id, string(status), toUserID, at,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrStale)
	}

	return nil
}

func (r *TransferRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const op = "postgres.TransferRepo.ListExpired"

	rows, err := r.db.Query(ctx,
		`SELECT code FROM transfers
		 WHERE status = 'pending' AND expires_at <= $1
		 ORDER BY expires_at
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return codes, nil
}

func (r *TransferRepo) ListByUser(ctx context.Context, userID string) ([]domain.Transfer, error) {
	const op = "postgres.TransferRepo.ListByUser"

	rows, err := r.db.Query(ctx,
		`SELECT `+transferColumns+` FROM transfers
		 WHERE from_user_id = $1 OR to_user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
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
