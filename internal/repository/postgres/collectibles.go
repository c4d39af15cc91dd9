package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
)

const collectibleColumns = `id, definition_id, owner_id, source_order_id, mint_status, locked,
	on_chain, created_at, minted_at`

type CollectibleRepo struct {
	db DB
}

func scanCollectible(row pgx.Row) (*domain.Collectible, error) {
	var (
		c       domain.Collectible
		status  string
		onChain []byte
	)
	err := row.Scan(
		&c.ID,
		&c.DefinitionID,
		&c.OwnerID,
		&c.SourceOrderID,
		&status,
		&c.Locked,
		&onChain,
		&c.CreatedAt,
		&c.MintedAt,
	)
	if err != nil {
		return nil, err
	}
	c.MintStatus = domain.MintStatus(status)
	if len(onChain) > 0 {
		c.OnChain = json.RawMessage(onChain)
	}
	return &c, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (r *CollectibleRepo) Create(ctx context.Context, c domain.Collectible) error {
	const op = "postgres.CollectibleRepo.Create"

	_, err := r.db.Exec(ctx,
		`INSERT INTO collectibles(`+collectibleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)`,
		c.ID, c.DefinitionID, c.OwnerID, c.SourceOrderID, string(c.MintStatus), c.Locked,
		nullableJSON(c.OnChain), c.CreatedAt, c.MintedAt,
	)

	return wrapDBErr(op, err)
}

func (r *CollectibleRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Collectible, error) {
	const op = "postgres.CollectibleRepo.Get"

	c, err := scanCollectible(r.db.QueryRow(ctx,
		`SELECT `+collectibleColumns+` FROM collectibles WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return c, nil
}

func (r *CollectibleRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Collectible, error) {
	const op = "postgres.CollectibleRepo.GetForUpdate"

	c, err := scanCollectible(r.db.QueryRow(ctx,
		`SELECT `+collectibleColumns+` FROM collectibles WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return c, nil
}

func (r *CollectibleRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Collectible, error) {
	const op = "postgres.CollectibleRepo.ListByOwner"

	rows, err := r.db.Query(ctx,
		`SELECT `+collectibleColumns+` FROM collectibles
		 WHERE owner_id = $1
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Collectible
	for rows.Next() {
		c, err := scanCollectible(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CollectibleRepo) UpdateMintStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.MintStatus,
	onChain json.RawMessage,
	at time.Time,
) error {
	const op = "postgres.CollectibleRepo.UpdateMintStatus"

	tag, err := r.db.Exec(ctx,
		`UPDATE collectibles
		 SET mint_status = $3,
		     on_chain = COALESCE($4::jsonb, on_chain),
		     minted_at = CASE WHEN $3 = 'minted' THEN $5 ELSE minted_at END
		 WHERE id = $1 AND mint_status = $2`,
		id, string(from), string(to), nullableJSON(onChain), at,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrStale)
	}

	return nil
}

func (r *CollectibleRepo) Lock(ctx context.Context, id uuid.UUID, ownerID string) error {
	const op = "postgres.CollectibleRepo.Lock"

	tag, err := r.db.Exec(ctx,
		`UPDATE collectibles SET locked = true
		 WHERE id = $1 AND owner_id = $2 AND mint_status = 'minted' AND NOT locked`,
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

func (r *CollectibleRepo) Unlock(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.CollectibleRepo.Unlock"

	tag, err := r.db.Exec(ctx,
		`UPDATE collectibles SET locked = false WHERE id = $1 AND locked`, id,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrStale)
	}

	return nil
}

func (r *CollectibleRepo) Reassign(ctx context.Context, id uuid.UUID, from, to string) error {
	const op = "postgres.CollectibleRepo.Reassign"

	tag, err := r.db.Exec(ctx,
		`UPDATE collectibles SET owner_id = $3, locked = false
		 WHERE id = $1 AND owner_id = $2 AND locked`,
		id, from, to,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrStale)
	}

	return nil
}
