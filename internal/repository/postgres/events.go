package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/domain"
)

type EventRepo struct {
	db DB
}

func (r *EventRepo) Create(ctx context.Context, e domain.Event) error {
	const op = "postgres.EventRepo.Create"

	_, err := r.db.Exec(ctx,
		`INSERT INTO events(id, title, starts_at, ends_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Title, e.StartsAt, e.EndsAt, e.CreatedAt,
	)

	return wrapDBErr(op, err)
}

func (r *EventRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "postgres.EventRepo.Get"

	var e domain.Event
	err := r.db.QueryRow(ctx,
		`SELECT id, title, starts_at, ends_at, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Title, &e.StartsAt, &e.EndsAt, &e.CreatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &e, nil
}
