package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/tix-engine/internal/repository"
)

const maxTxAttempts = 3

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool   *pgxpool.Pool
	txOpts pgx.TxOptions
}

var _ repository.Store = (*Store)(nil)

// NewStore returns a Store whose transactions run at Read Committed.
// Writers serialize on row locks and compare-and-swap updates, which keeps
// the lock scope of the hot tier row to a single statement.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		txOpts: pgx.TxOptions{
			IsoLevel:   pgx.ReadCommitted,
			AccessMode: pgx.ReadWrite,
		},
	}
}

// RunTx runs fn inside a transaction and retries it when Postgres reports a
// serialization failure or a deadlock.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repos) error,
) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTxOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

func (s *Store) runTxOnce(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repos) error,
) error {
	tx, err := s.pool.BeginTx(ctx, s.txOpts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, repos{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxCommitRollback) {
			return fmt.Errorf("commit: %w", repository.ErrConflict)
		}
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Events() repository.EventRepo             { return &EventRepo{db: s.pool} }
func (s *Store) Tiers() repository.TierRepo               { return &TierRepo{db: s.pool} }
func (s *Store) Orders() repository.OrderRepo             { return &OrderRepo{db: s.pool} }
func (s *Store) Tickets() repository.TicketRepo           { return &TicketRepo{db: s.pool} }
func (s *Store) Collectibles() repository.CollectibleRepo { return &CollectibleRepo{db: s.pool} }
func (s *Store) Transfers() repository.TransferRepo       { return &TransferRepo{db: s.pool} }

type repos struct {
	db DB
}

func (r repos) Events() repository.EventRepo             { return &EventRepo{db: r.db} }
func (r repos) Tiers() repository.TierRepo               { return &TierRepo{db: r.db} }
func (r repos) Orders() repository.OrderRepo             { return &OrderRepo{db: r.db} }
func (r repos) Tickets() repository.TicketRepo           { return &TicketRepo{db: r.db} }
func (r repos) Collectibles() repository.CollectibleRepo { return &CollectibleRepo{db: r.db} }
func (r repos) Transfers() repository.TransferRepo       { return &TransferRepo{db: r.db} }
