package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirinyoku/tix-engine/internal/repository"
)

// SQLSTATE codes the repositories react to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
)

// IsRetryable reports whether the transaction that failed with err can be
// run again from the start.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pge *pgconn.PgError
	if !errors.As(err, &pge) {
		return err
	}

	switch pge.Code {
	case codeUniqueViolation:
		// A second pending transfer for the same asset lost a race on the lock.
		if pge.ConstraintName == "transfers_one_pending_per_asset" {
			return fmt.Errorf("%w: %s", repository.ErrStale, pge.ConstraintName)
		}
		return fmt.Errorf("%w: %s", repository.ErrConflict, pge.ConstraintName)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", repository.ErrNotFound, pge.ConstraintName)
	case codeCheckViolation:
		switch pge.ConstraintName {
		case "tiers_available_check":
			return repository.ErrInsufficientInventory
		case "tickets_lock_check", "collectibles_lock_check":
			return fmt.Errorf("%w: %s", repository.ErrStale, pge.ConstraintName)
		}
		return fmt.Errorf("%w: %s", repository.ErrConflict, pge.ConstraintName)
	}

	return err
}

// wrapDBErr maps common DB errors to repository-level errors and wraps them with
// the provided operation name.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s:%w", op, translateDBErr(err))
}
