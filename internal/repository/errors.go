package repository

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrStale is returned by compare-and-swap writes whose expected state
	// no longer matches the row.
	ErrStale = errors.New("stale state")
)
