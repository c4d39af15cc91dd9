package admin

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/tix-engine/internal/domain"
)

var (
	ErrEventConflict = errors.New("event already exists")
	ErrTierConflict  = errors.New("tier with this name already exists for the event")
	ErrEventNotFound = fmt.Errorf("event: %w", domain.ErrNotFound)

	ErrMissingTitle  = fmt.Errorf("title is required: %w", domain.ErrInvalidArgument)
	ErrEventWindow   = fmt.Errorf("event must end after it starts: %w", domain.ErrInvalidArgument)
	ErrMissingName   = fmt.Errorf("tier name is required: %w", domain.ErrInvalidArgument)
	ErrCapacity      = fmt.Errorf("capacity must be positive: %w", domain.ErrInvalidArgument)
	ErrPrice         = fmt.Errorf("price must be non-negative with at most two decimals: %w", domain.ErrInvalidArgument)
)
