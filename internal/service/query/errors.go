package query

import (
	"fmt"

	"github.com/kirinyoku/tix-engine/internal/domain"
)

var (
	ErrEventNotFound = fmt.Errorf("event: %w", domain.ErrNotFound)
	ErrTierNotFound  = fmt.Errorf("tier: %w", domain.ErrNotFound)
	ErrOrderNotFound = fmt.Errorf("order: %w", domain.ErrNotFound)
	ErrNotBuyer      = fmt.Errorf("order belongs to another buyer: %w", domain.ErrUnauthorized)
)
