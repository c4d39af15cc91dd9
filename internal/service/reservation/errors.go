package reservation

import (
	"fmt"
	"time"

	"github.com/kirinyoku/tix-engine/internal/domain"
)

var (
	ErrSoldOut        = fmt.Errorf("sold out: %w", domain.ErrInsufficientInventory)
	ErrHoldExpired    = fmt.Errorf("payment window closed: %w", domain.ErrExpired)
	ErrOrderNotFound  = fmt.Errorf("order: %w", domain.ErrNotFound)
	ErrTierNotFound   = fmt.Errorf("tier: %w", domain.ErrNotFound)
	ErrTicketNotFound = fmt.Errorf("ticket: %w", domain.ErrNotFound)
	ErrTierMismatch   = fmt.Errorf("tier does not belong to event: %w", domain.ErrInvalidArgument)
	ErrQuantity       = fmt.Errorf("quantity out of range: %w", domain.ErrInvalidArgument)
	ErrMissingBuyer   = fmt.Errorf("buyer is required: %w", domain.ErrInvalidArgument)
	ErrNotBuyer       = fmt.Errorf("order belongs to another buyer: %w", domain.ErrUnauthorized)

	ErrOrderResolved = fmt.Errorf("order already resolved: %w: %w",
		domain.ErrAlreadyResolved, domain.ErrInvalidTransition)
	ErrOrderNotRefundable  = fmt.Errorf("order: %w", domain.ErrNotRefundable)
	ErrTicketNotRefundable = fmt.Errorf("ticket: %w", domain.ErrNotRefundable)
	ErrTicketLocked        = fmt.Errorf("ticket: %w: %w", domain.ErrNotRefundable, domain.ErrLocked)
	ErrTicketTransferred   = fmt.Errorf("ticket no longer held by buyer: %w", domain.ErrNotRefundable)
)

// RateLimitedError is returned by OpenOrder when the buyer exceeded the
// order rate.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}
