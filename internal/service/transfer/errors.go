package transfer

import (
	"fmt"

	"github.com/kirinyoku/tix-engine/internal/domain"
)

var (
	ErrTransferNotFound = fmt.Errorf("transfer: %w", domain.ErrNotFound)
	ErrAssetNotFound    = fmt.Errorf("asset: %w", domain.ErrNotFound)
	ErrTransferExpired  = fmt.Errorf("transfer: %w", domain.ErrExpired)
	ErrTransferResolved = fmt.Errorf("transfer already resolved: %w: %w",
		domain.ErrAlreadyResolved, domain.ErrInvalidTransition)

	ErrNotOwner    = fmt.Errorf("asset belongs to another user: %w", domain.ErrUnauthorized)
	ErrNotSender   = fmt.Errorf("only the sender can cancel: %w", domain.ErrUnauthorized)
	ErrSelfResolve = fmt.Errorf("sender cannot resolve own transfer: %w", domain.ErrUnauthorized)

	ErrAssetLocked      = fmt.Errorf("asset: %w", domain.ErrLocked)
	ErrNotTransferable  = fmt.Errorf("asset: %w", domain.ErrNotTransferable)
	ErrInvalidAssetType = fmt.Errorf("asset type: %w", domain.ErrInvalidArgument)
	ErrInvalidKind      = fmt.Errorf("transfer kind: %w", domain.ErrInvalidArgument)
	ErrInvalidTTL       = fmt.Errorf("ttl must be 24, 48 or 72 hours: %w", domain.ErrInvalidArgument)
	ErrSalePrice        = fmt.Errorf("sale needs a positive price: %w", domain.ErrInvalidArgument)
	ErrGiftPrice        = fmt.Errorf("gift cannot carry a price: %w", domain.ErrInvalidArgument)
	ErrMessageTooLong   = fmt.Errorf("message longer than %d characters: %w", MaxMessageLength, domain.ErrInvalidArgument)
	ErrInvalidAction    = fmt.Errorf("action must be accept or reject: %w", domain.ErrInvalidArgument)
	ErrMissingUser      = fmt.Errorf("user is required: %w", domain.ErrInvalidArgument)
)
