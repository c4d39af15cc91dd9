package domain

import "errors"

var (
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidTransition     = errors.New("invalid state transition")
	ErrAlreadyResolved       = errors.New("already resolved")
	ErrExpired               = errors.New("expired")
	ErrNotFound              = errors.New("not found")
	ErrLocked                = errors.New("asset is locked by a pending transfer")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotRefundable         = errors.New("not refundable")
	ErrNotTransferable       = errors.New("not transferable")
	ErrAlreadyUsed           = errors.New("ticket already used")
	ErrNotSold               = errors.New("ticket not sold")
	ErrInvalidArgument       = errors.New("invalid argument")
)
