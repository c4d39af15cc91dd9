package domain

import "fmt"

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderCancelled},
	OrderPaid:    {OrderRefunded},
}

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketHeld: {TicketSold, TicketReleased},
	TicketSold: {TicketUsed, TicketRefunded},
}

var mintTransitions = map[MintStatus][]MintStatus{
	MintPending: {MintMinting},
	MintMinting: {MintMinted, MintFailed},
}

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferPending: {TransferAccepted, TransferRejected, TransferExpired, TransferCancelled},
}

func allowed[S comparable](table map[S][]S, from, to S) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckOrderTransition returns ErrInvalidTransition unless from -> to is
// an edge of the order lifecycle.
func CheckOrderTransition(from, to OrderStatus) error {
	if !allowed(orderTransitions, from, to) {
		return fmt.Errorf("order %s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

func CheckTicketTransition(from, to TicketStatus) error {
	if !allowed(ticketTransitions, from, to) {
		return fmt.Errorf("ticket %s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

func CheckMintTransition(from, to MintStatus) error {
	if !allowed(mintTransitions, from, to) {
		return fmt.Errorf("mint %s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

func CheckTransferTransition(from, to TransferStatus) error {
	if !allowed(transferTransitions, from, to) {
		return fmt.Errorf("transfer %s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool { return len(orderTransitions[s]) == 0 }

func (s TicketStatus) Terminal() bool { return len(ticketTransitions[s]) == 0 }

func (s TransferStatus) Terminal() bool { return len(transferTransitions[s]) == 0 }

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

func (s MintStatus) Valid() bool {
	switch s {
	case MintPending, MintMinting, MintMinted, MintFailed:
		return true
	}
	return false
}

func (a AssetType) Valid() bool {
	return a == AssetTicket || a == AssetCollectible
}

func (k TransferKind) Valid() bool {
	return k == TransferGift || k == TransferSale
}
