// Package events defines the domain events emitted after a unit of work
// commits.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	OrderOpened    Type = "order.opened"
	OrderPaid      Type = "order.paid"
	OrderCancelled Type = "order.cancelled"
	OrderExpired   Type = "order.expired"
	OrderRefunded  Type = "order.refunded"

	TicketRefunded Type = "ticket.refunded"
	TicketUsed     Type = "ticket.used"

	TransferCreated   Type = "transfer.created"
	TransferAccepted  Type = "transfer.accepted"
	TransferRejected  Type = "transfer.rejected"
	TransferCancelled Type = "transfer.cancelled"
	TransferExpired   Type = "transfer.expired"

	CollectibleCreated     Type = "collectible.created"
	CollectibleMintUpdated Type = "collectible.mint_updated"
)

// Topics, one per aggregate.
const (
	TopicOrders       = "tix.orders"
	TopicTickets      = "tix.tickets"
	TopicTransfers    = "tix.transfers"
	TopicCollectibles = "tix.collectibles"
)

func Topics() []string {
	return []string{TopicOrders, TopicTickets, TopicTransfers, TopicCollectibles}
}

// Topic returns the topic an event type is written to.
func (t Type) Topic() string {
	switch {
	case hasPrefix(t, "order."):
		return TopicOrders
	case hasPrefix(t, "ticket."):
		return TopicTickets
	case hasPrefix(t, "transfer."):
		return TopicTransfers
	default:
		return TopicCollectibles
	}
}

func hasPrefix(t Type, p string) bool {
	return strings.HasPrefix(string(t), p)
}

type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// New builds an event keyed by the aggregate id so that all events of one
// aggregate land on the same partition.
func New(t Type, key uuid.UUID, at time.Time, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		Key:        key.String(),
		OccurredAt: at,
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evs ...Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, ...Event) error { return nil }
