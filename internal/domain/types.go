package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

type TicketStatus string

const (
	TicketHeld     TicketStatus = "held"
	TicketSold     TicketStatus = "sold"
	TicketUsed     TicketStatus = "used"
	TicketRefunded TicketStatus = "refunded"
	// TicketReleased marks a held ticket whose order was cancelled or whose
	// hold expired. Its unit went back to the tier.
	TicketReleased TicketStatus = "released"
)

type MintStatus string

const (
	MintPending MintStatus = "pending"
	MintMinting MintStatus = "minting"
	MintMinted  MintStatus = "minted"
	MintFailed  MintStatus = "failed"
)

type AssetType string

const (
	AssetTicket      AssetType = "ticket"
	AssetCollectible AssetType = "collectible"
)

type TransferKind string

const (
	TransferGift TransferKind = "gift"
	TransferSale TransferKind = "sale"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferAccepted  TransferStatus = "accepted"
	TransferRejected  TransferStatus = "rejected"
	TransferExpired   TransferStatus = "expired"
	TransferCancelled TransferStatus = "cancelled"
)

// Cancel reasons stored on orders.
const (
	ReasonHoldExpired = "hold_expired"
	ReasonUser        = "cancelled_by_user"
)

type Event struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}

type Tier struct {
	ID        uuid.UUID       `json:"id"`
	EventID   uuid.UUID       `json:"event_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Capacity  int             `json:"capacity"`
	Available int             `json:"available"`
	CreatedAt time.Time       `json:"created_at"`
}

// TierCounts is the per-status breakdown of a tier's units.
type TierCounts struct {
	TierID    uuid.UUID `json:"tier_id"`
	Capacity  int       `json:"capacity"`
	Available int       `json:"available"`
	Held      int       `json:"held"`
	Sold      int       `json:"sold"`
	Used      int       `json:"used"`
	Refunded  int       `json:"refunded"`
}

// Issued is the number of units that left the tier for good or are held.
func (c TierCounts) Issued() int {
	return c.Held + c.Sold + c.Used + c.Refunded
}

// Availability is the public snapshot of a tier's counter. It is what the
// availability cache and the availability feed carry.
type Availability struct {
	TierID    uuid.UUID `json:"tier_id"`
	EventID   uuid.UUID `json:"event_id"`
	Capacity  int       `json:"capacity"`
	Available int       `json:"available"`
	SoldOut   bool      `json:"sold_out"`
	At        time.Time `json:"at"`
}

func (t Tier) Availability(at time.Time) Availability {
	return Availability{
		TierID:    t.ID,
		EventID:   t.EventID,
		Capacity:  t.Capacity,
		Available: t.Available,
		SoldOut:   t.Available == 0,
		At:        at,
	}
}

type Order struct {
	ID            uuid.UUID       `json:"id"`
	EventID       uuid.UUID       `json:"event_id"`
	TierID        uuid.UUID       `json:"tier_id"`
	BuyerID       string          `json:"buyer_id"`
	Quantity      int             `json:"quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Status        OrderStatus     `json:"status"`
	CancelReason  string          `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
	HoldExpiresAt time.Time       `json:"hold_expires_at"`
}

// HoldExpired reports whether the payment deadline has passed at now.
// Reaching the deadline exactly counts as expired.
func (o Order) HoldExpired(now time.Time) bool {
	return !now.Before(o.HoldExpiresAt)
}

type Ticket struct {
	ID         uuid.UUID    `json:"id"`
	OrderID    uuid.UUID    `json:"order_id"`
	EventID    uuid.UUID    `json:"event_id"`
	TierID     uuid.UUID    `json:"tier_id"`
	OwnerID    string       `json:"owner_id"`
	TicketCode string       `json:"ticket_code"`
	Status     TicketStatus `json:"status"`
	Locked     bool         `json:"locked"`
	CreatedAt  time.Time    `json:"created_at"`
	UsedAt     *time.Time   `json:"used_at,omitempty"`
	RefundedAt *time.Time   `json:"refunded_at,omitempty"`
}

type OrderWithTickets struct {
	Order   Order    `json:"order"`
	Tickets []Ticket `json:"tickets"`
}

type Collectible struct {
	ID            uuid.UUID       `json:"id"`
	DefinitionID  string          `json:"definition_id"`
	OwnerID       string          `json:"owner_id"`
	SourceOrderID *uuid.UUID      `json:"source_order_id,omitempty"`
	MintStatus    MintStatus      `json:"mint_status"`
	Locked        bool            `json:"locked"`
	OnChain       json.RawMessage `json:"on_chain,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	MintedAt      *time.Time      `json:"minted_at,omitempty"`
}

type Transfer struct {
	ID         uuid.UUID        `json:"id"`
	Code       string           `json:"code"`
	AssetType  AssetType        `json:"asset_type"`
	AssetID    uuid.UUID        `json:"asset_id"`
	FromUserID string           `json:"from_user_id"`
	ToUserID   *string          `json:"to_user_id,omitempty"`
	Kind       TransferKind     `json:"kind"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Message    *string          `json:"message,omitempty"`
	Status     TransferStatus   `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
}

// Expired reports whether the transfer window has closed at now.
func (t Transfer) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// AssetSummary is the public part of a transferred asset shown to the
// receiving party. It never carries the ticket code.
type AssetSummary struct {
	Type         AssetType    `json:"type"`
	ID           uuid.UUID    `json:"id"`
	EventID      *uuid.UUID   `json:"event_id,omitempty"`
	TierID       *uuid.UUID   `json:"tier_id,omitempty"`
	TicketStatus TicketStatus `json:"ticket_status,omitempty"`
	DefinitionID string       `json:"definition_id,omitempty"`
	MintStatus   MintStatus   `json:"mint_status,omitempty"`
}

type TransferView struct {
	Transfer Transfer     `json:"transfer"`
	Asset    AssetSummary `json:"asset"`
}
