package httpgin

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirinyoku/tix-engine/internal/domain"
)

type OpenOrderRequest struct {
	EventID  string `json:"event_id" binding:"required,uuid"`
	TierID   string `json:"tier_id" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=200"`
}

type VerifyTicketRequest struct {
	TicketCode string `json:"ticket_code" binding:"required"`
}

type CreateTransferRequest struct {
	AssetType string           `json:"asset_type" binding:"required,oneof=ticket collectible"`
	AssetID   string           `json:"asset_id" binding:"required,uuid"`
	Kind      string           `json:"kind" binding:"required,oneof=gift sale"`
	Price     *decimal.Decimal `json:"price" swaggertype:"string"`
	Message   *string          `json:"message"`
	TTLHours  int              `json:"ttl_hours"`
}

type CreateTransferResponse struct {
	Transfer domain.Transfer `json:"transfer"`
	Link     string          `json:"link"`
}

type CreateCollectibleRequest struct {
	OrderID      string `json:"order_id" binding:"required,uuid"`
	DefinitionID string `json:"definition_id" binding:"required"`
}

type UpdateMintStatusRequest struct {
	Status  string          `json:"status" binding:"required"`
	OnChain json.RawMessage `json:"on_chain" swaggertype:"object"`
}

type CreateEventRequest struct {
	Title    string `json:"title" binding:"required"`
	StartsAt string `json:"starts_at" binding:"required"`
	EndsAt   string `json:"ends_at" binding:"required"`
}

type CreateTierRequest struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price" swaggertype:"string"`
	Capacity int             `json:"capacity" binding:"required,gt=0"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
