package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/domain"
)

// Repos is the set of repositories bound to one handle: either the pool or
// a running transaction.
type Repos interface {
	Events() EventRepo
	Tiers() TierRepo
	Orders() OrderRepo
	Tickets() TicketRepo
	Collectibles() CollectibleRepo
	Transfers() TransferRepo
}

// Store is a Repos bound to the pool that can also open transactions.
type Store interface {
	Repos
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error
}

type EventRepo interface {
	Create(ctx context.Context, e domain.Event) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

// TierRepo owns the available counter. Reserve and Release are single
// conditional statements and the only writers of that counter.
type TierRepo interface {
	Create(ctx context.Context, t domain.Tier) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Tier, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Tier, error)
	Reserve(ctx context.Context, id uuid.UUID, qty int) (*domain.Tier, error)
	Release(ctx context.Context, id uuid.UUID, qty int) (*domain.Tier, error)
	Counts(ctx context.Context, id uuid.UUID) (*domain.TierCounts, error)
}

type OrderRepo interface {
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// UpdateStatus moves the order from -> to and stamps the matching
	// timestamp with at. It returns ErrStale when the order is not in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, at time.Time, reason string) error
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	// ListMintable returns paid orders of buyerID without a collectible.
	ListMintable(ctx context.Context, buyerID string) ([]domain.Order, error)
}

// LockableAssets is the transfer-facing part shared by tickets and
// collectibles.
type LockableAssets interface {
	// Lock sets locked=true when ownerID owns the unlocked, transferable
	// asset. Otherwise it returns ErrStale.
	Lock(ctx context.Context, id uuid.UUID, ownerID string) error
	Unlock(ctx context.Context, id uuid.UUID) error
}

type TicketRepo interface {
	LockableAssets

	CreateBatch(ctx context.Context, tickets []domain.Ticket) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	GetByCodeForUpdate(ctx context.Context, code string) (*domain.Ticket, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Ticket, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error)
	// TransitionByOrder moves every ticket of the order in from to to and
	// returns how many rows moved.
	TransitionByOrder(ctx context.Context, orderID uuid.UUID, from, to domain.TicketStatus, at time.Time) (int, error)
	// UpdateStatus moves one unlocked ticket from -> to, else ErrStale.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TicketStatus, at time.Time) error
	// Reissue moves a locked ticket from -> to under a new code and unlocks
	// it. The old code stops matching. It returns ErrConflict when code is
	// taken and ErrStale when the ticket is not locked by from.
	Reissue(ctx context.Context, id uuid.UUID, from, to, code string) error
}

type CollectibleRepo interface {
	LockableAssets

	Create(ctx context.Context, c domain.Collectible) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Collectible, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Collectible, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Collectible, error)
	UpdateMintStatus(ctx context.Context, id uuid.UUID, from, to domain.MintStatus, onChain json.RawMessage, at time.Time) error
	// Reassign moves a locked collectible from -> to and unlocks it.
	Reassign(ctx context.Context, id uuid.UUID, from, to string) error
}

type TransferRepo interface {
	// Create returns ErrConflict when the code is taken.
	Create(ctx context.Context, t domain.Transfer) error
	GetByCode(ctx context.Context, code string) (*domain.Transfer, error)
	GetByCodeForUpdate(ctx context.Context, code string) (*domain.Transfer, error)
	GetPendingByAsset(ctx context.Context, assetType domain.AssetType, assetID uuid.UUID) (*domain.Transfer, error)
	// Resolve moves a pending transfer to status, else ErrStale.
	Resolve(ctx context.Context, id uuid.UUID, status domain.TransferStatus, toUserID *string, at time.Time) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Transfer, error)
}

// Assets picks the lockable repository for an asset type.
func Assets(r Repos, t domain.AssetType) LockableAssets {
	if t == domain.AssetCollectible {
		return r.Collectibles()
	}
	return r.Tickets()
}
