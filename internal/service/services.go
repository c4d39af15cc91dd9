package service

import (
	"log/slog"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/events"
	"github.com/kirinyoku/tix-engine/internal/repository"
	redis "github.com/kirinyoku/tix-engine/internal/repository/redis"
	"github.com/kirinyoku/tix-engine/internal/service/admin"
	"github.com/kirinyoku/tix-engine/internal/service/inventory"
	"github.com/kirinyoku/tix-engine/internal/service/minting"
	"github.com/kirinyoku/tix-engine/internal/service/query"
	"github.com/kirinyoku/tix-engine/internal/service/reservation"
	"github.com/kirinyoku/tix-engine/internal/service/tickets"
	"github.com/kirinyoku/tix-engine/internal/service/transfer"
)

type Services struct {
	Reservation *reservation.Service
	Tickets     *tickets.Service
	Transfer    *transfer.Service
	Minting     *minting.Service
	Query       *query.Service
	Admin       *admin.Service
}

type Config struct {
	Reservation reservation.Config
	Transfer    transfer.Config
	Query       query.Config
}

// NewServices wires the services over one store. cache, feed and limiter
// may be nil when Redis is not configured.
func NewServices(
	store repository.Store,
	cache *redis.Cache,
	feed *redis.AvailabilityFeed,
	limiter *redis.SlidingWindowLimiter,
	publisher events.Publisher,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Services {
	var (
		ledgerCache inventory.Cache
		ledgerFeed  inventory.Feed
		adminCache  admin.EventCache
		rl          reservation.Limiter
	)
	if cache != nil {
		ledgerCache, adminCache = cache, cache
	}
	if feed != nil {
		ledgerFeed = feed
	}
	if limiter != nil {
		rl = limiter
	}

	ledger := inventory.New(ledgerCache, ledgerFeed, clk, logger)

	return &Services{
		Reservation: reservation.New(store, ledger, rl, publisher, clk, logger, cfg.Reservation),
		Tickets:     tickets.New(store, publisher, clk, logger),
		Transfer:    transfer.New(store, publisher, clk, logger, cfg.Transfer),
		Minting:     minting.New(store, publisher, clk, logger),
		Query:       query.New(store, cache, clk, cfg.Query),
		Admin:       admin.New(store, adminCache, clk, logger),
	}
}
