package httpgin

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/metrics"
	redisrepo "github.com/kirinyoku/tix-engine/internal/repository/redis"
	"github.com/kirinyoku/tix-engine/internal/service"
	"github.com/kirinyoku/tix-engine/internal/service/admin"
	"github.com/kirinyoku/tix-engine/internal/service/reservation"
)

// AvailabilitySubscriber streams availability snapshots of one tier.
type AvailabilitySubscriber interface {
	Subscribe(
		ctx context.Context,
		tierID uuid.UUID,
		ready func(),
		handler func(ctx context.Context, a domain.Availability),
	) error
}

// NewRouter builds the HTTP surface. idem and feed may be nil; without them
// Idempotency-Key is ignored and the availability stream is unavailable.
func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	feed AvailabilitySubscriber,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		LoggingMiddleware(logger),
		RequestIDMiddleware(),
		UserIDMiddleware(),
		CORS(),
		metrics.Middleware(),
	)
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// ops
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public catalog
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/events/:id/tiers", handleListTiers(svcs))
	r.GET("/tiers/:id/availability", handleGetAvailability(svcs))
	r.GET("/tiers/:id/availability/stream", handleAvailabilityStream(svcs, feed, logger))

	// Buyer API
	buyer := r.Group("/", RequireUser())
	{
		buyer.POST("/orders", handleOpenOrder(svcs, idem, logger))
		buyer.GET("/orders/:id", handleGetOrder(svcs))
		buyer.POST("/orders/:id/cancel", handleCancelOrder(svcs))

		buyer.GET("/users/me/orders", handleListOrders(svcs))
		buyer.GET("/users/me/tickets", handleListTickets(svcs))
		buyer.GET("/users/me/collectibles", handleListCollectibles(svcs))
		buyer.GET("/users/me/transfers", handleListTransfers(svcs))
		buyer.GET("/users/me/mintable-orders", handleListMintable(svcs))

		buyer.POST("/collectibles", handleCreateCollectible(svcs))

		buyer.POST("/transfers", handleCreateTransfer(svcs))
		buyer.GET("/transfers/:code", handleLookupTransfer(svcs))
		buyer.GET("/transfers/:code/qr", handleTransferQR(svcs))
		buyer.POST("/transfers/:code/accept", handleResolveTransfer(svcs, true))
		buyer.POST("/transfers/:code/reject", handleResolveTransfer(svcs, false))
		buyer.POST("/transfers/:code/cancel", handleCancelTransfer(svcs))
	}

	// Collaborator API: payment, turnstile and minting
	r.POST("/orders/:id/pay", handleConfirmPayment(svcs))
	r.POST("/orders/:id/refund", handleRefundOrder(svcs))
	r.POST("/tickets/:id/refund", handleRefundTicket(svcs))
	r.POST("/tickets/verify", handleVerifyTicket(svcs))
	r.POST("/collectibles/:id/mint-status", handleUpdateMintStatus(svcs))

	// Admin-API
	// TODO: add admin middleware
	adm := r.Group("/admin")
	{
		adm.POST("/events", handleCreateEvent(svcs))
		adm.POST("/events/:id/tiers", handleCreateTier(svcs))
	}

	return r
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var rl *reservation.RateLimitedError
	if errors.As(err, &rl) {
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
		return
	}

	switch {
	// resolution races: do not tell the caller who won
	case errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "already processed"})
	case errors.Is(err, domain.ErrExpired):
		c.JSON(http.StatusGone, ErrorResponse{Error: "expired"})
	case errors.Is(err, domain.ErrLocked):
		c.JSON(http.StatusLocked, ErrorResponse{Error: "asset is locked by a pending transfer"})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrInsufficientInventory):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "sold out"})
	case errors.Is(err, admin.ErrEventConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "event conflict"})
	case errors.Is(err, admin.ErrTierConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "tier conflict"})
	case errors.Is(err, domain.ErrNotRefundable):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "not refundable"})
	case errors.Is(err, domain.ErrNotTransferable):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "not transferable"})
	case errors.Is(err, domain.ErrAlreadyUsed):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "ticket already used"})
	case errors.Is(err, domain.ErrNotSold):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "ticket not sold"})
	case errors.Is(err, domain.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid argument"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
