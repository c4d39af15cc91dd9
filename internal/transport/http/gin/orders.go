package httpgin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	redisrepo "github.com/kirinyoku/tix-engine/internal/repository/redis"
	"github.com/kirinyoku/tix-engine/internal/service"
	"github.com/kirinyoku/tix-engine/internal/service/reservation"
)

const idemLockTTL = 60 * time.Second

// @Summary  Open order (idempotent)
// @Param    X-User-ID        header  string  true   "Buyer"
// @Param    Idempotency-Key  header  string  false  "Replay protection"
// @Param    req body  OpenOrderRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} domain.OrderWithTickets
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "sold out / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /orders [post]
func handleOpenOrder(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OpenOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			badRequest(c, "invalid event_id")
			return
		}
		tierID, err := uuid.Parse(req.TierID)
		if err != nil {
			badRequest(c, "invalid tier_id")
			return
		}

		buyer := userID(c)
		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemOrder(buyer, idemKey)

			replayed, err := replayOrWait(c, idem, idemStorageKey, idemKey)
			if err != nil {
				respondErr(c, err)
				return
			}
			if replayed {
				return
			}

			locked, err := idem.Acquire(ctx, idemStorageKey, idemLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if replayed, err := replayOrWait(c, idem, idemStorageKey, idemKey); err != nil || replayed {
					if err != nil {
						respondErr(c, err)
					}
					return
				}
				inProgress(c)
				return
			}
		}

		o, err := svcs.Reservation.OpenOrder(ctx, reservation.OpenOrderInput{
			EventID:  eventID,
			TierID:   tierID,
			Quantity: req.Quantity,
			BuyerID:  buyer,
		})
		if err != nil {
			if idemStorageKey != "" {
				if rerr := idem.Release(ctx, idemStorageKey); rerr != nil {
					logger.Warn("failed to release idempotency key", "error", rerr)
				}
			}
			respondErr(c, err)
			return
		}

		b, err := json.Marshal(o)
		if err != nil {
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" {
			if err := idem.SaveResult(ctx, idemStorageKey, b); err != nil {
				logger.Warn("failed to save idempotent response", "order_id", o.Order.ID, "error", err)
			}
			c.Header("Idempotency-Key", idemKey)
		}

		c.Data(http.StatusCreated, "application/json; charset=utf-8", b)
	}
}

// replayOrWait writes the stored response or the in-progress answer for key
// and reports whether it did.
func replayOrWait(c *gin.Context, idem *redisrepo.IdempotencyStore, storageKey, idemKey string) (bool, error) {
	payload, found, locked, err := idem.Result(c.Request.Context(), storageKey)
	if err != nil {
		return false, err
	}

	switch {
	case found:
		c.Header("Idempotency-Key", idemKey)
		c.Data(http.StatusCreated, "application/json; charset=utf-8", payload)
		return true, nil
	case locked:
		inProgress(c)
		return true, nil
	}

	return false, nil
}

func inProgress(c *gin.Context) {
	c.Header("Retry-After", "1")
	c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
}

// @Summary  Get order with tickets
// @Param    X-User-ID  header  string  true  "Buyer"
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} domain.OrderWithTickets
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /orders/{id} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Query.GetOrderWithTickets(c.Request.Context(), orderID, userID(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary  Confirm payment of a pending order
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} domain.OrderWithTickets
// @Failure  409 {object} ErrorResponse "already processed"
// @Failure  410 {object} ErrorResponse "hold expired"
// @Router   /orders/{id}/pay [post]
func handleConfirmPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Reservation.ConfirmPayment(c.Request.Context(), orderID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary  Cancel a pending order
// @Param    X-User-ID  header  string  true  "Buyer"
// @Param    id  path  string  true  "Order ID (uuid)"
// @Param    req body  CancelOrderRequest false "payload"
// @Success  200 {object} domain.Order
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already processed"
// @Router   /orders/{id}/cancel [post]
func handleCancelOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CancelOrderRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		o, err := svcs.Reservation.CancelOrder(c.Request.Context(), orderID, userID(c), req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary  Refund a paid order
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} domain.OrderWithTickets
// @Failure  422 {object} ErrorResponse "not refundable"
// @Router   /orders/{id}/refund [post]
func handleRefundOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Reservation.RefundOrder(c.Request.Context(), orderID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary  Refund one sold ticket
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  200 {object} domain.Ticket
// @Failure  422 {object} ErrorResponse "not refundable"
// @Failure  423 {object} ErrorResponse "locked by a pending transfer"
// @Router   /tickets/{id}/refund [post]
func handleRefundTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		t, err := svcs.Reservation.RefundTicket(c.Request.Context(), ticketID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  Admit a ticket at the venue
// @Param    req body  VerifyTicketRequest true "payload"
// @Success  200 {object} domain.Ticket
// @Failure  404 {object} ErrorResponse
// @Failure  422 {object} ErrorResponse "already used / not sold"
// @Failure  423 {object} ErrorResponse "locked by a pending transfer"
// @Router   /tickets/verify [post]
func handleVerifyTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		t, err := svcs.Tickets.MarkUsed(c.Request.Context(), req.TicketCode)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  List my orders
// @Param    X-User-ID  header  string  true  "Buyer"
// @Success  200 {array} domain.Order
// @Router   /users/me/orders [get]
func handleListOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svcs.Query.ListOrders(c.Request.Context(), userID(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(orders))
	}
}

// @Summary  List my tickets
// @Param    X-User-ID  header  string  true  "Owner"
// @Success  200 {array} domain.Ticket
// @Router   /users/me/tickets [get]
func handleListTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tickets, err := svcs.Query.ListTickets(c.Request.Context(), userID(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, nonNil(tickets))
	}
}

// nonNil makes empty listings encode as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
