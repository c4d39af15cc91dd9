package httpgin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/service"
)

const streamKeepAlive = 15 * time.Second

// @Summary  Stream tier availability (server-sent events)
// @Param    id  path  string  true  "Tier ID (uuid)"
// @Produce  text/event-stream
// @Success  200 {object} domain.Availability "event: availability"
// @Failure  404 {object} ErrorResponse
// @Failure  503 {object} ErrorResponse "feed not configured"
// @Router   /tiers/{id}/availability/stream [get]
func handleAvailabilityStream(
	svcs *service.Services,
	feed AvailabilitySubscriber,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		tierID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if feed == nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "availability feed not configured"})
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		if _, err := svcs.Query.TierAvailability(ctx, tierID); err != nil {
			respondErr(c, err)
			return
		}

		updates := make(chan domain.Availability, 16)
		ready := make(chan struct{})
		errc := make(chan error, 1)

		go func() {
			errc <- feed.Subscribe(ctx, tierID, func() { close(ready) },
				func(ctx context.Context, a domain.Availability) {
					select {
					case updates <- a:
					default:
						// client lags; drop
					}
				})
		}()

		select {
		case <-ready:
		case err := <-errc:
			logger.Error("availability subscribe failed", "tier_id", tierID, "error", err)
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "availability feed unavailable"})
			return
		case <-ctx.Done():
			return
		}

		// Subscribed; any later change reaches updates.
		snap, err := svcs.Query.TierAvailability(ctx, tierID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		c.SSEvent("availability", snap)
		c.Writer.Flush()

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case err := <-errc:
				if err != nil && ctx.Err() == nil {
					logger.Warn("availability feed closed", "tier_id", tierID, "error", err)
				}
				return false
			case a := <-updates:
				c.SSEvent("availability", a)
				return true
			case <-keepAlive.C:
				_, _ = io.WriteString(w, ": ping\n\n")
				return true
			}
		})
	}
}

// ClosableFeed ends every subscription of the wrapped feed once Close is
// called. Server shutdown closes it so availability streams finish while
// ordinary requests drain.
type ClosableFeed struct {
	feed   AvailabilitySubscriber
	closed context.Context
	close  context.CancelFunc
}

func NewClosableFeed(feed AvailabilitySubscriber) *ClosableFeed {
	closed, cancel := context.WithCancel(context.Background())
	return &ClosableFeed{feed: feed, closed: closed, close: cancel}
}

func (f *ClosableFeed) Subscribe(
	ctx context.Context,
	tierID uuid.UUID,
	ready func(),
	handler func(ctx context.Context, a domain.Availability),
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(f.closed, cancel)
	defer stop()

	err := f.feed.Subscribe(ctx, tierID, ready, handler)
	if f.closed.Err() != nil {
		return nil
	}
	return err
}

// Close ends current subscriptions and makes new ones return at once.
func (f *ClosableFeed) Close() {
	f.close()
}
