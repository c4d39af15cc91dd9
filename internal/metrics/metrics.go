package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tix_orders_total",
			Help: "Order lifecycle outcomes",
		},
		[]string{"outcome"},
	)

	ticketsReserved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tix_tickets_reserved_total",
			Help: "Units debited from tiers",
		},
	)

	ticketsReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tix_tickets_released_total",
			Help: "Units returned to tiers",
		},
	)

	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tix_transfers_total",
			Help: "Transfer lifecycle outcomes",
		},
		[]string{"outcome"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tix_sweep_duration_seconds",
			Help:    "Duration of one expiry sweep pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	sweptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tix_swept_total",
			Help: "Items expired by the sweeper",
		},
		[]string{"kind"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tix_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tix_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func OrderOutcome(outcome string) { ordersTotal.WithLabelValues(outcome).Inc() }

func TicketsReserved(n int) { ticketsReserved.Add(float64(n)) }

func TicketsReleased(n int) { ticketsReleased.Add(float64(n)) }

func TransferOutcome(outcome string) { transfersTotal.WithLabelValues(outcome).Inc() }

func Swept(kind string, n int) { sweptTotal.WithLabelValues(kind).Add(float64(n)) }

func ObserveSweep(d time.Duration) { sweepDuration.Observe(d.Seconds()) }

// Middleware records count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
