package httpgin_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tix-engine/internal/domain"
	redisrepo "github.com/kirinyoku/tix-engine/internal/repository/redis"
	"github.com/kirinyoku/tix-engine/internal/service"
	"github.com/kirinyoku/tix-engine/internal/service/servicetest"
	httpgin "github.com/kirinyoku/tix-engine/internal/transport/http/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type harness struct {
	t      *testing.T
	env    *servicetest.Env
	router *gin.Engine
}

func newHarness(t *testing.T, ordersPerMinute int) *harness {
	t.Helper()

	env := servicetest.New(t)
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	feed := redisrepo.NewAvailabilityFeed(rdb)
	svcs := service.NewServices(
		env.Store,
		redisrepo.NewCache(rdb),
		feed,
		redisrepo.NewSlidingWindowLimiter(rdb, "orders", ordersPerMinute, time.Minute, env.Clock),
		nil,
		env.Clock,
		env.Logger,
		service.Config{},
	)
	idem := redisrepo.NewIdempotencyStore(rdb, time.Hour)

	return &harness{
		t:      t,
		env:    env,
		router: httpgin.NewRouter(svcs, idem, feed, env.Logger),
	}
}

func (h *harness) do(method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(httpgin.HeaderUserID, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// setup creates an event with one tier through the admin API.
func (h *harness) setup(capacity int) (domain.Event, domain.Tier) {
	h.t.Helper()

	w := h.do(http.MethodPost, "/admin/events", "", map[string]any{
		"title":     "Open Air",
		"starts_at": "2026-08-01T18:00:00Z",
		"ends_at":   "2026-08-01T23:00:00Z",
	})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	ev := decode[domain.Event](h.t, w)

	w = h.do(http.MethodPost, "/admin/events/"+ev.ID.String()+"/tiers", "", map[string]any{
		"name":     "GA",
		"price":    "45.00",
		"capacity": capacity,
	})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())

	return ev, decode[domain.Tier](h.t, w)
}

func (h *harness) openOrder(tier domain.Tier, user string, qty int, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.do(http.MethodPost, "/orders", user, map[string]any{
		"event_id": tier.EventID,
		"tier_id":  tier.ID,
		"quantity": qty,
	}, headers...)
}

func (h *harness) buy(tier domain.Tier, user string, qty int) domain.OrderWithTickets {
	h.t.Helper()

	w := h.openOrder(tier, user, qty)
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	o := decode[domain.OrderWithTickets](h.t, w)

	w = h.do(http.MethodPost, "/orders/"+o.Order.ID.String()+"/pay", "", nil)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())

	return decode[domain.OrderWithTickets](h.t, w)
}

func TestPurchaseAndTransferFlow(t *testing.T) {
	h := newHarness(t, 100)
	ev, tier := h.setup(5)

	w := h.do(http.MethodGet, "/events/"+ev.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = h.do(http.MethodGet, "/events/"+ev.ID.String(), "", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = h.openOrder(tier, "", 1)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	paid := h.buy(tier, "alice", 2)
	assert.Equal(t, domain.OrderPaid, paid.Order.Status)
	assert.True(t, decimal.RequireFromString("90").Equal(paid.Order.TotalPrice), paid.Order.TotalPrice.String())

	w = h.do(http.MethodGet, "/orders/"+paid.Order.ID.String(), "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodGet, "/tiers/"+tier.ID.String()+"/availability", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[domain.Availability](t, w).Available)

	gift := paid.Tickets[0]
	w = h.do(http.MethodPost, "/transfers", "alice", map[string]any{
		"asset_type": "ticket",
		"asset_id":   gift.ID,
		"kind":       "gift",
		"message":    "see you there",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[httpgin.CreateTransferResponse](t, w)
	code := created.Transfer.Code
	assert.Equal(t, "tixgo://transfer/"+code, created.Link)

	w = h.do(http.MethodGet, "/transfers/"+code, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/transfers/"+strings.ToLower(code), "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[domain.TransferView](t, w)
	assert.Equal(t, "alice", view.Transfer.FromUserID)
	assert.NotContains(t, w.Body.String(), gift.TicketCode)

	w = h.do(http.MethodGet, "/transfers/"+code+"/qr", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = h.do(http.MethodPost, "/tickets/"+gift.ID.String()+"/refund", "", nil)
	assert.Equal(t, http.StatusLocked, w.Code)

	w = h.do(http.MethodPost, "/tickets/verify", "", map[string]string{"ticket_code": gift.TicketCode})
	assert.Equal(t, http.StatusLocked, w.Code)

	w = h.do(http.MethodPost, "/transfers/"+code+"/accept", "alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPost, "/transfers/"+code+"/accept", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/transfers/"+code+"/reject", "carol", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already processed", decode[httpgin.ErrorResponse](t, w).Error)

	w = h.do(http.MethodGet, "/users/me/tickets", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bobs := decode[[]domain.Ticket](t, w)
	require.Len(t, bobs, 1)
	assert.Equal(t, gift.ID, bobs[0].ID)
	assert.NotEqual(t, gift.TicketCode, bobs[0].TicketCode)

	w = h.do(http.MethodPost, "/tickets/"+gift.ID.String()+"/refund", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.do(http.MethodPost, "/tickets/verify", "", map[string]string{"ticket_code": gift.TicketCode})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPost, "/tickets/verify", "", map[string]string{"ticket_code": bobs[0].TicketCode})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, "/tickets/verify", "", map[string]string{"ticket_code": bobs[0].TicketCode})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.do(http.MethodGet, "/users/me/transfers", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Transfer](t, w), 1)

	w = h.do(http.MethodGet, "/users/me/collectibles", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	h.env.AssertConserved(t, tier.ID)
}

func TestCollectibleFlow(t *testing.T) {
	h := newHarness(t, 100)
	_, tier := h.setup(3)
	paid := h.buy(tier, "alice", 1)

	w := h.do(http.MethodGet, "/users/me/mintable-orders", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]domain.Order](t, w), 1)

	w = h.do(http.MethodPost, "/collectibles", "alice", map[string]any{
		"order_id":      paid.Order.ID,
		"definition_id": "poster-2026",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	col := decode[domain.Collectible](t, w)

	w = h.do(http.MethodPost, "/collectibles", "alice", map[string]any{
		"order_id":      paid.Order.ID,
		"definition_id": "poster-2026",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	path := "/collectibles/" + col.ID.String() + "/mint-status"

	w = h.do(http.MethodPost, path, "", map[string]any{"status": "minted"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPost, path, "", map[string]any{"status": "minting"})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, path, "", map[string]any{
		"status":   "minted",
		"on_chain": map[string]string{"token_id": "7"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	minted := decode[domain.Collectible](t, w)
	assert.Equal(t, domain.MintMinted, minted.MintStatus)
	assert.JSONEq(t, `{"token_id":"7"}`, string(minted.OnChain))

	w = h.do(http.MethodPost, "/transfers", "alice", map[string]any{
		"asset_type": "collectible",
		"asset_id":   col.ID,
		"kind":       "sale",
		"price":      "12.50",
		"ttl_hours":  48,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t, 100)
	_, tier := h.setup(2)

	w := h.openOrder(tier, "alice", 3)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "sold out", decode[httpgin.ErrorResponse](t, w).Error)

	w = h.openOrder(tier, "alice", 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/orders/not-a-uuid", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/orders/"+uuid.NewString(), "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodGet, "/transfers/NOPE1234", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.openOrder(tier, "alice", 2)
	require.Equal(t, http.StatusCreated, w.Code)
	o := decode[domain.OrderWithTickets](t, w)
	orderPath := "/orders/" + o.Order.ID.String()

	w = h.do(http.MethodPost, orderPath+"/cancel", "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPost, orderPath+"/refund", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	h.env.Clock.Advance(15 * time.Minute)

	w = h.do(http.MethodPost, orderPath+"/pay", "", nil)
	assert.Equal(t, http.StatusGone, w.Code)

	w = h.do(http.MethodPost, orderPath+"/pay", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodGet, orderPath, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.OrderCancelled, decode[domain.OrderWithTickets](t, w).Order.Status)

	counts := h.env.AssertConserved(t, tier.ID)
	assert.Equal(t, 2, counts.Available)
}

func TestOpenOrderIdempotent(t *testing.T) {
	h := newHarness(t, 100)
	_, tier := h.setup(10)

	first := h.openOrder(tier, "alice", 2, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Equal(t, "k-1", first.Header().Get("Idempotency-Key"))

	again := h.openOrder(tier, "alice", 2, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, again.Code)
	assert.JSONEq(t, first.Body.String(), again.Body.String())

	// Keys are scoped per buyer.
	other := h.openOrder(tier, "bob", 2, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, other.Code)

	counts := h.env.AssertConserved(t, tier.ID)
	assert.Equal(t, 6, counts.Available)
}

func TestOpenOrderRateLimited(t *testing.T) {
	h := newHarness(t, 1)
	_, tier := h.setup(10)

	w := h.openOrder(tier, "alice", 1)
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.openOrder(tier, "alice", 1)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = h.openOrder(tier, "bob", 1)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAvailabilityStream(t *testing.T) {
	h := newHarness(t, 100)
	_, tier := h.setup(5)

	srv := httptest.NewServer(h.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/tiers/"+tier.ID.String()+"/availability/stream", nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := bufio.NewReader(resp.Body)
	next := func() domain.Availability {
		t.Helper()
		for {
			line, err := events.ReadString('\n')
			require.NoError(t, err)
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data:"); ok {
				var a domain.Availability
				require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(data)), &a))
				return a
			}
		}
	}

	assert.Equal(t, 5, next().Available)

	w := h.openOrder(tier, "alice", 2)
	require.Equal(t, http.StatusCreated, w.Code)

	got := next()
	assert.Equal(t, tier.ID, got.TierID)
	assert.Equal(t, 3, got.Available)

	w = h.do(http.MethodGet, "/tiers/"+uuid.NewString()+"/availability/stream", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
