package reservation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tix-engine/internal/domain"
	redisrepo "github.com/kirinyoku/tix-engine/internal/repository/redis"
	"github.com/kirinyoku/tix-engine/internal/service/reservation"
	"github.com/kirinyoku/tix-engine/internal/service/servicetest"
)

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Allow(ctx context.Context, id string) (redisrepo.Decision, error) {
	args := m.Called(id)
	return args.Get(0).(redisrepo.Decision), args.Error(1)
}

func newService(env *servicetest.Env, limiter reservation.Limiter) *reservation.Service {
	return reservation.New(env.Store, env.Ledger, limiter, nil, env.Clock, env.Logger, reservation.Config{
		HoldTTL:     10 * time.Minute,
		MaxPerOrder: 4,
	})
}

func open(t *testing.T, svc *reservation.Service, tier domain.Tier, qty int, buyer string) *domain.OrderWithTickets {
	t.Helper()
	o, err := svc.OpenOrder(context.Background(), reservation.OpenOrderInput{
		EventID:  tier.EventID,
		TierID:   tier.ID,
		Quantity: qty,
		BuyerID:  buyer,
	})
	require.NoError(t, err)
	return o
}

func TestOpenAndPay(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 5, "25.50")
	ctx := context.Background()

	o := open(t, svc, tier, 2, "alice")
	assert.Equal(t, domain.OrderPending, o.Order.Status)
	assert.Equal(t, "51", o.Order.TotalPrice.String())
	assert.Equal(t, servicetest.Start.Add(10*time.Minute), o.Order.HoldExpiresAt)
	require.Len(t, o.Tickets, 2)
	for _, tk := range o.Tickets {
		assert.Equal(t, domain.TicketHeld, tk.Status)
		assert.Len(t, tk.TicketCode, domain.TicketCodeLength)
	}

	counts := env.AssertConserved(t, tier.ID)
	assert.Equal(t, 3, counts.Available)
	assert.Equal(t, 2, counts.Held)

	env.Clock.Advance(9 * time.Minute)

	paid, err := svc.ConfirmPayment(ctx, o.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, paid.Order.Status)
	require.NotNil(t, paid.Order.PaidAt)
	for _, tk := range paid.Tickets {
		assert.Equal(t, domain.TicketSold, tk.Status)
	}

	counts = env.AssertConserved(t, tier.ID)
	assert.Equal(t, 2, counts.Sold)

	_, err = svc.ConfirmPayment(ctx, o.Order.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestLastUnitHasOneWinner(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 1, "10")

	const buyers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		won     int
		soldOut int
	)
	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.OpenOrder(context.Background(), reservation.OpenOrderInput{
				EventID:  tier.EventID,
				TierID:   tier.ID,
				Quantity: 1,
				BuyerID:  uuid.NewString(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, reservation.ErrSoldOut):
				soldOut++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, buyers-1, soldOut)

	counts := env.AssertConserved(t, tier.ID)
	assert.Equal(t, 0, counts.Available)
}

func TestSoldOutMatchesInsufficientInventory(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 1, "10")

	_, err := svc.OpenOrder(context.Background(), reservation.OpenOrderInput{
		EventID: tier.EventID, TierID: tier.ID, Quantity: 2, BuyerID: "alice",
	})
	require.ErrorIs(t, err, reservation.ErrSoldOut)
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)

	env.AssertConserved(t, tier.ID)
}

func TestPaymentAtDeadlineExpiresHold(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 3, "10")
	ctx := context.Background()

	o := open(t, svc, tier, 2, "alice")

	env.Clock.Set(o.Order.HoldExpiresAt)

	_, err := svc.ConfirmPayment(ctx, o.Order.ID)
	require.ErrorIs(t, err, reservation.ErrHoldExpired)
	require.ErrorIs(t, err, domain.ErrExpired)

	got, err := env.Store.Orders().Get(ctx, o.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, got.Status)
	assert.Equal(t, domain.ReasonHoldExpired, got.CancelReason)

	tickets, err := env.Store.Tickets().ListByOrder(ctx, o.Order.ID)
	require.NoError(t, err)
	for _, tk := range tickets {
		assert.Equal(t, domain.TicketReleased, tk.Status)
	}

	counts := env.AssertConserved(t, tier.ID)
	assert.Equal(t, 3, counts.Available)

	_, err = svc.ConfirmPayment(ctx, o.Order.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestCancelOrder(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 3, "10")
	ctx := context.Background()

	o := open(t, svc, tier, 1, "alice")

	_, err := svc.CancelOrder(ctx, o.Order.ID, "mallory", "")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	cancelled, err := svc.CancelOrder(ctx, o.Order.ID, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, cancelled.Status)
	assert.Equal(t, domain.ReasonUser, cancelled.CancelReason)

	_, err = svc.CancelOrder(ctx, o.Order.ID, "alice", "")
	require.ErrorIs(t, err, domain.ErrAlreadyResolved)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	counts := env.AssertConserved(t, tier.ID)
	assert.Equal(t, 3, counts.Available)

	_, err = svc.CancelOrder(ctx, uuid.New(), "alice", "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpireHoldIsIdempotent(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 2, "10")
	ctx := context.Background()

	o := open(t, svc, tier, 2, "alice")

	expired, err := svc.ExpireHold(ctx, o.Order.ID)
	require.NoError(t, err)
	assert.False(t, expired, "not due yet")

	env.Clock.Advance(10 * time.Minute)

	expired, err = svc.ExpireHold(ctx, o.Order.ID)
	require.NoError(t, err)
	assert.True(t, expired)

	expired, err = svc.ExpireHold(ctx, o.Order.ID)
	require.NoError(t, err)
	assert.False(t, expired)

	counts := env.AssertConserved(t, tier.ID)
	assert.Equal(t, 2, counts.Available)
}

func TestRefundTicketThenOrderFollows(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 4, "10")
	ctx := context.Background()

	o := open(t, svc, tier, 2, "alice")
	_, err := svc.ConfirmPayment(ctx, o.Order.ID)
	require.NoError(t, err)

	first, err := svc.RefundTicket(ctx, o.Tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketRefunded, first.Status)

	got, err := env.Store.Orders().Get(ctx, o.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, got.Status)

	_, err = svc.RefundTicket(ctx, o.Tickets[0].ID)
	require.ErrorIs(t, err, domain.ErrNotRefundable)

	_, err = svc.RefundTicket(ctx, o.Tickets[1].ID)
	require.NoError(t, err)

	got, err = env.Store.Orders().Get(ctx, o.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRefunded, got.Status)
	require.NotNil(t, got.RefundedAt)

	counts := env.AssertConserved(t, tier.ID)
	assert.Equal(t, 2, counts.Available, "refunds are not resold")
	assert.Equal(t, 2, counts.Refunded)
}

func TestRefundLockedTicket(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 2, "10")
	ctx := context.Background()

	o := open(t, svc, tier, 1, "alice")
	_, err := svc.ConfirmPayment(ctx, o.Order.ID)
	require.NoError(t, err)

	require.NoError(t, env.Store.Tickets().Lock(ctx, o.Tickets[0].ID, "alice"))

	_, err = svc.RefundTicket(ctx, o.Tickets[0].ID)
	require.ErrorIs(t, err, domain.ErrLocked)
	require.ErrorIs(t, err, domain.ErrNotRefundable)

	_, err = svc.RefundOrder(ctx, o.Order.ID)
	require.ErrorIs(t, err, domain.ErrLocked)
}

func TestRefundOrder(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 3, "10")
	ctx := context.Background()

	pending := open(t, svc, tier, 1, "bob")
	_, err := svc.RefundOrder(ctx, pending.Order.ID)
	require.ErrorIs(t, err, domain.ErrNotRefundable)

	o := open(t, svc, tier, 2, "alice")
	_, err = svc.ConfirmPayment(ctx, o.Order.ID)
	require.NoError(t, err)

	refunded, err := svc.RefundOrder(ctx, o.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRefunded, refunded.Order.Status)
	for _, tk := range refunded.Tickets {
		assert.Equal(t, domain.TicketRefunded, tk.Status)
		assert.NotNil(t, tk.RefundedAt)
	}

	_, err = svc.RefundOrder(ctx, o.Order.ID)
	require.ErrorIs(t, err, domain.ErrNotRefundable)

	env.AssertConserved(t, tier.ID)
}

func TestRefundOrderWithUsedTicket(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 3, "10")
	ctx := context.Background()

	o := open(t, svc, tier, 2, "alice")
	_, err := svc.ConfirmPayment(ctx, o.Order.ID)
	require.NoError(t, err)

	require.NoError(t, env.Store.Tickets().UpdateStatus(ctx, o.Tickets[0].ID, domain.TicketSold, domain.TicketUsed, env.Clock.Now()))

	_, err = svc.RefundOrder(ctx, o.Order.ID)
	require.ErrorIs(t, err, domain.ErrNotRefundable)

	// the unused ticket can still be refunded on its own; the order stays
	// paid because one ticket was used
	_, err = svc.RefundTicket(ctx, o.Tickets[1].ID)
	require.NoError(t, err)

	got, err := env.Store.Orders().Get(ctx, o.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, got.Status)
}

func TestOpenOrderValidation(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 10, "10")
	other := env.Tier(t, 10, "10")
	ctx := context.Background()

	cases := []struct {
		name string
		in   reservation.OpenOrderInput
		want error
	}{
		{"zero quantity", reservation.OpenOrderInput{EventID: tier.EventID, TierID: tier.ID, Quantity: 0, BuyerID: "a"}, reservation.ErrQuantity},
		{"above cap", reservation.OpenOrderInput{EventID: tier.EventID, TierID: tier.ID, Quantity: 5, BuyerID: "a"}, reservation.ErrQuantity},
		{"no buyer", reservation.OpenOrderInput{EventID: tier.EventID, TierID: tier.ID, Quantity: 1}, reservation.ErrMissingBuyer},
		{"unknown tier", reservation.OpenOrderInput{EventID: tier.EventID, TierID: uuid.New(), Quantity: 1, BuyerID: "a"}, reservation.ErrTierNotFound},
		{"tier of other event", reservation.OpenOrderInput{EventID: other.EventID, TierID: tier.ID, Quantity: 1, BuyerID: "a"}, reservation.ErrTierMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.OpenOrder(ctx, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}

	env.AssertConserved(t, tier.ID)
}

func TestOpenOrderRateLimited(t *testing.T) {
	env := servicetest.New(t)
	limiter := new(mockLimiter)
	svc := newService(env, limiter)
	tier := env.Tier(t, 10, "10")

	limiter.On("Allow", "alice").Return(redisrepo.Decision{Allowed: false, RetryAfter: 30 * time.Second}, nil).Once()
	limiter.On("Allow", "alice").Return(redisrepo.Decision{}, errors.New("redis down")).Once()

	_, err := svc.OpenOrder(context.Background(), reservation.OpenOrderInput{
		EventID: tier.EventID, TierID: tier.ID, Quantity: 1, BuyerID: "alice",
	})
	var rl *reservation.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)

	// limiter outage lets the order through
	_, err = svc.OpenOrder(context.Background(), reservation.OpenOrderInput{
		EventID: tier.EventID, TierID: tier.ID, Quantity: 1, BuyerID: "alice",
	})
	require.NoError(t, err)

	limiter.AssertExpectations(t)
}

func TestRefundTransferredTicket(t *testing.T) {
	env := servicetest.New(t)
	svc := newService(env, nil)
	tier := env.Tier(t, 3, "10")
	ctx := context.Background()

	o := open(t, svc, tier, 2, "alice")
	_, err := svc.ConfirmPayment(ctx, o.Order.ID)
	require.NoError(t, err)

	gifted := o.Tickets[0].ID
	code, err := domain.NewTicketCode()
	require.NoError(t, err)
	require.NoError(t, env.Store.Tickets().Lock(ctx, gifted, "alice"))
	require.NoError(t, env.Store.Tickets().Reissue(ctx, gifted, "alice", "bob", code))

	_, err = svc.RefundTicket(ctx, gifted)
	require.ErrorIs(t, err, reservation.ErrTicketTransferred)
	require.ErrorIs(t, err, domain.ErrNotRefundable)

	_, err = svc.RefundOrder(ctx, o.Order.ID)
	require.ErrorIs(t, err, reservation.ErrTicketTransferred)

	tk, err := env.Store.Tickets().Get(ctx, gifted)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketSold, tk.Status)
	assert.Equal(t, "bob", tk.OwnerID)

	// the ticket alice kept is still refundable
	_, err = svc.RefundTicket(ctx, o.Tickets[1].ID)
	require.NoError(t, err)

	got, err := env.Store.Orders().Get(ctx, o.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, got.Status)

	env.AssertConserved(t, tier.ID)
}
