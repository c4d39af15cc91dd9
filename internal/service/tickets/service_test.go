package tickets_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/service/reservation"
	"github.com/kirinyoku/tix-engine/internal/service/servicetest"
	"github.com/kirinyoku/tix-engine/internal/service/tickets"
)

func TestMarkUsed(t *testing.T) {
	env := servicetest.New(t)
	res := reservation.New(env.Store, env.Ledger, nil, nil, env.Clock, env.Logger, reservation.Config{})
	svc := tickets.New(env.Store, nil, env.Clock, env.Logger)
	tier := env.Tier(t, 3, "15")
	ctx := context.Background()

	o, err := res.OpenOrder(ctx, reservation.OpenOrderInput{EventID: tier.EventID, TierID: tier.ID, Quantity: 2, BuyerID: "alice"})
	require.NoError(t, err)

	held := o.Tickets[0].TicketCode
	_, err = svc.MarkUsed(ctx, held)
	require.ErrorIs(t, err, domain.ErrNotSold)

	_, err = res.ConfirmPayment(ctx, o.Order.ID)
	require.NoError(t, err)

	used, err := svc.MarkUsed(ctx, " "+held+" ")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketUsed, used.Status)
	require.NotNil(t, used.UsedAt)
	assert.Equal(t, servicetest.Start, *used.UsedAt)

	_, err = svc.MarkUsed(ctx, held)
	require.ErrorIs(t, err, domain.ErrAlreadyUsed)

	locked := o.Tickets[1]
	require.NoError(t, env.Store.Tickets().Lock(ctx, locked.ID, "alice"))
	_, err = svc.MarkUsed(ctx, locked.TicketCode)
	require.ErrorIs(t, err, domain.ErrLocked)

	_, err = svc.MarkUsed(ctx, "NOPE")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.MarkUsed(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	env.AssertConserved(t, tier.ID)
}
