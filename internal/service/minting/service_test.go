package minting_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/events"
	"github.com/kirinyoku/tix-engine/internal/service/minting"
	"github.com/kirinyoku/tix-engine/internal/service/reservation"
	"github.com/kirinyoku/tix-engine/internal/service/servicetest"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, evs ...events.Event) error {
	return m.Called(ctx, evs).Error(0)
}

func TestMintLifecycle(t *testing.T) {
	env := servicetest.New(t)
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	res := reservation.New(env.Store, env.Ledger, nil, nil, env.Clock, env.Logger, reservation.Config{})
	svc := minting.New(env.Store, pub, env.Clock, env.Logger)
	tier := env.Tier(t, 4, "30")
	ctx := context.Background()

	open := func() *domain.OrderWithTickets {
		o, err := res.OpenOrder(ctx, reservation.OpenOrderInput{
			EventID: tier.EventID, TierID: tier.ID, Quantity: 1, BuyerID: "alice",
		})
		require.NoError(t, err)
		return o
	}

	pending := open()
	paid := open()
	_, err := res.ConfirmPayment(ctx, paid.Order.ID)
	require.NoError(t, err)

	mintable, err := svc.ListMintableOrders(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mintable, 1)
	assert.Equal(t, paid.Order.ID, mintable[0].ID)

	_, err = svc.CreateCollectible(ctx, minting.CreateInput{OrderID: pending.Order.ID, DefinitionID: "poster", BuyerID: "alice"})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.CreateCollectible(ctx, minting.CreateInput{OrderID: paid.Order.ID, DefinitionID: "poster", BuyerID: "bob"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.CreateCollectible(ctx, minting.CreateInput{OrderID: paid.Order.ID, DefinitionID: " ", BuyerID: "alice"})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.CreateCollectible(ctx, minting.CreateInput{OrderID: uuid.New(), DefinitionID: "poster", BuyerID: "alice"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	c, err := svc.CreateCollectible(ctx, minting.CreateInput{OrderID: paid.Order.ID, DefinitionID: "poster", BuyerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, domain.MintPending, c.MintStatus)
	assert.Equal(t, "alice", c.OwnerID)

	_, err = svc.CreateCollectible(ctx, minting.CreateInput{OrderID: paid.Order.ID, DefinitionID: "poster", BuyerID: "alice"})
	require.ErrorIs(t, err, domain.ErrAlreadyResolved)

	mintable, err = svc.ListMintableOrders(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, mintable)

	_, err = svc.UpdateMintStatus(ctx, c.ID, domain.MintMinted, nil)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.UpdateMintStatus(ctx, c.ID, domain.MintMinting, json.RawMessage(`{broken`))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.UpdateMintStatus(ctx, c.ID, "burnt", nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.UpdateMintStatus(ctx, c.ID, domain.MintMinting, nil)
	require.NoError(t, err)

	env.Clock.Advance(time.Minute)
	onChain := json.RawMessage(`{"chain":"polygon","token_id":"42"}`)

	minted, err := svc.UpdateMintStatus(ctx, c.ID, domain.MintMinted, onChain)
	require.NoError(t, err)
	assert.Equal(t, domain.MintMinted, minted.MintStatus)
	assert.JSONEq(t, string(onChain), string(minted.OnChain))
	require.NotNil(t, minted.MintedAt)
	assert.Equal(t, servicetest.Start.Add(time.Minute), *minted.MintedAt)

	_, err = svc.UpdateMintStatus(ctx, c.ID, domain.MintFailed, nil)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.UpdateMintStatus(ctx, uuid.New(), domain.MintMinting, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// created, minting, minted
	pub.AssertNumberOfCalls(t, "Publish", 3)
}
