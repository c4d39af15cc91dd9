package admin_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/service/admin"
	"github.com/kirinyoku/tix-engine/internal/service/servicetest"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) InvalidateEvent(ctx context.Context, eventID uuid.UUID) error {
	return m.Called(ctx, eventID).Error(0)
}

func TestCreateEventAndTier(t *testing.T) {
	env := servicetest.New(t)
	cache := new(mockCache)
	svc := admin.New(env.Store, cache, env.Clock, env.Logger)
	ctx := context.Background()

	starts := servicetest.Start.Add(48 * time.Hour)

	_, err := svc.CreateEvent(ctx, "  ", starts, starts.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.CreateEvent(ctx, "Open Air", starts, starts)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	ev, err := svc.CreateEvent(ctx, " Open Air ", starts, starts.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Open Air", ev.Title)
	assert.Equal(t, servicetest.Start, ev.CreatedAt)

	cache.On("InvalidateEvent", mock.Anything, ev.ID).Return(nil).Once()

	tier, err := svc.CreateTier(ctx, ev.ID, "VIP", decimal.RequireFromString("120.50"), 50)
	require.NoError(t, err)
	assert.Equal(t, 50, tier.Available)

	counts := env.AssertConserved(t, tier.ID)
	assert.Equal(t, 50, counts.Capacity)

	_, err = svc.CreateTier(ctx, ev.ID, "VIP", decimal.NewFromInt(10), 5)
	require.ErrorIs(t, err, admin.ErrTierConflict)

	_, err = svc.CreateTier(ctx, uuid.New(), "GA", decimal.NewFromInt(10), 5)
	require.ErrorIs(t, err, domain.ErrNotFound)

	cache.AssertExpectations(t)
}

func TestCreateTierValidation(t *testing.T) {
	env := servicetest.New(t)
	svc := admin.New(env.Store, nil, env.Clock, env.Logger)
	ctx := context.Background()
	eventID := env.Tier(t, 1, "1").EventID

	tests := []struct {
		name     string
		tier     string
		price    string
		capacity int
	}{
		{"empty name", "", "10", 10},
		{"zero capacity", "GA", "10", 0},
		{"negative price", "GA", "-1", 10},
		{"sub-cent price", "GA", "10.001", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTier(ctx, eventID, tt.tier, decimal.RequireFromString(tt.price), tt.capacity)
			require.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}

	free, err := svc.CreateTier(ctx, eventID, "Free", decimal.Zero, 10)
	require.NoError(t, err)
	assert.True(t, free.Price.IsZero())
}
