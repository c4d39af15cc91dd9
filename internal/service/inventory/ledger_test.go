package inventory_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
	"github.com/kirinyoku/tix-engine/internal/repository/memory"
	"github.com/kirinyoku/tix-engine/internal/service/inventory"
	"github.com/kirinyoku/tix-engine/internal/uow"
)

type mockCache struct{ mock.Mock }

func (m *mockCache) InvalidateTier(ctx context.Context, eventID, tierID uuid.UUID) error {
	return m.Called(eventID, tierID).Error(0)
}

type mockFeed struct{ mock.Mock }

func (m *mockFeed) PublishAvailability(ctx context.Context, a domain.Availability) error {
	return m.Called(a).Error(0)
}

var t0 = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

func setup(t *testing.T, capacity int) (*memory.Store, *uow.UoW, domain.Tier) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	ev := domain.Event{ID: uuid.New(), Title: "Gig", StartsAt: t0, EndsAt: t0.Add(time.Hour), CreatedAt: t0}
	require.NoError(t, store.Events().Create(ctx, ev))

	tier := domain.Tier{ID: uuid.New(), EventID: ev.ID, Name: "GA", Price: decimal.NewFromInt(10), Capacity: capacity, Available: capacity, CreatedAt: t0}
	require.NoError(t, store.Tiers().Create(ctx, tier))

	return store, uow.NewUoW(store), tier
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestReserveNotifiesAfterCommit(t *testing.T) {
	store, u, tier := setup(t, 5)
	cache, feed := new(mockCache), new(mockFeed)
	ledger := inventory.New(cache, feed, clock.Fake(t0), discard())

	cache.On("InvalidateTier", tier.EventID, tier.ID).Return(nil).Once()
	feed.On("PublishAvailability", mock.MatchedBy(func(a domain.Availability) bool {
		return a.TierID == tier.ID && a.Available == 3 && a.At.Equal(t0)
	})).Return(nil).Once()

	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		got, err := ledger.Reserve(ctx, tx, after, tier.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Available)
		cache.AssertNotCalled(t, "InvalidateTier", mock.Anything, mock.Anything)
		return nil
	})
	require.NoError(t, err)

	cache.AssertExpectations(t)
	feed.AssertExpectations(t)

	got, err := store.Tiers().Get(context.Background(), tier.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Available)
}

func TestReserveSoldOutWritesNothing(t *testing.T) {
	store, u, tier := setup(t, 1)
	ledger := inventory.New(nil, nil, clock.Fake(t0), discard())

	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		_, err := ledger.Reserve(ctx, tx, after, tier.ID, 2)
		return err
	})
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)

	got, err := store.Tiers().Get(context.Background(), tier.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Available)
}

func TestReserveLastUnitOnce(t *testing.T) {
	_, u, tier := setup(t, 1)
	ledger := inventory.New(nil, nil, clock.Fake(t0), discard())

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		soldOut int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
				_, err := ledger.Reserve(ctx, tx, after, tier.ID, 1)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientInventory):
				soldOut++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, soldOut)
}

func TestReleaseBeyondCapacity(t *testing.T) {
	_, u, tier := setup(t, 2)
	ledger := inventory.New(nil, nil, clock.Fake(t0), discard())

	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		_, err := ledger.Release(ctx, tx, after, tier.ID, 1)
		return err
	})
	require.ErrorIs(t, err, inventory.ErrLedgerMismatch)
}

func TestInvalidQuantity(t *testing.T) {
	_, u, tier := setup(t, 2)
	ledger := inventory.New(nil, nil, clock.Fake(t0), discard())

	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		_, err := ledger.Reserve(ctx, tx, after, tier.ID, 0)
		return err
	})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUnknownTier(t *testing.T) {
	_, u, _ := setup(t, 2)
	ledger := inventory.New(nil, nil, clock.Fake(t0), discard())

	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		_, err := ledger.Reserve(ctx, tx, after, uuid.New(), 1)
		return err
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCommitChecksDebitedUnits(t *testing.T) {
	_, u, tier := setup(t, 3)
	ledger := inventory.New(nil, nil, clock.Fake(t0), discard())

	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		if _, err := ledger.Reserve(ctx, tx, after, tier.ID, 2); err != nil {
			return err
		}
		return ledger.Commit(ctx, tx, tier.ID, 2)
	})
	require.NoError(t, err)

	err = u.Do(context.Background(), func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		return ledger.Commit(ctx, tx, tier.ID, 3)
	})
	require.ErrorIs(t, err, inventory.ErrLedgerMismatch)

	err = u.Do(context.Background(), func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		return ledger.Commit(ctx, tx, uuid.New(), 1)
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuditFindsUnbackedDebit(t *testing.T) {
	store, u, tier := setup(t, 3)
	ledger := inventory.New(nil, nil, clock.Fake(t0), discard())

	counts, err := ledger.Audit(context.Background(), store, tier.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Available)

	// A debit with no tickets behind it breaks conservation.
	err = u.Do(context.Background(), func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		_, err := ledger.Reserve(ctx, tx, after, tier.ID, 1)
		return err
	})
	require.NoError(t, err)

	_, err = ledger.Audit(context.Background(), store, tier.ID)
	require.ErrorIs(t, err, inventory.ErrLedgerMismatch)
}
