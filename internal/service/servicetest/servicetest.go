// Package servicetest builds the in-memory environment shared by the
// service tests.
package servicetest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository/memory"
	"github.com/kirinyoku/tix-engine/internal/service/inventory"
)

var Start = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type Env struct {
	Store  *memory.Store
	Clock  *clock.FakeClock
	Ledger *inventory.Ledger
	Logger *slog.Logger
}

func New(t *testing.T) *Env {
	t.Helper()

	clk := clock.Fake(Start)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &Env{
		Store:  memory.New(),
		Clock:  clk,
		Ledger: inventory.New(nil, nil, clk, logger),
		Logger: logger,
	}
}

// Tier creates an event with one tier of the given capacity.
func (e *Env) Tier(t *testing.T, capacity int, price string) domain.Tier {
	t.Helper()
	ctx := context.Background()

	ev := domain.Event{
		ID:        uuid.New(),
		Title:     "Open Air",
		StartsAt:  Start.Add(30 * 24 * time.Hour),
		EndsAt:    Start.Add(30*24*time.Hour + 4*time.Hour),
		CreatedAt: Start,
	}
	require.NoError(t, e.Store.Events().Create(ctx, ev))

	tier := domain.Tier{
		ID:        uuid.New(),
		EventID:   ev.ID,
		Name:      "GA",
		Price:     decimal.RequireFromString(price),
		Capacity:  capacity,
		Available: capacity,
		CreatedAt: Start,
	}
	require.NoError(t, e.Store.Tiers().Create(ctx, tier))

	return tier
}

// AssertConserved checks that the counter and the issued tickets of the
// tier add up to its capacity.
func (e *Env) AssertConserved(t *testing.T, tierID uuid.UUID) *domain.TierCounts {
	t.Helper()

	counts, err := e.Ledger.Audit(context.Background(), e.Store, tierID)
	require.NoError(t, err)

	return counts
}
