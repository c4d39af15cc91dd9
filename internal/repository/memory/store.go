// Package memory is an in-process repository.Store. It backs local runs
// with STORE=memory and the service tests. Transactions are serialized and
// applied to a copy of the state that replaces the live one on commit.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/domain"
	"github.com/kirinyoku/tix-engine/internal/repository"
)

type state struct {
	events       map[uuid.UUID]domain.Event
	tiers        map[uuid.UUID]domain.Tier
	orders       map[uuid.UUID]domain.Order
	tickets      map[uuid.UUID]domain.Ticket
	collectibles map[uuid.UUID]domain.Collectible
	transfers    map[uuid.UUID]domain.Transfer
}

func newState() *state {
	return &state{
		events:       make(map[uuid.UUID]domain.Event),
		tiers:        make(map[uuid.UUID]domain.Tier),
		orders:       make(map[uuid.UUID]domain.Order),
		tickets:      make(map[uuid.UUID]domain.Ticket),
		collectibles: make(map[uuid.UUID]domain.Collectible),
		transfers:    make(map[uuid.UUID]domain.Transfer),
	}
}

// clone copies the maps. Values are replaced as a whole on every write, so
// sharing their pointer fields between copies is safe.
func (s *state) clone() *state {
	return &state{
		events:       maps.Clone(s.events),
		tiers:        maps.Clone(s.tiers),
		orders:       maps.Clone(s.orders),
		tickets:      maps.Clone(s.tickets),
		collectibles: maps.Clone(s.collectibles),
		transfers:    maps.Clone(s.transfers),
	}
}

type runner func(fn func(st *state) error) error

type Store struct {
	mu sync.Mutex
	st *state
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// RunTx runs fn against a private copy of the state and publishes the copy
// only when fn succeeds. Transactions never overlap. fn must use the
// repositories of tx and not the ones of the Store.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repos) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	run := func(f func(st *state) error) error { return f(work) }

	if err := fn(ctx, repos{run: run}); err != nil {
		return err
	}

	s.st = work
	return nil
}

// auto runs a single repository call outside a transaction. Every call
// validates before it writes, so a failed call leaves the state untouched.
func (s *Store) auto(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) Events() repository.EventRepo             { return &EventRepo{run: s.auto} }
func (s *Store) Tiers() repository.TierRepo               { return &TierRepo{run: s.auto} }
func (s *Store) Orders() repository.OrderRepo             { return &OrderRepo{run: s.auto} }
func (s *Store) Tickets() repository.TicketRepo           { return &TicketRepo{run: s.auto} }
func (s *Store) Collectibles() repository.CollectibleRepo { return &CollectibleRepo{run: s.auto} }
func (s *Store) Transfers() repository.TransferRepo       { return &TransferRepo{run: s.auto} }

type repos struct {
	run runner
}

func (r repos) Events() repository.EventRepo             { return &EventRepo{run: r.run} }
func (r repos) Tiers() repository.TierRepo               { return &TierRepo{run: r.run} }
func (r repos) Orders() repository.OrderRepo             { return &OrderRepo{run: r.run} }
func (r repos) Tickets() repository.TicketRepo           { return &TicketRepo{run: r.run} }
func (r repos) Collectibles() repository.CollectibleRepo { return &CollectibleRepo{run: r.run} }
func (r repos) Transfers() repository.TransferRepo       { return &TransferRepo{run: r.run} }
