// Package sweeper resolves holds and transfers whose deadline passed
// without anyone touching them.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/metrics"
	"github.com/kirinyoku/tix-engine/internal/repository"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultBatch    = 500
)

type HoldExpirer interface {
	ExpireHold(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type TransferExpirer interface {
	Expire(ctx context.Context, code string) (bool, error)
}

// Leader gates passes when several processes share one database.
type Leader interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type Config struct {
	Interval time.Duration
	Batch    int
}

type Sweeper struct {
	store     repository.Repos
	holds     HoldExpirer
	transfers TransferExpirer
	leader    Leader
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config
}

// New builds a Sweeper. leader may be nil for a single process.
func New(
	store repository.Repos,
	holds HoldExpirer,
	transfers TransferExpirer,
	leader Leader,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	if cfg.Batch <= 0 {
		cfg.Batch = DefaultBatch
	}

	return &Sweeper{
		store:     store,
		holds:     holds,
		transfers: transfers,
		leader:    leader,
		clock:     clk,
		logger:    logger.With("component", "sweeper"),
		cfg:       cfg,
	}
}

type Result struct {
	Holds     int
	Transfers int
}

// Run sweeps once right away and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", s.cfg.Interval, "batch", s.cfg.Batch)

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.resign()
			s.logger.Info("sweeper stopped")
			return nil
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if s.leader != nil {
		ok, err := s.leader.Acquire(ctx)
		if err != nil {
			s.logger.Error("leader lock", "error", err)
			return
		}
		if !ok {
			s.logger.Debug("another process holds the sweeper lock")
			return
		}
	}

	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("sweep failed", "error", err)
	}
}

func (s *Sweeper) resign() {
	if s.leader == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.leader.Release(ctx); err != nil {
		s.logger.Warn("failed to release sweeper lock", "error", err)
	}
}

// Sweep runs one pass over expired holds and transfers. Each item goes
// through the same expiry path as a lazy check, so a pass may race with
// request traffic and with other passes without harm.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	start := time.Now()
	defer func() { metrics.ObserveSweep(time.Since(start)) }()

	var res Result

	holds, err := s.sweepHolds(ctx)
	res.Holds = holds
	if err != nil {
		return res, err
	}

	transfers, err := s.sweepTransfers(ctx)
	res.Transfers = transfers
	if err != nil {
		return res, err
	}

	if res.Holds > 0 || res.Transfers > 0 {
		s.logger.Info("sweep finished", "holds", res.Holds, "transfers", res.Transfers)
	}

	return res, nil
}

func (s *Sweeper) sweepHolds(ctx context.Context) (int, error) {
	total := 0
	for {
		ids, err := s.store.Orders().ListExpiredHolds(ctx, s.clock.Now(), s.cfg.Batch)
		if err != nil {
			return total, err
		}

		n := 0
		for _, id := range ids {
			if ctx.Err() != nil {
				return total + n, ctx.Err()
			}
			ok, err := s.holds.ExpireHold(ctx, id)
			if err != nil {
				s.logger.Error("failed to expire hold", "order_id", id, "error", err)
				continue
			}
			if ok {
				n++
			}
		}

		total += n
		metrics.Swept("hold", n)

		// A short page is the last one. A page where nothing moved means
		// every item failed and the next page would be the same.
		if len(ids) < s.cfg.Batch || n == 0 {
			return total, nil
		}
	}
}

func (s *Sweeper) sweepTransfers(ctx context.Context) (int, error) {
	total := 0
	for {
		codes, err := s.store.Transfers().ListExpired(ctx, s.clock.Now(), s.cfg.Batch)
		if err != nil {
			return total, err
		}

		n := 0
		for _, code := range codes {
			if ctx.Err() != nil {
				return total + n, ctx.Err()
			}
			ok, err := s.transfers.Expire(ctx, code)
			if err != nil {
				s.logger.Error("failed to expire transfer", "code", code, "error", err)
				continue
			}
			if ok {
				n++
			}
		}

		total += n
		metrics.Swept("transfer", n)

		if len(codes) < s.cfg.Batch || n == 0 {
			return total, nil
		}
	}
}
