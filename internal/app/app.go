package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirinyoku/tix-engine/internal/clock"
	"github.com/kirinyoku/tix-engine/internal/config"
	"github.com/kirinyoku/tix-engine/internal/events"
	"github.com/kirinyoku/tix-engine/internal/kafka"
	"github.com/kirinyoku/tix-engine/internal/postgres"
	"github.com/kirinyoku/tix-engine/internal/redis"
	"github.com/kirinyoku/tix-engine/internal/repository"
	"github.com/kirinyoku/tix-engine/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/tix-engine/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tix-engine/internal/repository/redis"
	"github.com/kirinyoku/tix-engine/internal/service"
	"github.com/kirinyoku/tix-engine/internal/service/reservation"
	"github.com/kirinyoku/tix-engine/internal/service/sweeper"
	"github.com/kirinyoku/tix-engine/internal/service/transfer"
	httpgin "github.com/kirinyoku/tix-engine/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

const (
	idempotencyTTL = 2 * time.Hour
	leaderName     = "sweeper"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	sweeper    *sweeper.Sweeper
	closers    []io.Closer
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()
	clk := clock.Real()
	a := &App{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	var (
		cache   *redisrepo.Cache
		feed    *redisrepo.AvailabilityFeed
		limiter *redisrepo.SlidingWindowLimiter
		idem    *redisrepo.IdempotencyStore
		leader  sweeper.Leader
		sub     *httpgin.ClosableFeed
	)
	if cfg.Redis.Enabled {
		rdb, err := redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.closers = append(a.closers, rdb)

		cache = redisrepo.NewCache(rdb)
		feed = redisrepo.NewAvailabilityFeed(rdb)
		limiter = redisrepo.NewSlidingWindowLimiter(
			rdb, "orders", cfg.Reservation.RateLimit, cfg.Reservation.RateLimitWindow, clk,
		)
		idem = redisrepo.NewIdempotencyStore(rdb, idempotencyTTL)
		leader = redisrepo.NewLeaderLock(rdb, leaderName, cfg.Sweeper.LeaderTTL)
		sub = httpgin.NewClosableFeed(feed)
	} else {
		logger.Warn("redis disabled: no cache, rate limit, idempotency or availability stream")
	}

	publisher, err := a.openPublisher(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	services := service.NewServices(store, cache, feed, limiter, publisher, clk, logger, service.Config{
		Reservation: reservation.Config{
			HoldTTL:     cfg.Reservation.HoldTTL,
			MaxPerOrder: cfg.Reservation.MaxPerOrder,
		},
		Transfer: transfer.Config{
			DefaultTTLHours: cfg.Transfer.DefaultTTLHours,
			Scheme:          cfg.Transfer.Scheme,
		},
	})

	a.sweeper = sweeper.New(store, services.Reservation, services.Transfer, leader, clk, logger, sweeper.Config{
		Interval: cfg.Sweeper.Interval,
		Batch:    cfg.Sweeper.Batch,
	})

	var streams httpgin.AvailabilitySubscriber
	if sub != nil {
		streams = sub
	}
	router := httpgin.NewRouter(services, idem, streams, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown waits for in-flight requests; streams never finish on their own.
	if sub != nil {
		a.httpServer.RegisterOnShutdown(sub.Close)
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	if a.cfg.Store == config.StoreMemory {
		a.logger.Warn("using in-memory store: state is lost on restart")
		return memory.New(), nil
	}

	pc := a.cfg.Postgres
	dsn := postgres.DSN(pc.User, pc.Password, pc.Host, pc.Port, pc.Name, pc.SSLMode)

	if pc.RunMigrations {
		if err := postgres.Migrate(dsn, a.logger); err != nil {
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
	}

	pool, err := postgres.New(ctx, postgres.Config{
		DSN:              dsn,
		MaxConns:         int32(pc.MaxConns),
		StatementTimeout: pc.StatementTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	a.closers = append(a.closers, closerFunc(func() error { pool.Close(); return nil }))

	return postgresrepo.NewStore(pool), nil
}

func (a *App) openPublisher(ctx context.Context) (events.Publisher, error) {
	brokers := a.cfg.Kafka.Brokers
	if len(brokers) == 0 {
		a.logger.Info("kafka brokers not set: domain events are not exported")
		return events.Noop{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := kafka.EnsureTopics(ctx, brokers, events.Topics(), a.logger); err != nil {
		return nil, fmt.Errorf("failed to initialize kafka topics: %w", err)
	}

	producer := kafka.NewProducer(brokers, a.logger)
	a.closers = append(a.closers, producer)

	return producer, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Expiry sweeper
	g.Go(func() error {
		return a.sweeper.Run(gCtx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

// close releases resources in reverse order of acquisition.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
