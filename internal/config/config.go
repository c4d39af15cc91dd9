package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Server      ServerConfig
	Store       string
	Postgres    PostgresConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Reservation ReservationConfig
	Transfer    TransferConfig
	Sweeper     SweeperConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User          string
	Password      string
	Name          string
	Host          string
	Port          int
	SSLMode       string
	MaxConns      int
	RunMigrations bool

	// StatementTimeout is unset when zero.
	StatementTimeout time.Duration
}

type KafkaConfig struct {
	// Brokers is empty when domain events are not exported.
	Brokers []string
}

type ReservationConfig struct {
	HoldTTL         time.Duration
	MaxPerOrder     int
	RateLimit       int
	RateLimitWindow time.Duration
}

type TransferConfig struct {
	DefaultTTLHours int
	Scheme          string
}

type SweeperConfig struct {
	Interval  time.Duration
	Batch     int
	LeaderTTL time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	var (
		cfg Config
		err error
	)

	cfg.Server.Host = getEnv("SERVER_HOST", "localhost")
	if cfg.Server.Port, err = getInt("SERVER_PORT", 8080); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Server.ShutdownTimeout, err = getDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.Store = strings.ToLower(getEnv("STORE", StorePostgres))
	if cfg.Store != StorePostgres && cfg.Store != StoreMemory {
		return nil, fmt.Errorf("%s: invalid STORE %q", op, cfg.Store)
	}

	if cfg.Store == StorePostgres {
		if cfg.Postgres, err = postgresConfig(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if cfg.Redis.Enabled, err = getBool("REDIS_ENABLED", true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6380")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.Kafka.Brokers = splitList(os.Getenv("KAFKA_BROKERS"))

	if cfg.Reservation.HoldTTL, err = getDuration("HOLD_TTL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Reservation.MaxPerOrder, err = getInt("MAX_TICKETS_PER_ORDER", 10); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Reservation.RateLimit, err = getInt("RATE_LIMIT_ORDERS", 10); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Reservation.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Transfer.DefaultTTLHours, err = getInt("TRANSFER_DEFAULT_TTL_HOURS", 24); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	switch cfg.Transfer.DefaultTTLHours {
	case 24, 48, 72:
	default:
		return nil, fmt.Errorf("%s: TRANSFER_DEFAULT_TTL_HOURS must be 24, 48 or 72", op)
	}
	cfg.Transfer.Scheme = getEnv("TRANSFER_SCHEME", "tixgo")

	if cfg.Sweeper.Interval, err = getDuration("SWEEP_INTERVAL", 60*time.Second); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Sweeper.Batch, err = getInt("SWEEP_BATCH", 500); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Sweeper.LeaderTTL, err = getDuration("SWEEP_LEADER_TTL", 3*cfg.Sweeper.Interval); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func postgresConfig() (PostgresConfig, error) {
	var (
		pc  PostgresConfig
		err error
	)

	pc.Host = getEnv("POSTGRES_HOST", "localhost")
	if pc.Port, err = getInt("POSTGRES_PORT", 5432); err != nil {
		return pc, err
	}

	pc.User = os.Getenv("POSTGRES_USER")
	if pc.User == "" {
		return pc, fmt.Errorf("missing POSTGRES_USER")
	}

	pc.Password = os.Getenv("POSTGRES_PASSWORD")
	if pc.Password == "" {
		return pc, fmt.Errorf("missing POSTGRES_PASSWORD")
	}

	pc.Name = os.Getenv("POSTGRES_DB")
	if pc.Name == "" {
		return pc, fmt.Errorf("missing POSTGRES_DB")
	}

	pc.SSLMode = getEnv("POSTGRES_SSLMODE", "disable")

	if pc.MaxConns, err = getInt("POSTGRES_MAX_CONNS", 0); err != nil {
		return pc, err
	}

	if pc.RunMigrations, err = getBool("RUN_MIGRATIONS", true); err != nil {
		return pc, err
	}

	if pc.StatementTimeout, err = getDuration("POSTGRES_STATEMENT_TIMEOUT", 0); err != nil {
		return pc, err
	}

	return pc, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, def bool) (bool, error) {
	s := getEnv(key, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
