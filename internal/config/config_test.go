package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsForMemoryStore(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Reservation.HoldTTL)
	assert.Equal(t, 10, cfg.Reservation.MaxPerOrder)
	assert.Equal(t, 24, cfg.Transfer.DefaultTTLHours)
	assert.Equal(t, "tixgo", cfg.Transfer.Scheme)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, 3*time.Minute, cfg.Sweeper.LeaderTTL)
	assert.Equal(t, 500, cfg.Sweeper.Batch)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestNewPostgresRequiresCredentials(t *testing.T) {
	t.Setenv("STORE", "postgres")
	t.Setenv("POSTGRES_USER", "")

	_, err := New()
	require.ErrorContains(t, err, "POSTGRES_USER")

	t.Setenv("POSTGRES_USER", "tix")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "tix")
	t.Setenv("SWEEP_INTERVAL", "30s")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "tix", cfg.Postgres.User)
	assert.True(t, cfg.Postgres.RunMigrations)
	assert.Equal(t, 90*time.Second, cfg.Sweeper.LeaderTTL)
}

func TestNewRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"STORE":                      "sqlite",
		"HOLD_TTL":                   "soon",
		"SWEEP_INTERVAL":             "-1s",
		"TRANSFER_DEFAULT_TTL_HOURS": "36",
		"SERVER_PORT":                "http",
	}

	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv("STORE", "memory")
			t.Setenv(key, val)

			_, err := New()
			require.Error(t, err)
		})
	}
}
