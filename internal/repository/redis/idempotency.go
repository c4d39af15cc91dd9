package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemLocked = "LOCK"
	idemResult = "RES:"
)

// IdempotencyStore remembers the response of a request by its key. A key is
// either locked while the first request runs or holds the stored response.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Acquire takes the key for the caller. It returns false when another
// request holds it or already stored a response.
func (s *IdempotencyStore) Acquire(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	const op = "redis.IdempotencyStore.Acquire"

	ok, err := s.rdb.SetNX(ctx, key, idemLocked, lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return ok, nil
}

func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, payload []byte) error {
	const op = "redis.IdempotencyStore.SaveResult"

	if err := s.rdb.Set(ctx, key, idemResult+string(payload), s.ttl).Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Result returns the stored response. locked reports a request that is
// still in flight.
func (s *IdempotencyStore) Result(ctx context.Context, key string) (payload []byte, found, locked bool, err error) {
	const op = "redis.IdempotencyStore.Result"

	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, false, nil
	}
	if err != nil {
		return nil, false, false, fmt.Errorf("%s:%w", op, err)
	}

	if rest, ok := strings.CutPrefix(v, idemResult); ok {
		return []byte(rest), true, false, nil
	}

	return nil, false, v == idemLocked, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
