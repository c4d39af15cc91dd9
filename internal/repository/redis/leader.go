package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KEYS[1] lock key, ARGV[1] token, ARGV[2] ttl in ms
const luaExtendIfOwner = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// KEYS[1] lock key, ARGV[1] token
const luaDeleteIfOwner = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

// LeaderLock is a single-holder lease. The holder is identified by a random
// token so that a process whose lease lapsed cannot extend or drop the lease
// of the next holder.
type LeaderLock struct {
	rdb    *redis.Client
	key    string
	token  string
	ttl    time.Duration
	extend *redis.Script
	del    *redis.Script
}

func NewLeaderLock(rdb *redis.Client, name string, ttl time.Duration) *LeaderLock {
	return &LeaderLock{
		rdb:    rdb,
		key:    KeyLeader(name),
		token:  uuid.NewString(),
		ttl:    ttl,
		extend: redis.NewScript(luaExtendIfOwner),
		del:    redis.NewScript(luaDeleteIfOwner),
	}
}

// Acquire takes the lease, or renews it when this instance already holds
// it. It reports whether this instance is the leader afterwards.
func (l *LeaderLock) Acquire(ctx context.Context) (bool, error) {
	const op = "redis.LeaderLock.Acquire"

	ok, err := l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}
	if ok {
		return true, nil
	}

	n, err := l.extend.Run(ctx, l.rdb, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return n == 1, nil
}

// Release drops the lease if this instance still holds it.
func (l *LeaderLock) Release(ctx context.Context) error {
	const op = "redis.LeaderLock.Release"

	if err := l.del.Run(ctx, l.rdb, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
