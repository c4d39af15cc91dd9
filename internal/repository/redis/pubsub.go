package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kirinyoku/tix-engine/internal/domain"
)

// AvailabilityFeed fans tier counter changes out to every API instance.
// Each tier has its own channel.
type AvailabilityFeed struct {
	rdb *redis.Client
}

func NewAvailabilityFeed(rdb *redis.Client) *AvailabilityFeed {
	return &AvailabilityFeed{rdb: rdb}
}

func (f *AvailabilityFeed) PublishAvailability(ctx context.Context, a domain.Availability) error {
	const op = "redis.AvailabilityFeed.PublishAvailability"

	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := f.rdb.Publish(ctx, ChannelTierAvailability(a.TierID), b).Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Subscribe calls handler for every snapshot published for tierID until ctx
// is done. The subscription is confirmed before Subscribe starts waiting, so
// a publish issued after ready fires is never missed.
func (f *AvailabilityFeed) Subscribe(
	ctx context.Context,
	tierID uuid.UUID,
	ready func(),
	handler func(ctx context.Context, a domain.Availability),
) error {
	const op = "redis.AvailabilityFeed.Subscribe"

	sub := f.rdb.Subscribe(ctx, ChannelTierAvailability(tierID))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	if ready != nil {
		ready()
	}

	ch := sub.Channel(redis.WithChannelSize(64))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var a domain.Availability
			if err := json.Unmarshal([]byte(m.Payload), &a); err == nil && a.TierID == tierID {
				handler(ctx, a)
			}
		}
	}
}
