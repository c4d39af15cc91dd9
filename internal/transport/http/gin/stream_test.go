package httpgin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/tix-engine/internal/domain"
)

// blockingFeed holds every subscription open until its context ends.
type blockingFeed struct{}

func (blockingFeed) Subscribe(
	ctx context.Context,
	_ uuid.UUID,
	ready func(),
	_ func(context.Context, domain.Availability),
) error {
	ready()
	<-ctx.Done()
	return ctx.Err()
}

func TestClosableFeedEndsSubscriptionsOnClose(t *testing.T) {
	feed := NewClosableFeed(blockingFeed{})

	ready := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- feed.Subscribe(context.Background(), uuid.New(), func() { close(ready) }, nil)
	}()
	<-ready

	select {
	case err := <-errc:
		t.Fatalf("subscription ended before close: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	feed.Close()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscription still open after close")
	}

	// Subscribing after close returns straight away.
	err := feed.Subscribe(context.Background(), uuid.New(), func() {}, nil)
	assert.NoError(t, err)
}

func TestClosableFeedKeepsCallerCancellation(t *testing.T) {
	feed := NewClosableFeed(blockingFeed{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := feed.Subscribe(ctx, uuid.New(), func() {}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
