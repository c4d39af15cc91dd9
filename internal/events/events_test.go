package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	cases := map[Type]string{
		OrderOpened:            TopicOrders,
		OrderRefunded:          TopicOrders,
		TicketUsed:             TopicTickets,
		TransferExpired:        TopicTransfers,
		CollectibleMintUpdated: TopicCollectibles,
	}
	for typ, topic := range cases {
		assert.Equal(t, topic, typ.Topic(), typ)
	}
}

func TestNew(t *testing.T) {
	key := uuid.New()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	ev := New(OrderPaid, key, at, map[string]int{"quantity": 2})

	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.Equal(t, key.String(), ev.Key)
	assert.Equal(t, at, ev.OccurredAt)
	require.NoError(t, Noop{}.Publish(context.Background(), ev))
}
