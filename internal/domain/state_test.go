package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderPending, OrderPaid, true},
		{OrderPending, OrderCancelled, true},
		{OrderPaid, OrderRefunded, true},
		{OrderPaid, OrderCancelled, false},
		{OrderCancelled, OrderPaid, false},
		{OrderRefunded, OrderPaid, false},
		{OrderPending, OrderRefunded, false},
	}

	for _, tt := range tests {
		err := CheckOrderTransition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestTicketTransitions(t *testing.T) {
	assert.NoError(t, CheckTicketTransition(TicketHeld, TicketSold))
	assert.NoError(t, CheckTicketTransition(TicketSold, TicketUsed))
	assert.NoError(t, CheckTicketTransition(TicketSold, TicketRefunded))
	assert.ErrorIs(t, CheckTicketTransition(TicketUsed, TicketRefunded), ErrInvalidTransition)
	assert.ErrorIs(t, CheckTicketTransition(TicketRefunded, TicketSold), ErrInvalidTransition)
	assert.ErrorIs(t, CheckTicketTransition(TicketReleased, TicketSold), ErrInvalidTransition)

	assert.True(t, TicketUsed.Terminal())
	assert.True(t, TicketReleased.Terminal())
	assert.False(t, TicketSold.Terminal())
}

func TestTransferLeavesPendingOnce(t *testing.T) {
	for _, to := range []TransferStatus{TransferAccepted, TransferRejected, TransferExpired, TransferCancelled} {
		require.NoError(t, CheckTransferTransition(TransferPending, to))
		assert.True(t, to.Terminal())
		assert.ErrorIs(t, CheckTransferTransition(to, TransferAccepted), ErrInvalidTransition)
	}
}

func TestMintTransitions(t *testing.T) {
	assert.NoError(t, CheckMintTransition(MintPending, MintMinting))
	assert.NoError(t, CheckMintTransition(MintMinting, MintMinted))
	assert.NoError(t, CheckMintTransition(MintMinting, MintFailed))
	assert.ErrorIs(t, CheckMintTransition(MintPending, MintMinted), ErrInvalidTransition)
	assert.ErrorIs(t, CheckMintTransition(MintMinted, MintMinting), ErrInvalidTransition)
}

func TestDeadlinesFailClosed(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	o := Order{HoldExpiresAt: deadline}
	assert.False(t, o.HoldExpired(deadline.Add(-time.Nanosecond)))
	assert.True(t, o.HoldExpired(deadline))

	tr := Transfer{ExpiresAt: deadline}
	assert.False(t, tr.Expired(deadline.Add(-time.Second)))
	assert.True(t, tr.Expired(deadline))
}

func TestTransferCodes(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := NewTransferCode()
		require.NoError(t, err)
		assert.Len(t, code, TransferCodeLength)

		norm, ok := NormalizeTransferCode(code)
		assert.True(t, ok)
		assert.Equal(t, code, norm)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)

	norm, ok := NormalizeTransferCode("  ab12cd34 ")
	assert.True(t, ok)
	assert.Equal(t, "AB12CD34", norm)

	_, ok = NormalizeTransferCode("AB12-D34")
	assert.False(t, ok)
	_, ok = NormalizeTransferCode("SHORT")
	assert.False(t, ok)
}
