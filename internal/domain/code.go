package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	codeAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	TransferCodeLength = 8
	TicketCodeLength   = 12
)

// NewTransferCode returns a random 8 character code over [A-Z0-9].
func NewTransferCode() (string, error) {
	return randomCode(TransferCodeLength)
}

// NewTicketCode returns the opaque code printed on a ticket and checked at
// the venue.
func NewTicketCode() (string, error) {
	return randomCode(TicketCodeLength)
}

func randomCode(n int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))

	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("domain.randomCode: %w", err)
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}

	return b.String(), nil
}

// NormalizeTransferCode upper-cases and trims user input. ok is false when
// the result cannot be a transfer code.
func NormalizeTransferCode(s string) (code string, ok bool) {
	code = strings.ToUpper(strings.TrimSpace(s))
	if len(code) != TransferCodeLength {
		return code, false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return code, false
		}
	}
	return code, true
}
