// Package clock narrows clockwork to the time source the engine needs, so
// deadline logic can be tested without sleeping.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is clockwork's ticker: Chan, Reset and Stop.
type Ticker = clockwork.Ticker

// Real returns the wall clock. Now is always in UTC.
func Real() Clock { return realClock{c: clockwork.NewRealClock()} }

type realClock struct{ c clockwork.Clock }

func (r realClock) Now() time.Time                   { return r.c.Now().UTC() }
func (r realClock) NewTicker(d time.Duration) Ticker { return r.c.NewTicker(d) }

// FakeClock stands still until Advance or Set is called. Tickers created
// from it fire when a move crosses their next deadline; a tick is dropped
// when the previous one has not been read.
type FakeClock struct {
	*clockwork.FakeClock
}

func Fake(initial time.Time) *FakeClock {
	return &FakeClock{FakeClock: clockwork.NewFakeClockAt(initial)}
}

// Set moves the clock to t.
func (f *FakeClock) Set(t time.Time) {
	f.Advance(t.Sub(f.Now()))
}
