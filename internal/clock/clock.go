// Package clock re-exports clockwork's injectable clock so the supervisor's
// timers, timeouts, and backoff sleeps can be driven by a fake in tests.
package clock

import "github.com/jonboulle/clockwork"

// Clock is the injectable source of time used throughout the supervisor.
type Clock = clockwork.Clock

// New returns the real, wall-clock Clock used in production.
func New() Clock {
	return clockwork.NewRealClock()
}

// NewFake returns a Clock whose time only advances when the test tells it
// to, for deterministic backoff/timeout/restart-interval tests.
func NewFake() clockwork.FakeClock {
	return clockwork.NewFakeClock()
}
