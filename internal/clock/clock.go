// Package clock abstracts time for the controller so that telemetry ticks,
// expiry sweeps and deferred re-locks can be driven deterministically in tests.
//
// Production code uses System, which delegates to package time. Tests use
// Fake, which only moves when Advance is called.
package clock

import "time"

// Clock provides the time operations the controller depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a ticker that delivers on its channel every d.
	NewTicker(d time.Duration) Ticker

	// AfterFunc schedules f to run in its own goroutine after d elapses.
	// The returned Timer can cancel the call before it fires.
	AfterFunc(d time.Duration, f func()) Timer
}

// Ticker delivers periodic time signals.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer is a scheduled one-shot call.
type Timer interface {
	// Stop cancels the call. It reports whether the call was still pending.
	Stop() bool
}

// System is the real clock backed by package time.
type System struct{}

// NewSystem returns a Clock backed by package time.
func NewSystem() *System {
	return &System{}
}

// Now returns time.Now().
func (*System) Now() time.Time {
	return time.Now()
}

// NewTicker returns a ticker backed by time.Ticker.
func (*System) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

// AfterFunc schedules f via time.AfterFunc.
func (*System) AfterFunc(d time.Duration, f func()) Timer {
	return &systemTimer{t: time.AfterFunc(d, f)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time {
	return s.t.C
}

func (s *systemTicker) Stop() {
	s.t.Stop()
}

type systemTimer struct {
	t *time.Timer
}

func (s *systemTimer) Stop() bool {
	return s.t.Stop()
}
