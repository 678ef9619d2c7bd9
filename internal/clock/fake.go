package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually driven Clock for tests.
//
// Time stands still until Advance is called. Advance fires due timers and
// ticker deliveries in chronological order, moving Now through each
// deadline, so callbacks observe the time they were scheduled for.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Timer callbacks run synchronously inside Advance, on the caller's
//     goroutine, with no internal lock held. Callbacks may schedule
//     further timers.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	seq    int
}

// NewFake returns a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker returns a ticker that delivers once per elapsed period
// during Advance. Deliveries are dropped if the channel is full.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{
		ch:     make(chan time.Time, 1),
		period: d,
	}
	f.seq++
	ft := &fakeTimer{
		fake:   f,
		seq:    f.seq,
		when:   f.now.Add(d),
		ticker: t,
	}
	t.timer = ft
	f.timers = append(f.timers, ft)
	return t
}

// AfterFunc schedules f to run when Advance moves past d from now.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	t := &fakeTimer{
		fake: f,
		seq:  f.seq,
		when: f.now.Add(d),
		fn:   fn,
	}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer and ticker
// delivery whose deadline falls within the window, in deadline order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)

	for {
		t := f.nextDueLocked(target)
		if t == nil {
			break
		}

		f.now = t.when
		if t.ticker != nil {
			t.when = t.when.Add(t.ticker.period)
			select {
			case t.ticker.ch <- f.now:
			default:
			}
			continue
		}

		f.removeLocked(t)
		fn := t.fn

		// Run the callback without holding the lock so it can read the
		// clock or schedule new timers.
		f.mu.Unlock()
		fn()
		f.mu.Lock()
	}

	f.now = target
	f.mu.Unlock()
}

// nextDueLocked returns the earliest timer due at or before target,
// breaking ties by scheduling order.
func (f *Fake) nextDueLocked(target time.Time) *fakeTimer {
	var due []*fakeTimer
	for _, t := range f.timers {
		if !t.when.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].when.Equal(due[j].when) {
			return due[i].when.Before(due[j].when)
		}
		return due[i].seq < due[j].seq
	})
	return due[0]
}

func (f *Fake) removeLocked(t *fakeTimer) {
	for i, x := range f.timers {
		if x == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return
		}
	}
}

// Pending reports how many timers and tickers are currently scheduled.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

type fakeTimer struct {
	fake   *Fake
	seq    int
	when   time.Time
	fn     func()
	ticker *fakeTicker
}

func (t *fakeTimer) Stop() bool {
	t.fake.mu.Lock()
	defer t.fake.mu.Unlock()

	for i, x := range t.fake.timers {
		if x == t {
			t.fake.timers = append(t.fake.timers[:i], t.fake.timers[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTicker struct {
	ch     chan time.Time
	period time.Duration
	timer  *fakeTimer
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.timer.Stop()
}
