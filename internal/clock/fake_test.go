package clock

import (
	"testing"
	"time"
)

func TestFake_Now(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fc := NewFake(start)

	if !fc.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", fc.Now(), start)
	}

	fc.Advance(90 * time.Second)

	if !fc.Now().Equal(start.Add(90 * time.Second)) {
		t.Errorf("Now() after advance = %v, want %v", fc.Now(), start.Add(90*time.Second))
	}
}

func TestFake_AfterFunc(t *testing.T) {
	fc := NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	fired := 0
	fc.AfterFunc(time.Second, func() { fired++ })

	fc.Advance(999 * time.Millisecond)
	if fired != 0 {
		t.Fatal("timer fired before its deadline")
	}

	fc.Advance(time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	// Advancing further must not re-fire a one-shot timer.
	fc.Advance(time.Minute)
	if fired != 1 {
		t.Fatalf("fired = %d after extra advance, want 1", fired)
	}
}

func TestFake_AfterFuncOrder(t *testing.T) {
	fc := NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	var order []string
	fc.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	fc.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	fc.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	fc.Advance(5 * time.Second)

	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("fire order = %v, want [a b c]", order)
	}
}

func TestFake_AfterFuncSeesDeadlineTime(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fc := NewFake(start)

	var seen time.Time
	fc.AfterFunc(time.Second, func() { seen = fc.Now() })

	fc.Advance(time.Minute)

	if !seen.Equal(start.Add(time.Second)) {
		t.Errorf("callback observed %v, want %v", seen, start.Add(time.Second))
	}
}

func TestFake_Stop(t *testing.T) {
	fc := NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	fired := false
	timer := fc.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop() = false for pending timer, want true")
	}

	fc.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}

	if timer.Stop() {
		t.Error("Stop() = true for already-stopped timer, want false")
	}
}

func TestFake_StopAfterFire(t *testing.T) {
	fc := NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	timer := fc.AfterFunc(time.Second, func() {})
	fc.Advance(2 * time.Second)

	if timer.Stop() {
		t.Error("Stop() = true for fired timer, want false")
	}
}

func TestFake_CallbackSchedulesTimer(t *testing.T) {
	fc := NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	var second bool
	fc.AfterFunc(time.Second, func() {
		fc.AfterFunc(time.Second, func() { second = true })
	})

	fc.Advance(3 * time.Second)

	if !second {
		t.Error("timer scheduled from a callback did not fire within the window")
	}
}

func TestFake_Ticker(t *testing.T) {
	fc := NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	ticker := fc.NewTicker(20 * time.Second)
	defer ticker.Stop()

	fc.Advance(20 * time.Second)

	select {
	case <-ticker.C():
	default:
		t.Fatal("expected a tick after one period")
	}

	// A stopped ticker delivers nothing more.
	ticker.Stop()
	fc.Advance(time.Minute)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker delivered")
	default:
	}
}

func TestFake_Pending(t *testing.T) {
	fc := NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	if fc.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", fc.Pending())
	}

	timer := fc.AfterFunc(time.Second, func() {})
	if fc.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", fc.Pending())
	}

	timer.Stop()
	if fc.Pending() != 0 {
		t.Fatalf("Pending() after stop = %d, want 0", fc.Pending())
	}
}
