package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/boxbuddy/boxbuddy-core/internal/clock"
)

type mockTicker struct {
	calls chan time.Time
}

func (m *mockTicker) Tick(ctx context.Context) {
	m.calls <- time.Time{}
}

type mockSweeper struct {
	calls chan time.Time
}

func (m *mockSweeper) Sweep(ctx context.Context, now time.Time) {
	m.calls <- now
}

func waitForCall(t *testing.T, ch chan time.Time, what string) time.Time {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return time.Time{}
	}
}

func TestRunner_TickAndSweep(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	devices := &mockTicker{calls: make(chan time.Time, 1)}
	codes := &mockSweeper{calls: make(chan time.Time, 1)}

	r := NewRunner(clk, devices, codes, 20*time.Second, 30*time.Second)
	r.Start(context.Background())
	defer r.Close()

	// 20s: tick only.
	clk.Advance(20 * time.Second)
	waitForCall(t, devices.calls, "first tick")
	select {
	case <-codes.calls:
		t.Fatal("sweep fired before its interval")
	default:
	}

	// 40s total: second tick, first sweep at 30s.
	clk.Advance(20 * time.Second)
	waitForCall(t, devices.calls, "second tick")
	swept := waitForCall(t, codes.calls, "first sweep")

	want := time.Date(2026, 3, 10, 12, 0, 30, 0, time.UTC)
	if !swept.Equal(want) {
		t.Errorf("sweep time = %v, want %v", swept, want)
	}
}

func TestRunner_CloseStopsLoops(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	devices := &mockTicker{calls: make(chan time.Time, 10)}
	codes := &mockSweeper{calls: make(chan time.Time, 10)}

	r := NewRunner(clk, devices, codes, time.Second, time.Second)
	r.Start(context.Background())
	r.Close()

	clk.Advance(5 * time.Second)
	select {
	case <-devices.calls:
		t.Error("tick fired after Close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunner_ContextCancelStopsLoops(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	devices := &mockTicker{calls: make(chan time.Time, 10)}
	codes := &mockSweeper{calls: make(chan time.Time, 10)}

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(clk, devices, codes, time.Second, time.Second)
	r.Start(ctx)

	cancel()
	// Close must not hang once the context has stopped the worker.
	r.Close()
}
