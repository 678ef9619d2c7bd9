// Package telemetry drives the periodic background work of the core:
// the device telemetry tick (battery drain, alerts, safety lock) and
// the access code expiry sweep.
package telemetry

import (
	"context"
	"time"

	"github.com/boxbuddy/boxbuddy-core/internal/clock"
)

// Logger defines the logging interface used by the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// DeviceTicker applies one telemetry tick across all devices.
// Satisfied by *device.Registry.
type DeviceTicker interface {
	Tick(ctx context.Context)
}

// CodeSweeper expires overdue access codes.
// Satisfied by *access.Ledger.
type CodeSweeper interface {
	Sweep(ctx context.Context, now time.Time)
}

// Runner owns the two periodic loops. Both run on a single goroutine;
// a tick and a sweep can never overlap.
type Runner struct {
	clk        clock.Clock
	devices    DeviceTicker
	codes      CodeSweeper
	tickEvery  time.Duration
	sweepEvery time.Duration

	logger Logger
	stop   chan struct{}
	done   chan struct{}
}

// NewRunner creates a telemetry runner.
func NewRunner(clk clock.Clock, devices DeviceTicker, codes CodeSweeper, tickEvery, sweepEvery time.Duration) *Runner {
	return &Runner{
		clk:        clk,
		devices:    devices,
		codes:      codes,
		tickEvery:  tickEvery,
		sweepEvery: sweepEvery,
		logger:     noopLogger{},
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Start launches the periodic loops. It returns immediately; the loops
// run until the context is cancelled or Close is called.
func (r *Runner) Start(ctx context.Context) {
	tick := r.clk.NewTicker(r.tickEvery)
	sweep := r.clk.NewTicker(r.sweepEvery)

	r.logger.Info("telemetry runner started",
		"tick_interval", r.tickEvery, "sweep_interval", r.sweepEvery)

	go func() {
		defer close(r.done)
		defer tick.Stop()
		defer sweep.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-tick.C():
				r.devices.Tick(ctx)
			case now := <-sweep.C():
				r.codes.Sweep(ctx, now)
			}
		}
	}()
}

// Close stops the loops and waits for the worker goroutine to exit.
func (r *Runner) Close() {
	close(r.stop)
	<-r.done
	r.logger.Info("telemetry runner stopped")
}
