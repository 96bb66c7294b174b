package mirror

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidInterval = errors.New("sync interval must be positive")
)

// Driver runs a cycle, waits for the interval, and repeats until its context
// is cancelled.
type Driver struct {
	engine   *Engine
	interval time.Duration
	clock    clockwork.Clock
	trigger  <-chan struct{}
	onCycle  func(*CycleReport)
}

type DriverOption func(*Driver)

// WithClock replaces the clock used to wait between cycles.
func WithClock(clock clockwork.Clock) DriverOption {
	return func(d *Driver) { d.clock = clock }
}

// WithTrigger makes every receive on trigger end the current wait early.
func WithTrigger(trigger <-chan struct{}) DriverOption {
	return func(d *Driver) { d.trigger = trigger }
}

// WithCycleHook registers fn to be called with the report of every cycle.
func WithCycleHook(fn func(*CycleReport)) DriverOption {
	return func(d *Driver) { d.onCycle = fn }
}

// NewDriver returns a Driver running engine every interval. The interval
// must be positive.
func NewDriver(engine *Engine, interval time.Duration, opts ...DriverOption) (*Driver, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	d := &Driver{
		engine:   engine,
		interval: interval,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run blocks until ctx is cancelled. The first cycle starts immediately.
// Cancellation interrupts the wait between cycles but never a running cycle,
// so when Run returns no pass is touching the replica.
func (d *Driver) Run(ctx context.Context) error {
	slog.Info("mirror start",
		"source", d.engine.SourceRoot(),
		"replica", d.engine.ReplicaRoot(),
		"interval", d.interval,
	)
	defer slog.Info("mirror stop")

	for {
		if ctx.Err() != nil {
			return nil
		}

		report := d.engine.RunCycle(ctx)
		d.logReport(report)
		if d.onCycle != nil {
			d.onCycle(report)
		}

		// a fresh timer per wait, so a slow cycle never leaves a queued tick
		timer := d.clock.NewTimer(d.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.Chan():
		case <-d.trigger:
			timer.Stop()
			slog.Debug("mirror triggered by source change")
		}
	}
}

func (d *Driver) logReport(report *CycleReport) {
	for _, f := range report.Failures() {
		slog.Error("mirror entry failed", "cycle", report.ID, "op", f.Op, "path", f.Path, "error", f.Err)
	}
	for _, path := range report.Deferred() {
		slog.Debug("mirror deferred busy file", "cycle", report.ID, "path", path)
	}

	if report.Mutations() == 0 && len(report.Failures()) == 0 && len(report.Deferred()) == 0 {
		return
	}

	slog.Info("mirror cycle",
		"cycle", report.ID,
		"took", report.Took,
		"created", report.Count(VerbCreated),
		"copied", report.Count(VerbCopied),
		"foldersCreated", report.Count(VerbCreateFolder),
		"deleted", report.Count(VerbDeleted),
		"foldersDeleted", report.Count(VerbDeleteFolder),
		"deferred", len(report.Deferred()),
		"failed", len(report.Failures()),
		"size", humanize.Bytes(uint64(report.BytesCopied())),
	)
}
