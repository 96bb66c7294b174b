package mirror

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 10 * time.Second

type driverHarness struct {
	env     *testEnv
	clock   clockwork.FakeClock
	reports chan *CycleReport
	cancel  context.CancelFunc
	done    chan error
}

func startDriver(t *testing.T, opts ...DriverOption) *driverHarness {
	t.Helper()
	h := &driverHarness{
		env:     newMemEnv(t, Options{}),
		clock:   clockwork.NewFakeClock(),
		reports: make(chan *CycleReport, 8),
		done:    make(chan error, 1),
	}

	opts = append([]DriverOption{
		WithClock(h.clock),
		WithCycleHook(func(r *CycleReport) { h.reports <- r }),
	}, opts...)
	driver, err := NewDriver(h.env.engine, testInterval, opts...)
	require.NoError(t, err)

	var ctx context.Context
	ctx, h.cancel = context.WithCancel(context.Background())
	go func() { h.done <- driver.Run(ctx) }()
	t.Cleanup(h.cancel)
	return h
}

func (h *driverHarness) nextReport(t *testing.T) *CycleReport {
	t.Helper()
	select {
	case r := <-h.reports:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a cycle")
		return nil
	}
}

func (h *driverHarness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestDriver_RunsEveryInterval(t *testing.T) {
	h := startDriver(t)

	first := h.nextReport(t)
	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, 0, first.Mutations())

	writeFile(t, h.env.fs, filepath.Join(h.env.source, "a.txt"), "a", t1)

	// wait for the driver to sleep, then check nothing runs early
	h.clock.BlockUntil(1)
	h.clock.Advance(testInterval - time.Second)
	select {
	case r := <-h.reports:
		t.Fatalf("cycle %d ran before the interval elapsed", r.ID)
	case <-time.After(50 * time.Millisecond):
	}

	h.clock.Advance(time.Second)
	second := h.nextReport(t)
	assert.Equal(t, uint64(2), second.ID)
	assert.Equal(t, 1, second.Count(VerbCreated))

	h.clock.BlockUntil(1)
	h.stop(t)
}

func TestDriver_TriggerEndsWaitEarly(t *testing.T) {
	trigger := make(chan struct{}, 1)
	h := startDriver(t, WithTrigger(trigger))

	h.nextReport(t)
	h.clock.BlockUntil(1)

	writeFile(t, h.env.fs, filepath.Join(h.env.source, "b.txt"), "b", t1)
	trigger <- struct{}{}

	second := h.nextReport(t)
	assert.Equal(t, 1, second.Count(VerbCreated))

	h.stop(t)
}

func TestDriver_StopsWhileWaiting(t *testing.T) {
	h := startDriver(t)
	h.nextReport(t)
	h.clock.BlockUntil(1)
	h.stop(t)

	select {
	case r := <-h.reports:
		t.Fatalf("cycle %d ran after cancellation", r.ID)
	default:
	}
}

func TestDriver_CancelledBeforeStart(t *testing.T) {
	env := newMemEnv(t, Options{})
	ran := false
	driver, err := NewDriver(env.engine, time.Second, WithCycleHook(func(*CycleReport) { ran = true }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, driver.Run(ctx))
	assert.False(t, ran)
}

func TestNewDriver_InvalidInterval(t *testing.T) {
	env := newMemEnv(t, Options{})

	_, err := NewDriver(env.engine, 0)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NewDriver(env.engine, -time.Second)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}
