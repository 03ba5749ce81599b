package sim_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridswap/gridswap/internal/sim"
	"github.com/gridswap/gridswap/pkg/domain"
	"github.com/gridswap/gridswap/pkg/ledger"
)

type countingTicker struct {
	ticks atomic.Int32
	err   error
}

func (c *countingTicker) Tick(ctx context.Context) error {
	c.ticks.Add(1)
	return c.err
}

func newLedger(t *testing.T, currentKWh float64) *ledger.Ledger {
	t.Helper()
	led, err := ledger.New(&domain.AgentProfile{
		AgentID:          "household-1",
		AgentType:        domain.AgentHousehold,
		CurrentEnergyKWh: currentKWh,
		MaxCapacityKWh:   15,
	})
	require.NoError(t, err)
	t.Cleanup(led.Close)
	return led
}

func TestStepAppliesDriftThenTicks(t *testing.T) {
	led := newLedger(t, 10)
	ticker := &countingTicker{}
	loop := sim.New("household-1", ticker, led, sim.WithDrift(-0.03))
	ctx := context.Background()

	loop.Step(ctx)
	loop.Step(ctx)

	assert.Equal(t, int32(2), ticker.ticks.Load())
	profile, err := led.Snapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 9.94, profile.CurrentEnergyKWh, 1e-9)
}

func TestStepClampsDriftAtZero(t *testing.T) {
	led := newLedger(t, 0.02)
	loop := sim.New("household-1", &countingTicker{}, led, sim.WithDrift(-0.03))
	ctx := context.Background()

	loop.Step(ctx)
	loop.Step(ctx)

	profile, err := led.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, profile.CurrentEnergyKWh)
}

func TestStepWithoutDriftOnlyTicks(t *testing.T) {
	led := newLedger(t, 10)
	ticker := &countingTicker{}
	loop := sim.New("household-1", ticker, led)

	loop.Step(context.Background())

	assert.Equal(t, int32(1), ticker.ticks.Load())
	profile, err := led.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.0, profile.CurrentEnergyKWh)
}

func TestRunCyclesUntilContextEnds(t *testing.T) {
	led := newLedger(t, 10)
	ticker := &countingTicker{}
	loop := sim.New("household-1", ticker, led,
		sim.WithStartDelay(0),
		sim.WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, ticker.ticks.Load(), int32(2))
}

func TestRunKeepsCyclingThroughTickFailures(t *testing.T) {
	led := newLedger(t, 10)
	ticker := &countingTicker{err: errors.New("engine unavailable")}
	loop := sim.New("household-1", ticker, led,
		sim.WithStartDelay(0),
		sim.WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	_ = loop.Run(ctx)
	assert.GreaterOrEqual(t, ticker.ticks.Load(), int32(2),
		"a failing cycle must not stop the loop")
}

func TestRunHonorsStartDelay(t *testing.T) {
	led := newLedger(t, 10)
	ticker := &countingTicker{}
	loop := sim.New("household-1", ticker, led,
		sim.WithStartDelay(time.Second),
		sim.WithInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_ = loop.Run(ctx)
	assert.Zero(t, ticker.ticks.Load(), "no cycle may run before the start delay")
}
