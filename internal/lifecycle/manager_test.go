package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/woodguard/internal/sensors"
	"github.com/relabs-tech/woodguard/internal/timing"
)

// recordingDevice logs every driver call in order.
type recordingDevice struct {
	calls     []string
	connected bool
	failOn    string
}

func (d *recordingDevice) do(name string) error {
	d.calls = append(d.calls, name)
	if name == d.failOn {
		return errors.New("bus nack")
	}
	return nil
}

func (d *recordingDevice) Reset() error { return d.do("reset") }
func (d *recordingDevice) Wake() error  { return d.do("wake") }
func (d *recordingDevice) TestConnection() bool {
	d.calls = append(d.calls, "test")
	return d.connected
}
func (d *recordingDevice) SetFIFOEnabled(on bool) error {
	if on {
		return d.do("fifo on")
	}
	return d.do("fifo off")
}
func (d *recordingDevice) ResetFIFO() error                  { return d.do("fifo reset") }
func (d *recordingDevice) SetAccelFIFOEnabled(bool) error    { return d.do("accel fifo") }
func (d *recordingDevice) SetDLPFMode(byte) error            { return d.do("dlpf") }
func (d *recordingDevice) SetSampleRateDivider(byte) error   { return d.do("rate") }
func (d *recordingDevice) SetFullScaleAccelRange(byte) error { return d.do("range") }
func (d *recordingDevice) FIFOCount() (int, error)           { return 0, nil }
func (d *recordingDevice) ReadFIFO([]byte) error             { return nil }
func (d *recordingDevice) FIFOOverflow() (bool, error)       { return false, nil }

type recordingRail struct{ states []bool }

func (r *recordingRail) SetRailState(on bool) error {
	r.states = append(r.states, on)
	return nil
}

func newClock() *timing.SimClock {
	return timing.NewSimClock(time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC))
}

func TestInitializeSequence(t *testing.T) {
	dev := &recordingDevice{connected: true}
	clock := newClock()
	m := New(dev, nil, clock, nil, DefaultSettings())

	require.NoError(t, m.Initialize())
	assert.Equal(t, []string{
		"reset", "test", "wake",
		"fifo off", "fifo reset", "accel fifo", "fifo on",
		"dlpf", "rate", "range",
		"fifo reset",
	}, dev.calls)
	assert.Equal(t, 1100*time.Millisecond, clock.Slept())
}

func TestInitializeConnectionFailure(t *testing.T) {
	dev := &recordingDevice{connected: false}
	m := New(dev, nil, newClock(), nil, DefaultSettings())

	err := m.Initialize()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, []string{"reset", "test"}, dev.calls, "nothing is configured after a failed check")
}

func TestInitializeWrapsDriverErrors(t *testing.T) {
	dev := &recordingDevice{connected: true, failOn: "rate"}
	m := New(dev, nil, newClock(), nil, DefaultSettings())

	err := m.Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set sample rate")
	assert.NotErrorIs(t, err, ErrNotConnected)
}

func TestPowerCycleSettleDelays(t *testing.T) {
	rail := &recordingRail{}
	clock := newClock()
	cfg := DefaultSettings()
	m := New(&recordingDevice{}, rail, clock, nil, cfg)

	require.NoError(t, m.PowerCycle(true))
	assert.Equal(t, cfg.PowerOnSettle, clock.Slept())

	require.NoError(t, m.PowerCycle(false))
	assert.Equal(t, cfg.PowerOnSettle+cfg.PowerOffSettle, clock.Slept())
	assert.Greater(t, cfg.PowerOffSettle, cfg.PowerOnSettle)
	assert.Equal(t, []bool{true, false}, rail.states)
}

func TestSetPowerDoesNotWait(t *testing.T) {
	rail := &recordingRail{}
	clock := newClock()
	m := New(&recordingDevice{}, rail, clock, nil, DefaultSettings())

	require.NoError(t, m.SetPower(true))
	assert.Zero(t, clock.Slept())
	assert.Equal(t, []bool{true}, rail.states)
}

func TestSetupWithSimulatedSensor(t *testing.T) {
	clock := newClock()
	sim := sensors.NewSimDevice(clock, sensors.SimOptions{})
	m := New(sim, sim, clock, nil, DefaultSettings())

	require.NoError(t, m.Setup())
	assert.True(t, sim.Powered())

	n, err := sim.FIFOCount()
	require.NoError(t, err)
	assert.Zero(t, n, "FIFO is empty right after initialization")

	clock.Sleep(10 * time.Millisecond)
	n, err = sim.FIFOCount()
	require.NoError(t, err)
	assert.Equal(t, 60, n, "FIFO is running")
}

func TestSetupPropagatesFailure(t *testing.T) {
	clock := newClock()
	sim := sensors.NewSimDevice(clock, sensors.SimOptions{FailConnections: 1})
	m := New(sim, sim, clock, nil, DefaultSettings())

	assert.ErrorIs(t, m.Setup(), ErrNotConnected)
	require.NoError(t, m.Setup())
}

func TestSampleRateDivider(t *testing.T) {
	assert.Equal(t, byte(0), SampleRateDivider(1000))
	assert.Equal(t, byte(1), SampleRateDivider(500))
	assert.Equal(t, byte(9), SampleRateDivider(100))
	assert.Equal(t, byte(199), SampleRateDivider(5))
	assert.Equal(t, byte(255), SampleRateDivider(1))
	assert.Equal(t, byte(0), SampleRateDivider(0))
}
