package sensors

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/woodguard/internal/timing"
)

func startedSim(t *testing.T, opts SimOptions) (*SimDevice, *timing.SimClock) {
	t.Helper()
	clock := timing.NewSimClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	dev := NewSimDevice(clock, opts)
	require.NoError(t, dev.SetRailState(true))
	require.NoError(t, dev.Reset())
	require.NoError(t, dev.Wake())
	require.NoError(t, dev.SetAccelFIFOEnabled(true))
	require.NoError(t, dev.SetFIFOEnabled(true))
	return dev, clock
}

func TestSimFIFOFillsWithTime(t *testing.T) {
	dev, clock := startedSim(t, SimOptions{RateHz: 1000})

	n, err := dev.FIFOCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	clock.Sleep(100 * time.Millisecond)
	n, err = dev.FIFOCount()
	require.NoError(t, err)
	assert.Equal(t, 600, n)
}

func TestSimFIFOOverflowSaturates(t *testing.T) {
	dev, clock := startedSim(t, SimOptions{RateHz: 1000})

	clock.Sleep(time.Second)
	n, err := dev.FIFOCount()
	require.NoError(t, err)
	assert.Equal(t, FIFOCapacity, n)

	ov, err := dev.FIFOOverflow()
	require.NoError(t, err)
	assert.True(t, ov)

	require.NoError(t, dev.ResetFIFO())
	n, err = dev.FIFOCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSimReadFIFOEncodesTone(t *testing.T) {
	dev, clock := startedSim(t, SimOptions{RateHz: 1000, Tones: []Tone{{FreqHz: 250, AmplitudeG: 1}}})

	clock.Sleep(10 * time.Millisecond)
	block := make([]byte, 4*6)
	require.NoError(t, dev.ReadFIFO(block))

	// 250 Hz at 1 kHz: sin(0), sin(pi/2), sin(pi), sin(3pi/2)
	want := []int16{0, 16384, 0, -16384}
	for i, w := range want {
		x := int16(binary.BigEndian.Uint16(block[i*6:]))
		assert.InDelta(t, w, x, 1, "frame %d", i)
		z := int16(binary.BigEndian.Uint16(block[i*6+4:]))
		assert.Equal(t, int16(16384), z)
	}
}

func TestSimConnectionFailuresAndPower(t *testing.T) {
	clock := timing.NewSimClock(time.Now())
	dev := NewSimDevice(clock, SimOptions{FailConnections: 2})

	assert.False(t, dev.TestConnection(), "unpowered")
	assert.Error(t, dev.Reset())

	require.NoError(t, dev.SetRailState(true))
	assert.False(t, dev.TestConnection())
	assert.False(t, dev.TestConnection())
	assert.True(t, dev.TestConnection())
	assert.Equal(t, 4, dev.ConnectChecks)
}

func TestSimSilentNeverFills(t *testing.T) {
	dev, clock := startedSim(t, SimOptions{Silent: true})
	clock.Sleep(5 * time.Second)

	n, err := dev.FIFOCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
