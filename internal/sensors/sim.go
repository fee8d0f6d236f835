// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/relabs-tech/woodguard/internal/accel"
	"github.com/relabs-tech/woodguard/internal/timing"
)

// Tone is one sinusoidal vibration component on the X axis.
type Tone struct {
	FreqHz     float64
	AmplitudeG float64
}

// SimOptions configures a simulated accelerometer.
type SimOptions struct {
	// RateHz is the FIFO fill rate in samples per second.
	RateHz float64
	// Tones are summed into the X axis.
	Tones []Tone
	// FailConnections makes the next N connection checks fail.
	FailConnections int
	// Silent keeps the FIFO empty forever.
	Silent bool
}

var errSimUnpowered = errors.New("sim: device not powered")

// SimDevice is an MPU-6050 stand-in whose FIFO fills with synthetic vibration
// as the clock advances. It also acts as its own power rail so the
// lifecycle can be exercised without hardware.
type SimDevice struct {
	clock timing.Clock
	opts  SimOptions

	origin time.Time // t=0 of the synthetic signal

	powered     bool
	awake       bool
	fifoEnabled bool
	accelFIFO   bool
	fifoStart   time.Time // time of the oldest unread sample
	overflow    bool

	// Counters for tests.
	Resets        int
	FIFOResets    int
	BlocksRead    int
	RailToggles   int
	ConnectChecks int
}

// NewSimDevice creates a powered-off simulated device.
func NewSimDevice(clock timing.Clock, opts SimOptions) *SimDevice {
	if opts.RateHz <= 0 {
		opts.RateHz = 1000
	}
	return &SimDevice{clock: clock, opts: opts, origin: clock.Now()}
}

// SetTones replaces the synthetic signal.
func (s *SimDevice) SetTones(tones ...Tone) { s.opts.Tones = tones }

// FailNextConnections makes the next n connection checks fail.
func (s *SimDevice) FailNextConnections(n int) { s.opts.FailConnections = n }

func (s *SimDevice) SetRailState(on bool) error {
	s.RailToggles++
	s.powered = on
	if !on {
		s.awake = false
		s.fifoEnabled = false
		s.accelFIFO = false
	}
	return nil
}

// Powered reports the rail state.
func (s *SimDevice) Powered() bool { return s.powered }

func (s *SimDevice) Reset() error {
	if !s.powered {
		return errSimUnpowered
	}
	s.Resets++
	s.awake = false
	s.fifoEnabled = false
	s.accelFIFO = false
	s.overflow = false
	return nil
}

func (s *SimDevice) Wake() error {
	if !s.powered {
		return errSimUnpowered
	}
	s.awake = true
	return nil
}

func (s *SimDevice) TestConnection() bool {
	s.ConnectChecks++
	if !s.powered {
		return false
	}
	if s.opts.FailConnections > 0 {
		s.opts.FailConnections--
		return false
	}
	return true
}

func (s *SimDevice) SetFIFOEnabled(enabled bool) error {
	if !s.powered {
		return errSimUnpowered
	}
	if enabled && !s.fifoEnabled {
		s.fifoStart = s.clock.Now()
	}
	s.fifoEnabled = enabled
	return nil
}

func (s *SimDevice) ResetFIFO() error {
	if !s.powered {
		return errSimUnpowered
	}
	s.FIFOResets++
	s.fifoStart = s.clock.Now()
	s.overflow = false
	return nil
}

func (s *SimDevice) SetAccelFIFOEnabled(enabled bool) error {
	if !s.powered {
		return errSimUnpowered
	}
	if enabled && !s.accelFIFO {
		s.fifoStart = s.clock.Now()
	}
	s.accelFIFO = enabled
	return nil
}

func (s *SimDevice) SetDLPFMode(byte) error {
	if !s.powered {
		return errSimUnpowered
	}
	return nil
}

func (s *SimDevice) SetSampleRateDivider(byte) error {
	if !s.powered {
		return errSimUnpowered
	}
	return nil
}

func (s *SimDevice) SetFullScaleAccelRange(byte) error {
	if !s.powered {
		return errSimUnpowered
	}
	return nil
}

func (s *SimDevice) running() bool {
	return s.powered && s.awake && s.fifoEnabled && s.accelFIFO && !s.opts.Silent
}

// pending returns the number of whole frames accrued since fifoStart.
func (s *SimDevice) pending() int {
	if !s.running() {
		return 0
	}
	elapsed := s.clock.Now().Sub(s.fifoStart)
	if elapsed <= 0 {
		return 0
	}
	return int(float64(elapsed) * s.opts.RateHz / float64(time.Second))
}

const simFIFOFrames = FIFOCapacity / accel.FrameSize

func (s *SimDevice) FIFOCount() (int, error) {
	if !s.powered {
		return 0, errSimUnpowered
	}
	n := s.pending()
	if n > simFIFOFrames {
		s.overflow = true
		return FIFOCapacity, nil
	}
	return n * accel.FrameSize, nil
}

// ReadFIFO returns frames oldest first. On overflow the oldest frames have
// been overwritten, so the window starts at the newest simFIFOFrames.
func (s *SimDevice) ReadFIFO(p []byte) error {
	if !s.powered {
		return errSimUnpowered
	}
	period := time.Duration(float64(time.Second) / s.opts.RateHz)
	first := 0
	if n := s.pending(); n > simFIFOFrames {
		first = n - simFIFOFrames
	}
	frames := len(p) / accel.FrameSize
	for i := 0; i < frames; i++ {
		at := s.fifoStart.Add(time.Duration(first+i) * period)
		x := s.sampleCounts(at)
		off := i * accel.FrameSize
		binary.BigEndian.PutUint16(p[off:], uint16(x))
		binary.BigEndian.PutUint16(p[off+2:], 0)
		binary.BigEndian.PutUint16(p[off+4:], uint16(int16(accel.LSBPerG)))
	}
	// trailing partial frame bytes read as zero
	for i := frames * accel.FrameSize; i < len(p); i++ {
		p[i] = 0
	}
	s.fifoStart = s.fifoStart.Add(time.Duration(first+frames) * period)
	s.BlocksRead++
	return nil
}

func (s *SimDevice) FIFOOverflow() (bool, error) {
	if !s.powered {
		return false, errSimUnpowered
	}
	if s.pending() > simFIFOFrames {
		s.overflow = true
	}
	ov := s.overflow
	s.overflow = false
	return ov, nil
}

// sampleCounts renders the X axis at time at as raw ±2g counts.
func (s *SimDevice) sampleCounts(at time.Time) int16 {
	t := at.Sub(s.origin).Seconds()
	var g float64
	for _, tone := range s.opts.Tones {
		g += tone.AmplitudeG * math.Sin(2*math.Pi*tone.FreqHz*t)
	}
	c := math.Round(g * accel.LSBPerG)
	switch {
	case c > math.MaxInt16:
		c = math.MaxInt16
	case c < math.MinInt16:
		c = math.MinInt16
	}
	return int16(c)
}

var (
	_ Device    = (*SimDevice)(nil)
	_ PowerRail = (*SimDevice)(nil)
)
