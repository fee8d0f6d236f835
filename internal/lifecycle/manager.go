// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package lifecycle powers the accelerometer up and down and brings it into
// FIFO acquisition mode.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/woodguard/internal/sensors"
	"github.com/relabs-tech/woodguard/internal/timing"
)

// ErrNotConnected is returned when the sensor does not answer after reset.
var ErrNotConnected = errors.New("sensor connection failed")

// Settings holds the fixed delays and register values used during bring-up.
type Settings struct {
	PowerOnSettle  time.Duration // after switching the rail on
	PowerOffSettle time.Duration // after switching the rail off, lets the rail discharge
	SetupSettle    time.Duration // extra wait in Setup before the first Initialize
	ResetSettle    time.Duration // between reset and the connection check
	Stabilize      time.Duration // after configuration

	DLPFMode          byte
	SampleRateDivider byte
	AccelRange        byte
}

// DefaultSettings matches a 1 kHz, ±2g configuration.
func DefaultSettings() Settings {
	return Settings{
		PowerOnSettle:     500 * time.Millisecond,
		PowerOffSettle:    3 * time.Second,
		SetupSettle:       2 * time.Second,
		ResetSettle:       100 * time.Millisecond,
		Stabilize:         time.Second,
		DLPFMode:          1,
		SampleRateDivider: 0,
		AccelRange:        sensors.AccelRange2G,
	}
}

// SampleRateDivider returns the SMPLRT_DIV value for rateHz with the DLPF on
// (1 kHz internal rate), clamped to the register range.
func SampleRateDivider(rateHz int) byte {
	if rateHz <= 0 || rateHz >= 1000 {
		return 0
	}
	div := 1000/rateHz - 1
	if div > 255 {
		div = 255
	}
	return byte(div)
}

// Manager is the only component that switches the sensor's power.
type Manager struct {
	dev   sensors.Device
	rail  sensors.PowerRail
	clock timing.Clock
	log   *zap.Logger
	cfg   Settings
}

func New(dev sensors.Device, rail sensors.PowerRail, clock timing.Clock, log *zap.Logger, cfg Settings) *Manager {
	if rail == nil {
		rail = sensors.NoopRail{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{dev: dev, rail: rail, clock: clock, log: log.Named("lifecycle"), cfg: cfg}
}

// SetPower switches the rail without waiting.
func (m *Manager) SetPower(on bool) error {
	if err := m.rail.SetRailState(on); err != nil {
		return fmt.Errorf("sensor power %s: %w", onOff(on), err)
	}
	m.log.Debug("sensor power", zap.Bool("on", on))
	return nil
}

// PowerCycle switches the rail and waits for it to settle. Powering off waits
// longer so the rail fully discharges.
func (m *Manager) PowerCycle(on bool) error {
	if err := m.SetPower(on); err != nil {
		return err
	}
	if on {
		m.clock.Sleep(m.cfg.PowerOnSettle)
	} else {
		m.clock.Sleep(m.cfg.PowerOffSettle)
	}
	return nil
}

// Initialize resets the sensor, checks it answers, and configures an
// accelerometer-only FIFO at the configured rate and range. On success the
// FIFO is empty and running.
func (m *Manager) Initialize() error {
	if err := m.dev.Reset(); err != nil {
		return fmt.Errorf("sensor reset: %w", err)
	}
	m.clock.Sleep(m.cfg.ResetSettle)

	if !m.dev.TestConnection() {
		m.log.Warn("MPU6050 connection failed")
		return ErrNotConnected
	}
	if err := m.dev.Wake(); err != nil {
		return fmt.Errorf("sensor wake: %w", err)
	}
	m.log.Debug("MPU6050 connected")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"disable FIFO", func() error { return m.dev.SetFIFOEnabled(false) }},
		{"reset FIFO", m.dev.ResetFIFO},
		{"enable accel FIFO", func() error { return m.dev.SetAccelFIFOEnabled(true) }},
		{"enable FIFO", func() error { return m.dev.SetFIFOEnabled(true) }},
		{"set DLPF", func() error { return m.dev.SetDLPFMode(m.cfg.DLPFMode) }},
		{"set sample rate", func() error { return m.dev.SetSampleRateDivider(m.cfg.SampleRateDivider) }},
		{"set accel range", func() error { return m.dev.SetFullScaleAccelRange(m.cfg.AccelRange) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("sensor %s: %w", s.name, err)
		}
	}

	m.clock.Sleep(m.cfg.Stabilize)

	// Samples queued while stabilizing are stale.
	if err := m.dev.ResetFIFO(); err != nil {
		return fmt.Errorf("sensor reset FIFO: %w", err)
	}
	return nil
}

// Setup powers the sensor on, waits, and initializes it.
func (m *Manager) Setup() error {
	if err := m.PowerCycle(true); err != nil {
		return err
	}
	m.clock.Sleep(m.cfg.SetupSettle)

	if err := m.Initialize(); err != nil {
		m.log.Error("MPU6050 initialization failed in setup", zap.Error(err))
		return err
	}
	m.log.Info("MPU6050 successfully initialized")
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
