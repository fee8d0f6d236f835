// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// Device is the accelerometer driver surface the acquisition pipeline needs.
// All calls are synchronous; a FIFO read either fills the whole slice or
// returns an error.
type Device interface {
	// Reset issues a device reset. The device is asleep afterwards.
	Reset() error
	// Wake selects the PLL clock and clears the sleep bit.
	Wake() error
	// TestConnection reports whether the device answers with the expected ID.
	TestConnection() bool

	SetFIFOEnabled(enabled bool) error
	ResetFIFO() error
	SetAccelFIFOEnabled(enabled bool) error
	SetDLPFMode(mode byte) error
	SetSampleRateDivider(div byte) error
	SetFullScaleAccelRange(fs byte) error

	// FIFOCount returns the number of bytes waiting in the FIFO.
	FIFOCount() (int, error)
	// ReadFIFO reads exactly len(p) bytes from the FIFO.
	ReadFIFO(p []byte) error
	// FIFOOverflow reports the latched FIFO overflow interrupt status.
	FIFOOverflow() (bool, error)
}

// PowerRail switches the sensor's power domain.
type PowerRail interface {
	SetRailState(on bool) error
}

// NoopRail is used when the sensor is permanently powered.
type NoopRail struct{}

func (NoopRail) SetRailState(bool) error { return nil }
