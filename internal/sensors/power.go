// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// GPIORail drives the sensor power switch from a GPIO line, active high.
type GPIORail struct {
	pin gpio.PinOut
}

// NewGPIORail looks up the pin by name (e.g. "GPIO17" or "17").
// periph host drivers must already be initialized.
func NewGPIORail(pinName string) (*GPIORail, error) {
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("power rail: GPIO pin %q not found", pinName)
	}
	return &GPIORail{pin: p}, nil
}

func (r *GPIORail) SetRailState(on bool) error {
	if err := r.pin.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("power rail %s: %w", r.pin, err)
	}
	return nil
}

// StatusLED is the board's indicator LED.
type StatusLED struct {
	pin gpio.PinOut
}

// NewStatusLED looks up the LED pin by name.
func NewStatusLED(pinName string) (*StatusLED, error) {
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("status LED: GPIO pin %q not found", pinName)
	}
	return &StatusLED{pin: p}, nil
}

// Blink toggles the LED times times with the given half period and leaves it
// off.
func (l *StatusLED) Blink(times int, halfPeriod time.Duration, sleep func(time.Duration)) error {
	for i := 0; i < times; i++ {
		if err := l.pin.Out(gpio.High); err != nil {
			return fmt.Errorf("status LED %s: %w", l.pin, err)
		}
		sleep(halfPeriod)
		if err := l.pin.Out(gpio.Low); err != nil {
			return fmt.Errorf("status LED %s: %w", l.pin, err)
		}
		sleep(halfPeriod)
	}
	return nil
}
