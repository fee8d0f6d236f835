// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// OpenBus initializes the periph host drivers and opens the named I2C bus at
// the given clock rate. An empty name selects the first bus available.
func OpenBus(name string, clockHz int64) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open (%q): %w", name, err)
	}

	if clockHz > 0 {
		if err := bus.SetSpeed(physic.Frequency(clockHz) * physic.Hertz); err != nil {
			bus.Close()
			return nil, fmt.Errorf("i2c set speed %d Hz: %w", clockHz, err)
		}
	}
	return bus, nil
}
